package ports

import (
	"context"

	"github.com/aretw0/tripwise/pkg/domain"
)

// Model is a language model backend.
// Generate performs one request/response exchange. The tool loop is driven by the caller.
type Model interface {
	Generate(ctx context.Context, req domain.ModelRequest) (*domain.ModelResponse, error)
}

// ModelFunc adapts a plain function to the Model interface.
type ModelFunc func(ctx context.Context, req domain.ModelRequest) (*domain.ModelResponse, error)

func (f ModelFunc) Generate(ctx context.Context, req domain.ModelRequest) (*domain.ModelResponse, error) {
	return f(ctx, req)
}
