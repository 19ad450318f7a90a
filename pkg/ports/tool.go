package ports

import (
	"context"
	"encoding/json"

	"github.com/aretw0/tripwise/pkg/domain"
)

// Tool is a capability a model may call while answering a stage.
// Invoke must not panic or return faults: failures are reported inside the ToolResult.
type Tool interface {
	Spec() domain.ToolSpec
	Invoke(ctx context.Context, args json.RawMessage) domain.ToolResult
}
