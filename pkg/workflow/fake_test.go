package workflow_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/aretw0/tripwise/pkg/domain"
)

// scriptedModel answers based on the first word of the instruction, which
// tests use as a stage marker.
type scriptedModel struct {
	mu       sync.Mutex
	handlers map[string]func(req domain.ModelRequest) (*domain.ModelResponse, error)
	requests map[string][]domain.ModelRequest
}

func newScriptedModel() *scriptedModel {
	return &scriptedModel{
		handlers: map[string]func(domain.ModelRequest) (*domain.ModelResponse, error){},
		requests: map[string][]domain.ModelRequest{},
	}
}

func (m *scriptedModel) on(marker string, fn func(req domain.ModelRequest) (*domain.ModelResponse, error)) *scriptedModel {
	m.handlers[marker] = fn
	return m
}

func (m *scriptedModel) answer(marker, text string) *scriptedModel {
	return m.on(marker, func(domain.ModelRequest) (*domain.ModelResponse, error) {
		return textResponse(text), nil
	})
}

func (m *scriptedModel) calls(marker string) []domain.ModelRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ModelRequest(nil), m.requests[marker]...)
}

func (m *scriptedModel) Generate(_ context.Context, req domain.ModelRequest) (*domain.ModelResponse, error) {
	prompt := req.System
	if prompt == "" && len(req.Messages) > 0 {
		prompt = req.Messages[0].Content[0].Text
	}
	marker, _, _ := strings.Cut(prompt, " ")

	m.mu.Lock()
	m.requests[marker] = append(m.requests[marker], req)
	fn := m.handlers[marker]
	m.mu.Unlock()

	if fn == nil {
		return nil, fmt.Errorf("no script for %q", marker)
	}
	return fn(req)
}

func textResponse(text string) *domain.ModelResponse {
	return &domain.ModelResponse{
		Content:    []domain.ContentBlock{domain.TextBlock(text)},
		StopReason: domain.StopEndTurn,
	}
}

func toolUseResponse(id, tool string, input any) *domain.ModelResponse {
	raw, _ := json.Marshal(input)
	return &domain.ModelResponse{
		Content: []domain.ContentBlock{
			domain.TextBlock("let me check"),
			{Type: domain.BlockToolUse, ToolUseID: id, ToolName: tool, Input: raw},
		},
		StopReason: domain.StopToolUse,
	}
}

// countingTool records its invocations.
type countingTool struct {
	mu     sync.Mutex
	name   string
	inputs []json.RawMessage
	result domain.ToolResult
	panics bool
}

func (t *countingTool) Spec() domain.ToolSpec {
	return domain.ToolSpec{Name: t.name, Description: "test tool", Parameters: map[string]any{"q": map[string]any{"type": "string"}}}
}

func (t *countingTool) Invoke(_ context.Context, args json.RawMessage) domain.ToolResult {
	t.mu.Lock()
	t.inputs = append(t.inputs, args)
	t.mu.Unlock()
	if t.panics {
		panic("tool exploded")
	}
	return t.result
}

func (t *countingTool) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inputs)
}
