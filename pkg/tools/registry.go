package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/tripwise/pkg/domain"
	"github.com/aretw0/tripwise/pkg/ports"
)

// Registry manages the available tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]ports.Tool
}

// NewRegistry creates a registry holding the given tools.
func NewRegistry(tools ...ports.Tool) *Registry {
	r := &Registry{
		tools: make(map[string]ports.Tool),
	}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool to the registry.
// If a tool with the same name exists, it is overwritten.
func (r *Registry) Register(tool ports.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Spec().Name] = tool
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (ports.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Resolve returns the tools for the given names, in order.
// It fails with domain.ErrUnknownTool on the first name that is not registered.
func (r *Registry) Resolve(names ...string) ([]ports.Tool, error) {
	out := make([]ports.Tool, 0, len(names))
	for _, name := range names {
		t, ok := r.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTool, name)
		}
		out = append(out, t)
	}
	return out, nil
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Execute looks up a tool by name and invokes it.
// An unknown name yields an error result rather than a fault.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) domain.ToolResult {
	t, ok := r.Lookup(name)
	if !ok {
		return domain.ToolFailure(fmt.Sprintf("tool not found: %s", name))
	}
	return t.Invoke(ctx, args)
}
