package workflow

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/tripwise/pkg/domain"
)

// Element is a pipeline entry: a StageSpec or a *ParallelGroup.
type Element interface {
	Describe() Description
	compile(b *builder) (step, error)
}

// step is a compiled element.
type step interface {
	run(ctx context.Context, snap domain.Snapshot) (map[string]any, error)
}

// Element kinds reported by Describe.
const (
	KindPipeline = "pipeline"
	KindStage    = "stage"
	KindParallel = "parallel"
)

// Description is the introspection view of an element tree.
type Description struct {
	Kind     string        `json:"kind"`
	Name     string        `json:"name"`
	Inputs   []string      `json:"inputs,omitempty"`
	Outputs  []string      `json:"outputs,omitempty"`
	Tools    []string      `json:"tools,omitempty"`
	Format   string        `json:"format,omitempty"`
	Children []Description `json:"children,omitempty"`
}

// Pipeline runs elements in order over a fresh context per run.
type Pipeline struct {
	name     string
	seeds    []string
	elements []Element
	steps    []step
	outputs  []string
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*pipelineConfig)

type pipelineConfig struct {
	seeds []string
}

// WithSeedKeys declares keys every run must supply up front.
// Instructions may reference them from the first element on.
func WithSeedKeys(keys ...string) PipelineOption {
	return func(c *pipelineConfig) {
		c.seeds = append(c.seeds, keys...)
	}
}

// builder accumulates validation state while compiling a pipeline.
type builder struct {
	invoker   *Invoker
	available map[string]bool
	names     map[string]bool
	outputs   []string
}

func (b *builder) produce(key string) {
	b.available[key] = true
	b.outputs = append(b.outputs, key)
}

func (b *builder) snapshotAvailable() map[string]bool {
	return maps.Clone(b.available)
}

// NewPipeline validates elements and builds a Pipeline.
// All errors are *domain.ValidationError.
func NewPipeline(name string, invoker *Invoker, elements []Element, opts ...PipelineOption) (*Pipeline, error) {
	var cfg pipelineConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.ValidationError{Reason: "pipeline without a name"}
	}
	if invoker == nil {
		return nil, &domain.ValidationError{Element: name, Reason: "no invoker"}
	}
	if len(elements) == 0 {
		return nil, &domain.ValidationError{Element: name, Reason: "pipeline has no elements"}
	}

	b := &builder{
		invoker:   invoker,
		available: make(map[string]bool),
		names:     make(map[string]bool),
	}
	for _, seed := range cfg.seeds {
		b.available[seed] = true
	}

	steps := make([]step, 0, len(elements))
	for i, el := range elements {
		if el == nil {
			return nil, &domain.ValidationError{Element: name, Reason: fmt.Sprintf("element %d is nil", i)}
		}
		st, err := el.compile(b)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}

	return &Pipeline{
		name:     name,
		seeds:    slices.Clone(cfg.seeds),
		elements: slices.Clone(elements),
		steps:    steps,
		outputs:  b.outputs,
	}, nil
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// SeedKeys returns the keys a run must be seeded with.
func (p *Pipeline) SeedKeys() []string { return slices.Clone(p.seeds) }

// OutputKeys returns every key the pipeline writes, in production order.
func (p *Pipeline) OutputKeys() []string { return slices.Clone(p.outputs) }

// FinalKey returns the key written by the last stage.
func (p *Pipeline) FinalKey() string {
	return p.outputs[len(p.outputs)-1]
}

// Run executes the pipeline for one set of seed values.
// The returned context holds the seeds plus every output key. On failure no
// context is returned.
func (p *Pipeline) Run(ctx context.Context, seed map[string]any) (*domain.Context, error) {
	for _, key := range p.seeds {
		if _, ok := seed[key]; !ok {
			return nil, fmt.Errorf("pipeline %s: %w: seed %s", p.name, domain.ErrMissingKey, key)
		}
	}

	for _, key := range p.outputs {
		if _, ok := seed[key]; ok {
			return nil, fmt.Errorf("pipeline %s: %w: seed %s is a stage output", p.name, domain.ErrDuplicateKey, key)
		}
	}

	runCtx := domain.NewContext(seed)
	for _, st := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := st.run(ctx, runCtx.Snapshot())
		if err != nil {
			return nil, err
		}
		if err := runCtx.Merge(out); err != nil {
			return nil, err
		}
	}
	return runCtx, nil
}

// Describe returns the element tree.
func (p *Pipeline) Describe() Description {
	d := Description{Kind: KindPipeline, Name: p.name, Inputs: slices.Clone(p.seeds), Outputs: p.OutputKeys()}
	for _, el := range p.elements {
		d.Children = append(d.Children, el.Describe())
	}
	return d
}
