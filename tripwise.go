package tripwise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tripwise/internal/logging"
	"github.com/aretw0/tripwise/pkg/domain"
	"github.com/aretw0/tripwise/pkg/workflow"
	"github.com/google/uuid"
)

// Result is the outcome of one successful run.
type Result struct {
	RunID    string
	Document string
	// Context holds the query and every stage output of the run.
	Context *domain.Context
}

// Planner is the run coordinator: one Plan call is one pipeline run over a fresh context.
// A Planner is safe for concurrent use.
type Planner struct {
	pipeline *workflow.Pipeline
	queryKey string
	finalKey string
	maxQuery int
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	newID    func() string
}

// Option defines a functional option for configuring the Planner.
type Option func(*Planner)

// WithLifecycleHooks registers run observability hooks.
// Stage and tool hooks are configured on the workflow.Invoker.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(p *Planner) {
		p.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the planner.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) {
		p.logger = logger
	}
}

// WithQueryKey sets the seed key the query is stored under (default: "query").
func WithQueryKey(key string) Option {
	return func(p *Planner) {
		p.queryKey = key
	}
}

// WithDocumentKey sets the output key returned as the document.
// It defaults to the key written by the pipeline's last stage.
func WithDocumentKey(key string) Option {
	return func(p *Planner) {
		p.finalKey = key
	}
}

// WithMaxQuerySize overrides DefaultMaxQuerySize.
func WithMaxQuerySize(n int) Option {
	return func(p *Planner) {
		p.maxQuery = n
	}
}

// WithIDGenerator replaces the run ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(p *Planner) {
		p.newID = fn
	}
}

// New creates a Planner for pipeline.
func New(pipeline *workflow.Pipeline, opts ...Option) (*Planner, error) {
	if pipeline == nil {
		return nil, errors.New("tripwise: nil pipeline")
	}
	p := &Planner{
		pipeline: pipeline,
		queryKey: workflow.DefaultQueryKey,
		finalKey: pipeline.FinalKey(),
		maxQuery: DefaultMaxQuerySize,
		logger:   logging.NewNop(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}

	found := false
	for _, k := range pipeline.OutputKeys() {
		if k == p.finalKey {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("tripwise: pipeline %s does not produce %q", pipeline.Name(), p.finalKey)
	}
	return p, nil
}

// Pipeline returns the pipeline driven by the planner.
func (p *Planner) Pipeline() *workflow.Pipeline {
	return p.pipeline
}

// Plan runs the pipeline for one query and returns the finished document.
// The query is sanitized first; rejected queries never reach a stage.
func (p *Planner) Plan(ctx context.Context, query string) (res *Result, err error) {
	query, err = SanitizeQuery(query, p.maxQuery)
	if err != nil {
		return nil, err
	}

	runID := p.newID()
	ctx = domain.WithRunID(ctx, runID)
	logger := p.logger.With("run_id", runID, "pipeline", p.pipeline.Name())

	start := time.Now()
	if p.hooks.OnRunStart != nil {
		p.hooks.OnRunStart(ctx, &domain.RunEvent{
			EventBase: domain.EventBase{Timestamp: start, Type: domain.EventRunStart, RunID: runID},
			Pipeline:  p.pipeline.Name(),
		})
	}
	logger.Info("run started")

	defer func() {
		elapsed := time.Since(start)
		if p.hooks.OnRunEnd != nil {
			p.hooks.OnRunEnd(ctx, &domain.RunEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRunEnd, RunID: runID},
				Pipeline:  p.pipeline.Name(),
				Duration:  elapsed,
				Err:       err,
			})
		}
		if err != nil {
			logger.Error("run failed", "duration", elapsed, "err", err)
			return
		}
		logger.Info("run completed", "duration", elapsed)
	}()

	out, err := p.pipeline.Run(ctx, map[string]any{p.queryKey: query})
	if err != nil {
		return nil, err
	}

	v, _ := out.Get(p.finalKey)
	doc, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("output %q is %T, not a document", p.finalKey, v)
	}
	return &Result{RunID: runID, Document: doc, Context: out}, nil
}
