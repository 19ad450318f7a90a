package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRunStart   EventType = "run_start"
	EventRunEnd     EventType = "run_end"
	EventStageStart EventType = "stage_start"
	EventStageEnd   EventType = "stage_end"
	EventToolCall   EventType = "tool_call"
	EventToolReturn EventType = "tool_return"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
}

// RunEvent marks the start or end of a full pipeline run.
type RunEvent struct {
	EventBase
	Pipeline string        `json:"pipeline"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// StageEvent marks the start or end of a stage.
type StageEvent struct {
	EventBase
	Stage     string        `json:"stage"`
	OutputKey string        `json:"output_key"`
	Duration  time.Duration `json:"duration,omitempty"`
	Err       error         `json:"-"`
}

// ToolEvent represents a tool execution requested by a model.
type ToolEvent struct {
	EventBase
	Stage    string        `json:"stage"`
	ToolName string        `json:"tool_name"`
	Input    any           `json:"input,omitempty"`
	Output   any           `json:"output,omitempty"`
	IsError  bool          `json:"is_error,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
// Stages in a parallel group fire hooks concurrently, so callbacks must be safe for concurrent use.
type LifecycleHooks struct {
	OnRunStart   func(context.Context, *RunEvent)
	OnRunEnd     func(context.Context, *RunEvent)
	OnStageStart func(context.Context, *StageEvent)
	OnStageEnd   func(context.Context, *StageEvent)
	OnToolCall   func(context.Context, *ToolEvent)
	OnToolReturn func(context.Context, *ToolEvent)
}

// MergeHooks combines several hook sets into one that calls each in order.
func MergeHooks(sets ...LifecycleHooks) LifecycleHooks {
	var merged LifecycleHooks
	for _, h := range sets {
		merged.OnRunStart = chain(merged.OnRunStart, h.OnRunStart)
		merged.OnRunEnd = chain(merged.OnRunEnd, h.OnRunEnd)
		merged.OnStageStart = chain(merged.OnStageStart, h.OnStageStart)
		merged.OnStageEnd = chain(merged.OnStageEnd, h.OnStageEnd)
		merged.OnToolCall = chain(merged.OnToolCall, h.OnToolCall)
		merged.OnToolReturn = chain(merged.OnToolReturn, h.OnToolReturn)
	}
	return merged
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}

type runIDKey struct{}

// WithRunID returns a context carrying the run ID used in events and logs.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFrom returns the run ID stored by WithRunID, or "".
func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

type sessionIDKey struct{}

// WithSessionID returns a context carrying the session a run belongs to.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

// SessionIDFrom returns the session ID stored by WithSessionID, or "".
func SessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}
