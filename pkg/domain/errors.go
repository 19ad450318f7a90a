package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID has no recorded history.
var ErrSessionNotFound = errors.New("session not found")

// ErrArtifactNotFound is returned when a history index does not exist for a session.
var ErrArtifactNotFound = errors.New("artifact not found")

// ErrDuplicateKey is returned when a write targets a context key that already holds a value.
var ErrDuplicateKey = errors.New("context key already written")

// ErrMissingKey is returned when a required context key has no value.
var ErrMissingKey = errors.New("context key missing")

// ErrToolLoopExceeded is returned when a model keeps requesting tools past the turn bound.
var ErrToolLoopExceeded = errors.New("tool loop bound exceeded")

// ErrMalformedDocument is returned when a document stage produces output that is not markup.
var ErrMalformedDocument = errors.New("malformed document")

// ErrEmptyResponse is returned when a model finishes without producing any text.
var ErrEmptyResponse = errors.New("model returned no text")

// ErrTruncatedResponse is returned when a model stops at its output token limit.
var ErrTruncatedResponse = errors.New("model output truncated at token limit")

// ErrUnknownTool is returned when a stage references a tool that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// ErrRunInFlight is returned when a session already has a run executing.
var ErrRunInFlight = errors.New("run already in flight for session")

// ErrInvalidQuery is returned when a user query fails sanitization.
var ErrInvalidQuery = errors.New("invalid query")

// StageError reports the failure of a single stage.
// Every error a stage produces while running is wrapped in one.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ValidationError reports a pipeline definition that cannot be built.
type ValidationError struct {
	Element string
	Reason  string
	Err     error
}

func (e *ValidationError) Error() string {
	reason := e.Reason
	if reason == "" && e.Err != nil {
		reason = e.Err.Error()
	}
	if e.Element == "" {
		return "invalid pipeline: " + reason
	}
	return fmt.Sprintf("invalid pipeline: %s: %s", e.Element, reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
