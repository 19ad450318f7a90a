package ports

import (
	"context"

	"github.com/aretw0/tripwise/pkg/domain"
)

// HistoryStore keeps the ordered artifacts produced for each session.
type HistoryStore interface {
	// Append records an artifact and returns it with its Index assigned.
	Append(ctx context.Context, sessionID string, artifact domain.Artifact) (domain.Artifact, error)

	// List returns the artifacts of a session in the order they were appended.
	// Returns domain.ErrSessionNotFound if the session has no history.
	List(ctx context.Context, sessionID string) ([]domain.Artifact, error)

	// Get returns a single artifact by index.
	// Returns domain.ErrArtifactNotFound if the index is out of range.
	Get(ctx context.Context, sessionID string, index int) (domain.Artifact, error)

	// Sessions returns the IDs of the sessions that currently have history.
	Sessions(ctx context.Context) ([]string, error)
}
