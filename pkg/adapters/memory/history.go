package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/tripwise/pkg/domain"
)

// HistoryStore implements ports.HistoryStore in memory.
// Artifacts live for the lifetime of the process. Safe for concurrent use.
type HistoryStore struct {
	data map[string][]domain.Artifact
	mu   sync.RWMutex
}

// NewHistoryStore creates a new in-memory history.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		data: make(map[string][]domain.Artifact),
	}
}

// Append records the artifact under the next index of the session.
func (s *HistoryStore) Append(ctx context.Context, sessionID string, artifact domain.Artifact) (domain.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	artifact.Index = len(s.data[sessionID])
	s.data[sessionID] = append(s.data[sessionID], artifact)
	return artifact, nil
}

// List returns a copy of the session's artifacts.
func (s *HistoryStore) List(ctx context.Context, sessionID string) ([]domain.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return append([]domain.Artifact(nil), list...), nil
}

// Get returns one artifact by index.
func (s *HistoryStore) Get(ctx context.Context, sessionID string, index int) (domain.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, ok := s.data[sessionID]
	if !ok {
		return domain.Artifact{}, domain.ErrSessionNotFound
	}
	if index < 0 || index >= len(list) {
		return domain.Artifact{}, domain.ErrArtifactNotFound
	}
	return list[index], nil
}

// Sessions returns the IDs of every session with history.
func (s *HistoryStore) Sessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
