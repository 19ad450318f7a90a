package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/tripwise/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// HistoryStore implements ports.HistoryStore using one Redis list per session.
// Indexes come from RPUSH, so concurrent appends from several replicas never
// collide.
type HistoryStore struct {
	client backend.UniversalClient
	prefix string
	ttl    time.Duration
}

// HistoryOption configures a HistoryStore.
type HistoryOption func(*HistoryStore)

// WithHistoryTTL expires a session's history ttl after its last append.
func WithHistoryTTL(ttl time.Duration) HistoryOption {
	return func(s *HistoryStore) {
		s.ttl = ttl
	}
}

// WithHistoryPrefix sets the key prefix for history lists.
func WithHistoryPrefix(prefix string) HistoryOption {
	return func(s *HistoryStore) {
		s.prefix = prefix
	}
}

// NewHistoryStore creates a history store on an existing client.
func NewHistoryStore(client backend.UniversalClient, opts ...HistoryOption) *HistoryStore {
	store := &HistoryStore{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *HistoryStore) key(sessionID string) string {
	return s.prefix + "history:" + sessionID
}

func (s *HistoryStore) indexKey() string {
	return s.prefix + "history-index"
}

// Append pushes the artifact and assigns the index Redis reports for it.
// The push and the session index update run in one transaction. Readers
// take the index from the list position.
func (s *HistoryStore) Append(ctx context.Context, sessionID string, artifact domain.Artifact) (domain.Artifact, error) {
	key := s.key(sessionID)

	data, err := json.Marshal(artifact)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("failed to marshal artifact: %w", err)
	}

	pipe := s.client.TxPipeline()
	push := pipe.RPush(ctx, key, data)

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	} else {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: sessionID})

	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Artifact{}, fmt.Errorf("failed to save to redis: %w", err)
	}
	// The list length after the push is the index plus one.
	artifact.Index = int(push.Val() - 1)
	return artifact, nil
}

// List returns the session's artifacts in append order.
func (s *HistoryStore) List(ctx context.Context, sessionID string) ([]domain.Artifact, error) {
	vals, err := s.client.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrSessionNotFound
	}

	list := make([]domain.Artifact, 0, len(vals))
	for i, v := range vals {
		a, err := decodeArtifact(v, i)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, nil
}

// Get returns one artifact by index.
func (s *HistoryStore) Get(ctx context.Context, sessionID string, index int) (domain.Artifact, error) {
	key := s.key(sessionID)
	if index < 0 {
		if err := s.exists(ctx, key); err != nil {
			return domain.Artifact{}, err
		}
		return domain.Artifact{}, domain.ErrArtifactNotFound
	}

	val, err := s.client.LIndex(ctx, key, int64(index)).Result()
	if errors.Is(err, backend.Nil) {
		if err := s.exists(ctx, key); err != nil {
			return domain.Artifact{}, err
		}
		return domain.Artifact{}, domain.ErrArtifactNotFound
	}
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("failed to get from redis: %w", err)
	}
	return decodeArtifact(val, index)
}

// Sessions returns the sessions whose history has not expired.
func (s *HistoryStore) Sessions(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ids, nil
}

func (s *HistoryStore) exists(ctx context.Context, key string) error {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to get from redis: %w", err)
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func decodeArtifact(val string, index int) (domain.Artifact, error) {
	var a domain.Artifact
	if err := json.Unmarshal([]byte(val), &a); err != nil {
		return domain.Artifact{}, fmt.Errorf("failed to unmarshal artifact: %w", err)
	}
	a.Index = index
	return a, nil
}
