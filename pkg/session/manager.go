package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/tripwise"
	"github.com/aretw0/tripwise/internal/logging"
	"github.com/aretw0/tripwise/pkg/domain"
	"github.com/aretw0/tripwise/pkg/ports"
	"github.com/aretw0/tripwise/pkg/workflow"
)

// DefaultLockTTL bounds how long a crashed replica can block a session.
const DefaultLockTTL = 5 * time.Minute

// Planner runs one itinerary request.
type Planner interface {
	Plan(ctx context.Context, query string) (*tripwise.Result, error)
}

// Manager orchestrates runs per session, ensuring a single run in flight.
type Manager struct {
	planner Planner
	history ports.HistoryStore

	mu       sync.Mutex
	inFlight map[string]struct{}

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks (default: DefaultLockTTL).
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock replaces time.Now for artifact timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a new Session Manager.
func NewManager(planner Planner, history ports.HistoryStore, opts ...Option) *Manager {
	m := &Manager{
		planner:  planner,
		history:  history,
		inFlight: make(map[string]struct{}),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire marks the session busy. It returns false if a run is already in flight.
func (m *Manager) acquire(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.inFlight[sessionID]; busy {
		return false
	}
	m.inFlight[sessionID] = struct{}{}
	return true
}

func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, sessionID)
}

// InFlight reports whether this replica is running a plan for the session.
func (m *Manager) InFlight(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, busy := m.inFlight[sessionID]
	return busy
}

// Run plans query within a session and appends the document to its history.
// It returns domain.ErrRunInFlight if the session is busy here or on another replica.
func (m *Manager) Run(ctx context.Context, sessionID, query string) (domain.Artifact, error) {
	if sessionID == "" {
		return domain.Artifact{}, errors.New("session id is required")
	}
	logger := m.logger.With("session_id", sessionID)
	ctx = domain.WithSessionID(ctx, sessionID)

	if !m.acquire(sessionID) {
		return domain.Artifact{}, fmt.Errorf("session %s: %w", sessionID, domain.ErrRunInFlight)
	}
	defer m.release(sessionID)

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, "session:"+sessionID, m.lockTTL)
		if errors.Is(err, ports.ErrLockHeld) {
			return domain.Artifact{}, fmt.Errorf("session %s: %w", sessionID, domain.ErrRunInFlight)
		}
		if err != nil {
			return domain.Artifact{}, fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// Released on a fresh context: the run context may already be cancelled.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("Failed to release distributed lock (will expire via TTL)", "err", err)
			}
		}()
	}

	res, err := m.planner.Plan(ctx, query)
	if err != nil {
		return domain.Artifact{}, err
	}

	if res.Context != nil {
		if q, ok := res.Context.Get(workflow.DefaultQueryKey); ok {
			query, _ = q.(string)
		}
	}
	art, err := m.history.Append(ctx, sessionID, domain.Artifact{
		RunID:     res.RunID,
		Query:     query,
		Document:  res.Document,
		CreatedAt: m.now(),
	})
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("failed to record artifact: %w", err)
	}
	logger.Info("artifact recorded", "run_id", art.RunID, "index", art.Index)
	return art, nil
}

// History lists the artifacts of a session in run order.
func (m *Manager) History(ctx context.Context, sessionID string) ([]domain.Artifact, error) {
	return m.history.List(ctx, sessionID)
}

// Sessions lists the sessions that have recorded history.
func (m *Manager) Sessions(ctx context.Context) ([]string, error) {
	return m.history.Sessions(ctx)
}

// Artifact returns one artifact of a session.
func (m *Manager) Artifact(ctx context.Context, sessionID string, index int) (domain.Artifact, error) {
	return m.history.Get(ctx, sessionID, index)
}
