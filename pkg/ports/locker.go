package ports

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld is returned when a lock is already owned by someone else.
var ErrLockHeld = errors.New("lock held")

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for distributed concurrency control.
// It allows the Session Manager to coordinate runs across multiple instances (replicas).
type DistributedLocker interface {
	// Lock makes a single attempt to acquire the lock for key.
	// It returns ErrLockHeld when another owner holds it; it never waits for release.
	// The lock expires after ttl if it is not released.
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
