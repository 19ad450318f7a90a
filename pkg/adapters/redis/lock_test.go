package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/tripwise/pkg/adapters/redis"
	"github.com/aretw0/tripwise/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T) (*redis.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewLocker(client, "test:"), mr
}

func TestLocker_LockUnlock(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "session-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:session-1"))

	_, err = locker.Lock(ctx, "session-1", time.Minute)
	assert.ErrorIs(t, err, ports.ErrLockHeld)

	// Other keys are independent.
	unlockOther, err := locker.Lock(ctx, "session-2", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlockOther(ctx))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:session-1"))

	unlock, err = locker.Lock(ctx, "session-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}

func TestLocker_Expiry(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	_, err := locker.Lock(ctx, "session-ttl", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	unlock, err := locker.Lock(ctx, "session-ttl", time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}

func TestLocker_StaleUnlockKeepsNewOwner(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	staleUnlock, err := locker.Lock(ctx, "s", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	_, err = locker.Lock(ctx, "s", time.Minute)
	require.NoError(t, err)

	// The expired owner must not release the new owner's lock.
	require.NoError(t, staleUnlock(ctx))
	assert.True(t, mr.Exists("test:lock:s"))
}

func TestLocker_Ping(t *testing.T) {
	locker, mr := newLocker(t)
	require.NoError(t, locker.Ping(context.Background()))

	mr.Close()
	assert.Error(t, locker.Ping(context.Background()))
}
