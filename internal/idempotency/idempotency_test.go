package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/daily-mass/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr := miniredis.RunT(t)
	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &redis.Options{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	return mr, adapter
}

func TestService_AcquireAndSuccess(t *testing.T) {
	ctx := context.Background()
	_, rdb := setupTestRedis(t)
	svc := NewService(rdb, DefaultConfig())

	pc, err := svc.Acquire(ctx, "wamid.1")
	require.NoError(t, err)
	assert.False(t, pc.IsRetry)

	// concurrent holder is refused while the lock is held
	_, err = svc.Acquire(ctx, "wamid.1")
	assert.ErrorIs(t, err, ErrLockAcquireFailed)

	require.NoError(t, svc.MarkSuccess(ctx, pc))

	processed, err := svc.IsProcessed(ctx, "wamid.1")
	require.NoError(t, err)
	assert.True(t, processed)

	_, err = svc.Acquire(ctx, "wamid.1")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestService_FailureCountsRetries(t *testing.T) {
	ctx := context.Background()
	_, rdb := setupTestRedis(t)
	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	svc := NewService(rdb, cfg)

	for i := 0; i < 2; i++ {
		pc, err := svc.Acquire(ctx, "delivery:7:2024-06-01")
		require.NoError(t, err)
		assert.Equal(t, i, pc.RetryCount)
		require.NoError(t, svc.MarkFailure(ctx, pc, errors.New("provider down")))
	}

	count, err := svc.GetRetryCount(ctx, "delivery:7:2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = svc.Acquire(ctx, "delivery:7:2024-06-01")
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
}

func TestService_LockExpires(t *testing.T) {
	ctx := context.Background()
	mr, rdb := setupTestRedis(t)
	cfg := DefaultConfig()
	cfg.LockTTL = time.Second
	svc := NewService(rdb, cfg)

	_, err := svc.Acquire(ctx, "k")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	_, err = svc.Acquire(ctx, "k")
	assert.NoError(t, err)
}

func TestService_NamespacesAreIndependent(t *testing.T) {
	ctx := context.Background()
	_, rdb := setupTestRedis(t)
	a := NewService(rdb, Config{LockTTL: time.Minute, ProcessedTTL: time.Hour, MaxRetries: 3, Namespace: "a"})
	b := NewService(rdb, Config{LockTTL: time.Minute, ProcessedTTL: time.Hour, MaxRetries: 3, Namespace: "b"})

	pc, err := a.Acquire(ctx, "same")
	require.NoError(t, err)
	require.NoError(t, a.MarkSuccess(ctx, pc))

	_, err = b.Acquire(ctx, "same")
	assert.NoError(t, err)
}

func TestService_ReleaseLockIsIdempotent(t *testing.T) {
	ctx := context.Background()
	_, rdb := setupTestRedis(t)
	svc := NewService(rdb, DefaultConfig())

	pc, err := svc.Acquire(ctx, "x")
	require.NoError(t, err)
	require.NoError(t, svc.ReleaseLock(ctx, pc))
	require.NoError(t, svc.ReleaseLock(ctx, pc))
	require.NoError(t, svc.ReleaseLock(ctx, nil))

	_, err = svc.Acquire(ctx, "x")
	assert.NoError(t, err)
}

func TestKeyLock(t *testing.T) {
	ctx := context.Background()
	_, rdb := setupTestRedis(t)
	l := NewKeyLock(rdb, "reflection:", time.Minute)

	ok, err := l.TryLock(ctx, "2024-06-01:English")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.TryLock(ctx, "2024-06-01:English")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Unlock(ctx, "2024-06-01:English"))
	ok, err = l.TryLock(ctx, "2024-06-01:English")
	require.NoError(t, err)
	assert.True(t, ok)
}
