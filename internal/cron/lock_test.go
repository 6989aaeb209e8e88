package cron

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderbridge-backend/pkg/redis"
)

func newTestLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	locker, err := NewRedisLocker(redis.FromRaw(goredis.NewClient(&goredis.Options{Addr: srv.Addr()})), "ob:cron:test")
	require.NoError(t, err)
	return locker, srv
}

func TestRedisLockerExcludesSecondHolder(t *testing.T) {
	locker, srv := newTestLocker(t)
	ctx := context.Background()

	unlock, ok, err := locker.TryLock(ctx, "stale-intent-sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "stale-intent-sweep", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = locker.TryLock(ctx, "outbox-retention", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "locks are per job")

	require.NoError(t, unlock(ctx))
	assert.False(t, srv.Exists("ob:cron:test:stale-intent-sweep"))
}

func TestRedisLockerUnlockAfterExpiryKeepsNewHolder(t *testing.T) {
	locker, srv := newTestLocker(t)
	ctx := context.Background()

	unlock, ok, err := locker.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	srv.FastForward(2 * time.Minute)
	_, ok, err = locker.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "expired lease is claimable")

	require.NoError(t, unlock(ctx))
	assert.True(t, srv.Exists("ob:cron:test:sweep"), "stale holder must not delete the new lease")
}

func TestRedisLockerValidation(t *testing.T) {
	_, err := NewRedisLocker(nil, "p")
	require.Error(t, err)

	locker, _ := newTestLocker(t)
	_, _, err = locker.TryLock(context.Background(), "sweep", 0)
	require.Error(t, err)
}
