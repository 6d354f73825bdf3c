package cron

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/medmarket/medmarket-backend/pkg/redis"
)

func newLockStore(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return redis.Wrap(rdb), mr
}

func TestRedisLockExclusiveAndOwnerScoped(t *testing.T) {
	store, mr := newLockStore(t)
	ctx := context.Background()

	first, err := NewRedisLock(store, "cron-worker:test", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "cron-worker:test", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok, "second worker must not acquire a held lock")

	require.NoError(t, second.Release(ctx))
	require.True(t, mr.Exists("mm:lock:cron-worker:test"), "non-owner release must not delete the lock")

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisLockExpiredOwnerCannotReleaseSuccessor(t *testing.T) {
	store, mr := newLockStore(t)
	ctx := context.Background()

	stale, _ := NewRedisLock(store, "cron", 30*time.Second)
	fresh, _ := NewRedisLock(store, "cron", 30*time.Second)

	ok, err := stale.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(31 * time.Second)
	ok, err = fresh.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok, "lease should be free after ttl")

	require.NoError(t, stale.Release(ctx))
	require.True(t, mr.Exists("mm:lock:cron"), "stale owner released the successor's lock")
}

func TestNewRedisLockValidation(t *testing.T) {
	store, _ := newLockStore(t)
	_, err := NewRedisLock(nil, "cron", 0)
	require.Error(t, err)
	_, err = NewRedisLock(store, "", 0)
	require.Error(t, err)

	lock, err := NewRedisLock(store, "cron", 0)
	require.NoError(t, err)
	require.Equal(t, defaultLockTTL, lock.ttl)
}
