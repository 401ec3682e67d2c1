package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisLockerExcludesOtherHolders(t *testing.T) {
	mr, rdb := newRedis(t)
	key := Key("site", "perf")
	first := NewRedisLocker(rdb, time.Minute, 0)
	second := NewRedisLocker(rdb, time.Minute, 30*time.Millisecond)

	held, release, err := first.Acquire(context.Background(), key)
	require.NoError(t, err)
	assert.NoError(t, held.Err())
	assert.True(t, mr.Exists(key))

	_, _, err = second.Acquire(context.Background(), key)
	assert.ErrorIs(t, err, ErrNotAcquired)

	release()
	release()
	assert.False(t, mr.Exists(key))
	assert.Error(t, held.Err())

	_, again, err := second.Acquire(context.Background(), key)
	require.NoError(t, err)
	again()
}

func TestRedisLockerReleaseChecksToken(t *testing.T) {
	mr, rdb := newRedis(t)
	key := Key("site", "perf")
	l := NewRedisLocker(rdb, time.Minute, 0)

	_, release, err := l.Acquire(context.Background(), key)
	require.NoError(t, err)

	// Our TTL lapsed and another process took the key.
	require.NoError(t, mr.Set(key, "other-holder"))
	release()

	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "other-holder", got)
}

func TestRedisLockerRenewsWhileHeld(t *testing.T) {
	mr, rdb := newRedis(t)
	key := Key("site", "perf")
	ttl := 300 * time.Millisecond
	l := NewRedisLocker(rdb, ttl, 0)

	held, release, err := l.Acquire(context.Background(), key)
	require.NoError(t, err)
	defer release()

	mr.FastForward(250 * time.Millisecond)
	require.Eventually(t, func() bool { return mr.TTL(key) > 200*time.Millisecond }, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, held.Err())
}

func TestRedisLockerCancelsWhenLost(t *testing.T) {
	mr, rdb := newRedis(t)
	key := Key("site", "perf")
	l := NewRedisLocker(rdb, 150*time.Millisecond, 0)

	held, release, err := l.Acquire(context.Background(), key)
	require.NoError(t, err)
	defer release()

	require.NoError(t, mr.Set(key, "other-holder"))
	select {
	case <-held.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("held context was not cancelled")
	}
	assert.True(t, errors.Is(context.Cause(held), ErrLost))
}

func TestRedisLockerWaitsForRelease(t *testing.T) {
	_, rdb := newRedis(t)
	key := Key("site", "perf")
	l := NewRedisLocker(rdb, time.Minute, 2*time.Second)

	_, release, err := l.Acquire(context.Background(), key)
	require.NoError(t, err)
	time.AfterFunc(50*time.Millisecond, release)

	start := time.Now()
	_, again, err := l.Acquire(context.Background(), key)
	require.NoError(t, err)
	again()
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}
