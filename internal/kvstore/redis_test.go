package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreFromClient(client), mr
}

func TestRedisIncrement(t *testing.T) {
	s, _ := newTestRedis(t)
	ctx := context.Background()

	count, resetAt, err := s.Increment(ctx, "c", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.WithinDuration(t, time.Now().Add(time.Minute), resetAt, 2*time.Second)

	count, _, err = s.Increment(ctx, "c", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, _, err = s.Increment(ctx, "other", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRedisIncrementWindowExpiry(t *testing.T) {
	s, mr := newTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := s.Increment(ctx, "c", time.Minute)
		require.NoError(t, err)
	}

	mr.FastForward(61 * time.Second)

	count, _, err := s.Increment(ctx, "c", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "expired window starts over")
}

func TestRedisIncrementKeepsWindowBoundary(t *testing.T) {
	s, mr := newTestRedis(t)
	ctx := context.Background()

	_, _, err := s.Increment(ctx, "c", time.Minute)
	require.NoError(t, err)

	mr.FastForward(40 * time.Second)

	// The second increment must not extend the window.
	_, resetAt, err := s.Increment(ctx, "c", time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(20*time.Second), resetAt, 2*time.Second)
}

func TestRedisSetIfAbsent(t *testing.T) {
	s, mr := newTestRedis(t)
	ctx := context.Background()

	set, err := s.SetIfAbsent(ctx, "lock", []byte("a"), time.Minute)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = s.SetIfAbsent(ctx, "lock", []byte("b"), time.Minute)
	require.NoError(t, err)
	assert.False(t, set)

	mr.FastForward(61 * time.Second)

	set, err = s.SetIfAbsent(ctx, "lock", []byte("b"), time.Minute)
	require.NoError(t, err)
	assert.True(t, set, "an expired key counts as absent")
}

func TestRedisGetSetDelete(t *testing.T) {
	s, _ := newTestRedis(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	val, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisValueExpiry(t *testing.T) {
	s, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 30*time.Second))
	mr.FastForward(31 * time.Second)

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisPing(t *testing.T) {
	s, mr := newTestRedis(t)
	require.NoError(t, s.Ping(context.Background()))

	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}
