package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLimiter(t *testing.T, limit int, window time.Duration) *RedisLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client, limit, window, nil)
}

func TestRedisLimiter_LimitEnforced(t *testing.T) {
	limiter := newRedisLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, "t1:p1:bob")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d within limit", i+1)
	}

	result, err := limiter.Allow(ctx, "t1:p1:bob")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, time.Minute, result.RetryAfter)
}

func TestRedisLimiter_WindowElapses(t *testing.T) {
	// Score-based pruning uses wall-clock time, so a short real window is
	// enough; the key TTL is Redis-side housekeeping only.
	limiter := newRedisLimiter(t, 2, 100*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Allow(ctx, "bob")
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}
	result, err := limiter.Allow(ctx, "bob")
	require.NoError(t, err)
	require.False(t, result.Allowed)

	time.Sleep(150 * time.Millisecond)

	result, err = limiter.Allow(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRedisLimiter_IdentitiesIsolated(t *testing.T) {
	limiter := newRedisLimiter(t, 1, time.Minute)
	ctx := context.Background()

	first, err := limiter.Allow(ctx, "alice")
	require.NoError(t, err)
	require.True(t, first.Allowed)

	second, err := limiter.Allow(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, second.Allowed)
}

func TestRedisLimiter_Reset(t *testing.T) {
	limiter := newRedisLimiter(t, 1, time.Minute)
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "bob")
	require.NoError(t, err)
	result, err := limiter.Allow(ctx, "bob")
	require.NoError(t, err)
	require.False(t, result.Allowed)

	require.NoError(t, limiter.Reset(ctx, "bob"))

	result, err = limiter.Allow(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}
