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

func TestNew_ZeroLimitIsNoop(t *testing.T) {
	limiter := New(Config{Requests: 0, Window: time.Minute}, nil, nil)
	require.IsType(t, &NoopLimiter{}, limiter)

	// Unlimited mode admits everything without tracking.
	for i := 0; i < 1000; i++ {
		result, err := limiter.Allow(context.Background(), "anyone")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}
}

func TestNew_AlgorithmSelection(t *testing.T) {
	sliding := New(Config{Algorithm: AlgorithmSlidingWindow, Requests: 5, Window: time.Minute}, nil, nil)
	assert.IsType(t, &SlidingWindowLimiter{}, sliding)

	bucket := New(Config{Algorithm: AlgorithmTokenBucket, Requests: 5, Window: time.Minute}, nil, nil)
	assert.IsType(t, &TokenBucketLimiter{}, bucket)

	// Unknown algorithms fall back to the sliding window.
	fallback := New(Config{Algorithm: "mystery", Requests: 5, Window: time.Minute}, nil, nil)
	assert.IsType(t, &SlidingWindowLimiter{}, fallback)
}

func TestNew_RedisSelectsDistributedLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	limiter := New(Config{Requests: 5, Window: time.Minute}, client, nil)
	assert.IsType(t, &RedisLimiter{}, limiter)
}
