package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// slidingWindowScript atomically prunes expired members, evaluates the
// count, and records the request when admitted. Running it server-side
// keeps filter-then-evaluate atomic across instances; the key expires on
// its own when the identity goes idle, so no tracking state leaks.
//
// KEYS[1] = identity key
// ARGV[1] = window start (unix micros), ARGV[2] = now (unix micros),
// ARGV[3] = limit, ARGV[4] = window (millis), ARGV[5] = member
//
// Returns {allowed, count_in_window}.
var slidingWindowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[3]) then
	return {0, count}
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[5])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return {1, count + 1}
`)

// RedisLimiter is a distributed sliding window limiter over a Redis
// sorted set per identity, for multi-instance deployments where the
// in-process limiter would undercount.
type RedisLimiter struct {
	client    redis.UniversalClient
	limit     int
	window    time.Duration
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisLimiter creates a Redis-backed sliding window limiter.
func NewRedisLimiter(client redis.UniversalClient, limit int, window time.Duration, logger *zap.Logger) *RedisLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLimiter{
		client:    client,
		limit:     limit,
		window:    window,
		keyPrefix: "accesscore:rl:",
		logger:    logger,
	}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := time.Now()
	windowStart := now.Add(-l.window)

	values, err := slidingWindowScript.Run(ctx, l.client,
		[]string{l.keyPrefix + key},
		strconv.FormatInt(windowStart.UnixMicro(), 10),
		strconv.FormatInt(now.UnixMicro(), 10),
		strconv.Itoa(l.limit),
		strconv.FormatInt(l.window.Milliseconds(), 10),
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("rate limit script: unexpected reply %v", values)
	}

	allowed := values[0] == 1
	count := int(values[1])
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:   allowed,
		Limit:     l.limit,
		Remaining: remaining,
	}
	if !allowed {
		// Without fetching the oldest member the precise wait is unknown;
		// a full window is a safe upper bound for well-behaved clients.
		result.RetryAfter = l.window
		l.logger.Warn("rate limit exceeded",
			zap.String("identity", key),
			zap.Int("limit", l.limit),
		)
	}
	return result, nil
}

// Reset implements Limiter.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.keyPrefix+key).Err()
}

// Ensure RedisLimiter implements Limiter.
var _ Limiter = (*RedisLimiter)(nil)
