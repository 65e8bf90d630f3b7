package ratelimit

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// New builds a limiter from config. A zero or negative request limit
// yields the no-op limiter, so the unlimited mode tracks nothing. A
// non-nil Redis client selects the distributed limiter regardless of
// algorithm, since only the sliding window is implemented server-side.
func New(cfg Config, redisClient redis.UniversalClient, logger *zap.Logger) Limiter {
	if cfg.Requests <= 0 {
		return NewNoopLimiter()
	}
	if redisClient != nil {
		return NewRedisLimiter(redisClient, cfg.Requests, cfg.Window, logger)
	}

	switch cfg.Algorithm {
	case AlgorithmTokenBucket:
		return NewTokenBucketLimiter(cfg.Requests, cfg.Window, logger)
	default:
		return NewSlidingWindowLimiter(cfg.Requests, cfg.Window, logger)
	}
}
