package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// idleEvictEvery is how many Allow calls pass between idle-entry sweeps.
const idleEvictEvery = 256

// bucketEntry holds a per-identity token bucket and its last access time.
type bucketEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// TokenBucketLimiter admits requests from a refilling per-identity token
// bucket. Smoother than a strict window for bursty callers; the refill
// rate is Requests per Window with a burst of the full limit.
//
// Idle identities are evicted opportunistically on the request path every
// idleEvictEvery calls; there is no background sweeper.
type TokenBucketLimiter struct {
	limit  int
	window time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	buckets map[string]*bucketEntry
	calls   int
}

// NewTokenBucketLimiter creates a token bucket limiter allowing limit
// requests per identity per window.
func NewTokenBucketLimiter(limit int, window time.Duration, logger *zap.Logger) *TokenBucketLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenBucketLimiter{
		limit:   limit,
		window:  window,
		logger:  logger,
		buckets: make(map[string]*bucketEntry),
	}
}

// Allow implements Limiter.
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%idleEvictEvery == 0 {
		l.evictIdleLocked(now)
	}

	entry, ok := l.buckets[key]
	if !ok {
		entry = &bucketEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(l.limit)/l.window.Seconds()), l.limit),
		}
		l.buckets[key] = entry
	}
	entry.lastAccess = now

	if !entry.limiter.Allow() {
		reservation := entry.limiter.Reserve()
		retryAfter := reservation.Delay()
		reservation.Cancel()
		l.logger.Warn("rate limit exceeded",
			zap.String("identity", key),
			zap.Int("limit", l.limit),
		)
		return &Result{
			Allowed:    false,
			Limit:      l.limit,
			Remaining:  0,
			RetryAfter: retryAfter,
		}, nil
	}

	remaining := int(entry.limiter.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: remaining,
	}, nil
}

// evictIdleLocked drops identities idle for more than two windows.
func (l *TokenBucketLimiter) evictIdleLocked(now time.Time) {
	cutoff := now.Add(-2 * l.window)
	for key, entry := range l.buckets {
		if entry.lastAccess.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Reset implements Limiter.
func (l *TokenBucketLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
	return nil
}

// Len returns the number of identities currently tracked.
func (l *TokenBucketLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Ensure TokenBucketLimiter implements Limiter.
var _ Limiter = (*TokenBucketLimiter)(nil)
