package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SlidingWindowLimiter is an in-process true sliding window limiter. Each
// identity maps to a pruned slice of request timestamps guarded by one
// mutex, so a concurrent prune-then-insert sequence can never lose an
// update or double-admit over the limit.
//
// The map is explicitly owned and injected nowhere else: construct one
// limiter per process (or per test) instead of sharing ambient state.
// Entries are pruned on the request path only, and an identity whose
// window empties is removed from the map before the admission decision
// is made. The removal happens under the same lock as any insert, so a
// deleted entry cannot be resurrected with stale timestamps.
type SlidingWindowLimiter struct {
	limit  int
	window time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	windows map[string][]time.Time
	calls   int

	// now is injectable for tests.
	now func() time.Time
}

// sweepEvery is how many Allow calls pass between full stale-identity
// sweeps. The per-identity prune keeps individual records bounded; the
// sweep reclaims identities that stopped calling entirely.
const sweepEvery = 64

// NewSlidingWindowLimiter creates a sliding window limiter allowing limit
// requests per identity within the trailing window.
func NewSlidingWindowLimiter(limit int, window time.Duration, logger *zap.Logger) *SlidingWindowLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlidingWindowLimiter{
		limit:   limit,
		window:  window,
		logger:  logger,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow implements Limiter.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := l.now()
	windowStart := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweepLocked(windowStart)
	}

	// Filter, then evaluate. The identity's record is looked up with an
	// explicit absence check; nothing is created as a side effect of the
	// lookup.
	timestamps, tracked := l.windows[key]
	if tracked {
		valid := timestamps[:0]
		for _, t := range timestamps {
			if t.After(windowStart) {
				valid = append(valid, t)
			}
		}
		if len(valid) == 0 {
			delete(l.windows, key)
			timestamps = nil
		} else {
			timestamps = valid
			l.windows[key] = valid
		}
	}

	if len(timestamps) >= l.limit {
		oldest := timestamps[0]
		retryAfter := oldest.Add(l.window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
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

	l.windows[key] = append(timestamps, now)
	return &Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(timestamps) - 1,
	}, nil
}

// sweepLocked evicts every identity with no requests inside the window.
func (l *SlidingWindowLimiter) sweepLocked(windowStart time.Time) {
	for key, timestamps := range l.windows {
		stale := true
		for _, t := range timestamps {
			if t.After(windowStart) {
				stale = false
				break
			}
		}
		if stale {
			delete(l.windows, key)
		}
	}
}

// Reset implements Limiter.
func (l *SlidingWindowLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
	return nil
}

// Len returns the number of identities currently tracked. Identities with
// no requests inside the window are evicted on their next Allow call, so
// the map never grows without bound under many short-lived identities.
func (l *SlidingWindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Ensure SlidingWindowLimiter implements Limiter.
var _ Limiter = (*SlidingWindowLimiter)(nil)
