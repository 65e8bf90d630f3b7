// Package ratelimit provides per-identity request admission for the
// access-control core. Limiters track identities lazily and evict idle
// entries on the request path; there are no background sweeps.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrRateLimitExceeded indicates that the identity has exhausted its
// window. Transient; callers may retry after RetryAfter.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Limiter decides whether a request from the given identity key is
// admitted.
type Limiter interface {
	// Allow checks if a single request is allowed for the identity key.
	Allow(ctx context.Context, key string) (*Result, error)

	// Reset clears the tracking state for the identity key.
	Reset(ctx context.Context, key string) error
}

// Result represents the outcome of an admission check.
type Result struct {
	// Allowed indicates whether the request is admitted.
	Allowed bool

	// Limit is the maximum number of requests per window.
	Limit int

	// Remaining is the number of requests left in the current window.
	Remaining int

	// RetryAfter is how long to wait before retrying (when rejected).
	RetryAfter time.Duration
}

// Algorithm selects the admission algorithm.
type Algorithm string

const (
	// AlgorithmSlidingWindow tracks individual request timestamps in a
	// trailing window.
	AlgorithmSlidingWindow Algorithm = "sliding_window"

	// AlgorithmTokenBucket uses a refilling token bucket per identity.
	AlgorithmTokenBucket Algorithm = "token_bucket"
)

// Config holds limiter construction parameters.
type Config struct {
	// Algorithm is the admission algorithm.
	Algorithm Algorithm

	// Requests is the maximum number of requests per window. Zero or
	// negative means unlimited.
	Requests int

	// Window is the trailing interval the limit applies to.
	Window time.Duration
}

// DefaultConfig returns a Config with default values. Unlimited by
// default; deployments opt into a limit explicitly.
func DefaultConfig() Config {
	return Config{
		Algorithm: AlgorithmSlidingWindow,
		Requests:  0,
		Window:    time.Minute,
	}
}

// NoopLimiter admits every request and keeps no state. Used when the
// limit is zero or unset so the unlimited mode pays no tracking overhead.
type NoopLimiter struct{}

// NewNoopLimiter creates a limiter that always admits.
func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

// Allow implements Limiter.
func (*NoopLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	return &Result{Allowed: true}, nil
}

// Reset implements Limiter.
func (*NoopLimiter) Reset(ctx context.Context, key string) error {
	return nil
}
