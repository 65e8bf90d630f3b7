package credstore

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/engrama/accesscore/internal/identity"
)

// ErrStoreUnavailable is returned when the circuit to the backing store
// is open.
var ErrStoreUnavailable = errors.New("credential store unavailable")

// BreakerConfig holds circuit breaker settings for the store wrapper.
type BreakerConfig struct {
	// Name identifies the breaker in logs.
	Name string

	// Threshold is the minimum number of requests before the failure
	// ratio is evaluated.
	Threshold uint32

	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration
}

// DefaultBreakerConfig returns a BreakerConfig with default values.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:      "credstore",
		Threshold: 5,
		Timeout:   30 * time.Second,
	}
}

// BreakerStore wraps a Store with a circuit breaker so a failing backend
// sheds load fast instead of stacking up slow calls.
type BreakerStore struct {
	inner  Store
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBreakerStore creates a circuit-breaker-protected store.
func NewBreakerStore(inner Store, cfg BreakerConfig, logger *zap.Logger) *BreakerStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Threshold == 0 {
		cfg = DefaultBreakerConfig()
	}

	bs := &BreakerStore{inner: inner, logger: logger}
	bs.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.Threshold,
		Interval:    cfg.Timeout,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.Threshold && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("credential store circuit state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// Lookup misses and constraint violations are answers from a
			// healthy backend, not backend failures.
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, ErrDuplicate) ||
				errors.Is(err, ErrIntegrity)
		},
	})
	return bs
}

// execute runs fn through the breaker, translating an open circuit into
// ErrStoreUnavailable.
func (s *BreakerStore) execute(fn func() error) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrStoreUnavailable
	}
	return err
}

// CreateTenant implements Store.
func (s *BreakerStore) CreateTenant(ctx context.Context, tenant *identity.Tenant) error {
	return s.execute(func() error { return s.inner.CreateTenant(ctx, tenant) })
}

// GetTenant implements Store.
func (s *BreakerStore) GetTenant(ctx context.Context, tenantID string) (*identity.Tenant, error) {
	var tenant *identity.Tenant
	err := s.execute(func() error {
		var innerErr error
		tenant, innerErr = s.inner.GetTenant(ctx, tenantID)
		return innerErr
	})
	return tenant, err
}

// ListTenants implements Store.
func (s *BreakerStore) ListTenants(ctx context.Context) ([]*identity.Tenant, error) {
	var tenants []*identity.Tenant
	err := s.execute(func() error {
		var innerErr error
		tenants, innerErr = s.inner.ListTenants(ctx)
		return innerErr
	})
	return tenants, err
}

// CreateProject implements Store.
func (s *BreakerStore) CreateProject(ctx context.Context, project *identity.Project) error {
	return s.execute(func() error { return s.inner.CreateProject(ctx, project) })
}

// GetProject implements Store.
func (s *BreakerStore) GetProject(ctx context.Context, projectID string) (*identity.Project, error) {
	var project *identity.Project
	err := s.execute(func() error {
		var innerErr error
		project, innerErr = s.inner.GetProject(ctx, projectID)
		return innerErr
	})
	return project, err
}

// ListProjects implements Store.
func (s *BreakerStore) ListProjects(ctx context.Context, tenantID string) ([]*identity.Project, error) {
	var projects []*identity.Project
	err := s.execute(func() error {
		var innerErr error
		projects, innerErr = s.inner.ListProjects(ctx, tenantID)
		return innerErr
	})
	return projects, err
}

// CreateKey implements Store.
func (s *BreakerStore) CreateKey(ctx context.Context, key *identity.APIKey) error {
	return s.execute(func() error { return s.inner.CreateKey(ctx, key) })
}

// GetKeyByHash implements Store.
func (s *BreakerStore) GetKeyByHash(ctx context.Context, hash string) (*identity.APIKey, error) {
	var key *identity.APIKey
	err := s.execute(func() error {
		var innerErr error
		key, innerErr = s.inner.GetKeyByHash(ctx, hash)
		return innerErr
	})
	return key, err
}

// ListKeys implements Store.
func (s *BreakerStore) ListKeys(ctx context.Context, projectID string) ([]*identity.APIKey, error) {
	var keys []*identity.APIKey
	err := s.execute(func() error {
		var innerErr error
		keys, innerErr = s.inner.ListKeys(ctx, projectID)
		return innerErr
	})
	return keys, err
}

// RevokeKey implements Store.
func (s *BreakerStore) RevokeKey(ctx context.Context, keyID string) error {
	return s.execute(func() error { return s.inner.RevokeKey(ctx, keyID) })
}

// DeleteProject implements Store.
func (s *BreakerStore) DeleteProject(ctx context.Context, projectID string) error {
	return s.execute(func() error { return s.inner.DeleteProject(ctx, projectID) })
}

// DeleteTenant implements Store.
func (s *BreakerStore) DeleteTenant(ctx context.Context, tenantID string) error {
	return s.execute(func() error { return s.inner.DeleteTenant(ctx, tenantID) })
}

// CountOrphans implements Store.
func (s *BreakerStore) CountOrphans(ctx context.Context) (int, error) {
	var orphans int
	err := s.execute(func() error {
		var innerErr error
		orphans, innerErr = s.inner.CountOrphans(ctx)
		return innerErr
	})
	return orphans, err
}

// Close implements Store.
func (s *BreakerStore) Close() error {
	return s.inner.Close()
}

// Ensure BreakerStore implements Store.
var _ Store = (*BreakerStore)(nil)
