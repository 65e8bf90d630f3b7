package credstore

import (
	"context"

	"github.com/engrama/accesscore/internal/identity"
)

// PooledStore bounds the number of concurrent calls into the backing
// store with a semaphore, so slow storage never stalls unrelated request
// workers. Calls beyond the bound wait; a canceled context stops waiting.
type PooledStore struct {
	inner Store
	sem   chan struct{}
}

// DefaultPoolSize is the default bound on concurrent store calls.
const DefaultPoolSize = 16

// NewPooledStore wraps a store with a bounded worker pool of the given
// size.
func NewPooledStore(inner Store, size int) *PooledStore {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &PooledStore{
		inner: inner,
		sem:   make(chan struct{}, size),
	}
}

// acquire claims a pool slot or fails with the context's error.
func (s *PooledStore) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *PooledStore) release() {
	<-s.sem
}

// CreateTenant implements Store.
func (s *PooledStore) CreateTenant(ctx context.Context, tenant *identity.Tenant) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return s.inner.CreateTenant(ctx, tenant)
}

// GetTenant implements Store.
func (s *PooledStore) GetTenant(ctx context.Context, tenantID string) (*identity.Tenant, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()
	return s.inner.GetTenant(ctx, tenantID)
}

// ListTenants implements Store.
func (s *PooledStore) ListTenants(ctx context.Context) ([]*identity.Tenant, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()
	return s.inner.ListTenants(ctx)
}

// CreateProject implements Store.
func (s *PooledStore) CreateProject(ctx context.Context, project *identity.Project) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return s.inner.CreateProject(ctx, project)
}

// GetProject implements Store.
func (s *PooledStore) GetProject(ctx context.Context, projectID string) (*identity.Project, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()
	return s.inner.GetProject(ctx, projectID)
}

// ListProjects implements Store.
func (s *PooledStore) ListProjects(ctx context.Context, tenantID string) ([]*identity.Project, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()
	return s.inner.ListProjects(ctx, tenantID)
}

// CreateKey implements Store.
func (s *PooledStore) CreateKey(ctx context.Context, key *identity.APIKey) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return s.inner.CreateKey(ctx, key)
}

// GetKeyByHash implements Store.
func (s *PooledStore) GetKeyByHash(ctx context.Context, hash string) (*identity.APIKey, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()
	return s.inner.GetKeyByHash(ctx, hash)
}

// ListKeys implements Store.
func (s *PooledStore) ListKeys(ctx context.Context, projectID string) ([]*identity.APIKey, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()
	return s.inner.ListKeys(ctx, projectID)
}

// RevokeKey implements Store.
func (s *PooledStore) RevokeKey(ctx context.Context, keyID string) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return s.inner.RevokeKey(ctx, keyID)
}

// DeleteProject implements Store.
func (s *PooledStore) DeleteProject(ctx context.Context, projectID string) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return s.inner.DeleteProject(ctx, projectID)
}

// DeleteTenant implements Store.
func (s *PooledStore) DeleteTenant(ctx context.Context, tenantID string) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return s.inner.DeleteTenant(ctx, tenantID)
}

// CountOrphans implements Store.
func (s *PooledStore) CountOrphans(ctx context.Context) (int, error) {
	if err := s.acquire(ctx); err != nil {
		return 0, err
	}
	defer s.release()
	return s.inner.CountOrphans(ctx)
}

// Close implements Store.
func (s *PooledStore) Close() error {
	return s.inner.Close()
}

// Ensure PooledStore implements Store.
var _ Store = (*PooledStore)(nil)
