package credstore

import (
	"context"
	"sync"

	"github.com/engrama/accesscore/internal/identity"
)

// MemoryStore is an in-memory implementation of the Store interface. It
// enforces the same referential rules as the PostgreSQL store and is used
// by tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	tenants  map[string]*identity.Tenant
	projects map[string]*identity.Project
	keys     map[string]*identity.APIKey // keyed by ID
	byHash   map[string]string           // digest -> key ID
}

// NewMemoryStore creates a new in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:  make(map[string]*identity.Tenant),
		projects: make(map[string]*identity.Project),
		keys:     make(map[string]*identity.APIKey),
		byHash:   make(map[string]string),
	}
}

// CreateTenant implements Store.
func (s *MemoryStore) CreateTenant(ctx context.Context, tenant *identity.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenants[tenant.ID]; exists {
		return ErrDuplicate
	}
	cp := *tenant
	s.tenants[tenant.ID] = &cp
	return nil
}

// GetTenant implements Store.
func (s *MemoryStore) GetTenant(ctx context.Context, tenantID string) (*identity.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenant, ok := s.tenants[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tenant
	return &cp, nil
}

// ListTenants implements Store.
func (s *MemoryStore) ListTenants(ctx context.Context) ([]*identity.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenants := make([]*identity.Tenant, 0, len(s.tenants))
	for _, tenant := range s.tenants {
		cp := *tenant
		tenants = append(tenants, &cp)
	}
	return tenants, nil
}

// CreateProject implements Store. The owning tenant must exist.
func (s *MemoryStore) CreateProject(ctx context.Context, project *identity.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.projects[project.ID]; exists {
		return ErrDuplicate
	}
	if _, ok := s.tenants[project.TenantID]; !ok {
		return ErrIntegrity
	}
	cp := *project
	s.projects[project.ID] = &cp
	return nil
}

// GetProject implements Store.
func (s *MemoryStore) GetProject(ctx context.Context, projectID string) (*identity.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project, ok := s.projects[projectID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *project
	return &cp, nil
}

// ListProjects implements Store.
func (s *MemoryStore) ListProjects(ctx context.Context, tenantID string) ([]*identity.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects := make([]*identity.Project, 0)
	for _, project := range s.projects {
		if project.TenantID == tenantID {
			cp := *project
			projects = append(projects, &cp)
		}
	}
	return projects, nil
}

// CreateKey implements Store. The referenced tenant and project must
// exist and the project must belong to the tenant.
func (s *MemoryStore) CreateKey(ctx context.Context, key *identity.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[key.ID]; exists {
		return ErrDuplicate
	}
	if _, exists := s.byHash[key.Hash]; exists {
		return ErrDuplicate
	}
	project, ok := s.projects[key.ProjectID]
	if !ok || project.TenantID != key.TenantID {
		return ErrIntegrity
	}
	cp := *key
	s.keys[key.ID] = &cp
	s.byHash[key.Hash] = key.ID
	return nil
}

// GetKeyByHash implements Store.
func (s *MemoryStore) GetKeyByHash(ctx context.Context, hash string) (*identity.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keyID, ok := s.byHash[hash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.keys[keyID]
	return &cp, nil
}

// ListKeys implements Store.
func (s *MemoryStore) ListKeys(ctx context.Context, projectID string) ([]*identity.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]*identity.APIKey, 0)
	for _, key := range s.keys {
		if key.ProjectID == projectID {
			cp := *key
			keys = append(keys, &cp)
		}
	}
	return keys, nil
}

// RevokeKey implements Store.
func (s *MemoryStore) RevokeKey(ctx context.Context, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[keyID]
	if !ok {
		return ErrNotFound
	}
	key.Active = false
	return nil
}

// DeleteProject implements Store. Keys first, then the project, under a
// single lock so no reader observes an orphan.
func (s *MemoryStore) DeleteProject(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return ErrNotFound
	}
	s.deleteProjectLocked(projectID)
	return nil
}

// DeleteTenant implements Store.
func (s *MemoryStore) DeleteTenant(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[tenantID]; !ok {
		return ErrNotFound
	}
	for projectID, project := range s.projects {
		if project.TenantID == tenantID {
			s.deleteProjectLocked(projectID)
		}
	}
	// Keys bound directly to the tenant (defensively, should be none
	// after the project sweep).
	for keyID, key := range s.keys {
		if key.TenantID == tenantID {
			delete(s.byHash, key.Hash)
			delete(s.keys, keyID)
		}
	}
	delete(s.tenants, tenantID)
	return nil
}

func (s *MemoryStore) deleteProjectLocked(projectID string) {
	for keyID, key := range s.keys {
		if key.ProjectID == projectID {
			delete(s.byHash, key.Hash)
			delete(s.keys, keyID)
		}
	}
	delete(s.projects, projectID)
}

// CountOrphans implements Store.
func (s *MemoryStore) CountOrphans(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orphans := 0
	for _, project := range s.projects {
		if _, ok := s.tenants[project.TenantID]; !ok {
			orphans++
		}
	}
	for _, key := range s.keys {
		if _, ok := s.projects[key.ProjectID]; !ok {
			orphans++
			continue
		}
		if _, ok := s.tenants[key.TenantID]; !ok {
			orphans++
		}
	}
	return orphans, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
