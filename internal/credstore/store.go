// Package credstore persists tenants, projects, and hashed API keys, and
// owns the referential integrity between them. The rest of the core
// consumes it only through the Store interface.
package credstore

import (
	"context"
	"errors"

	"github.com/engrama/accesscore/internal/identity"
)

// Sentinel errors for credential store operations.
var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates a uniqueness violation on insert.
	ErrDuplicate = errors.New("record already exists")

	// ErrIntegrity indicates that a cascading delete could not complete
	// atomically. No partial state is committed.
	ErrIntegrity = errors.New("referential integrity violation")
)

// Store is the narrow persistence interface consumed by the core.
//
// DeleteProject and DeleteTenant are atomic cascades: dependent API key
// rows (and, for tenants, project rows) are removed in the same
// transaction as the parent, so no concurrent read observes an orphan.
type Store interface {
	// CreateTenant persists a new tenant.
	CreateTenant(ctx context.Context, tenant *identity.Tenant) error

	// GetTenant retrieves a tenant by ID.
	GetTenant(ctx context.Context, tenantID string) (*identity.Tenant, error)

	// ListTenants returns all tenants.
	ListTenants(ctx context.Context) ([]*identity.Tenant, error)

	// CreateProject persists a new project under an existing tenant.
	CreateProject(ctx context.Context, project *identity.Project) error

	// GetProject retrieves a project by ID.
	GetProject(ctx context.Context, projectID string) (*identity.Project, error)

	// ListProjects returns all projects owned by a tenant.
	ListProjects(ctx context.Context, tenantID string) ([]*identity.Project, error)

	// CreateKey persists a new API key record. The record carries only
	// the credential digest, never the raw token.
	CreateKey(ctx context.Context, key *identity.APIKey) error

	// GetKeyByHash retrieves an API key record by its credential digest.
	// Revoked (inactive) keys are returned with Active=false; the caller
	// decides whether to honor them.
	GetKeyByHash(ctx context.Context, hash string) (*identity.APIKey, error)

	// ListKeys returns all API key records for a project.
	ListKeys(ctx context.Context, projectID string) ([]*identity.APIKey, error)

	// RevokeKey marks a key inactive. Logical deletion only; the row
	// survives until its project or tenant is cascaded away.
	RevokeKey(ctx context.Context, keyID string) error

	// DeleteProject atomically deletes a project and every API key
	// referencing it.
	DeleteProject(ctx context.Context, projectID string) error

	// DeleteTenant atomically deletes a tenant, all its projects, and
	// every API key under them.
	DeleteTenant(ctx context.Context, tenantID string) error

	// CountOrphans reports dangling references: API keys whose project or
	// tenant no longer exists, and projects whose tenant no longer
	// exists. Used by post-delete integrity scans.
	CountOrphans(ctx context.Context) (int, error)

	// Close releases the underlying resources.
	Close() error
}
