// Package cascade orchestrates referential-integrity-safe deletion across
// the tenant -> project -> key hierarchy. All cascades are physical and
// atomic; the only soft-delete in the system is key revocation, which
// lives in the auth issuer.
package cascade

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/engrama/accesscore/internal/credstore"
)

// Manager drives cascading deletes through the credential store's
// transactional operations.
type Manager struct {
	store  credstore.Store
	logger *zap.Logger
}

// NewManager creates a cascade manager.
func NewManager(store credstore.Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, logger: logger}
}

// DeleteProject deletes a project and every API key referencing it in one
// atomic transaction.
func (m *Manager) DeleteProject(ctx context.Context, projectID string) error {
	project, err := m.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}

	keys, err := m.store.ListKeys(ctx, projectID)
	if err != nil {
		return err
	}

	if err := m.store.DeleteProject(ctx, projectID); err != nil {
		if errors.Is(err, credstore.ErrIntegrity) {
			return fmt.Errorf("cascade delete project %s: %w", projectID, err)
		}
		return err
	}

	m.logger.Info("project deleted",
		zap.String("project_id", projectID),
		zap.String("tenant_id", project.TenantID),
		zap.Int("keys_removed", len(keys)),
	)
	return nil
}

// DeleteTenant deletes a tenant, all its projects, and every API key
// under them, transitively, in one atomic transaction.
func (m *Manager) DeleteTenant(ctx context.Context, tenantID string) error {
	if _, err := m.store.GetTenant(ctx, tenantID); err != nil {
		return err
	}

	projects, err := m.store.ListProjects(ctx, tenantID)
	if err != nil {
		return err
	}

	if err := m.store.DeleteTenant(ctx, tenantID); err != nil {
		if errors.Is(err, credstore.ErrIntegrity) {
			return fmt.Errorf("cascade delete tenant %s: %w", tenantID, err)
		}
		return err
	}

	m.logger.Info("tenant deleted",
		zap.String("tenant_id", tenantID),
		zap.Int("projects_removed", len(projects)),
	)
	return nil
}

// VerifyIntegrity runs a post-delete scan and fails if any dangling
// reference survived a cascade.
func (m *Manager) VerifyIntegrity(ctx context.Context) error {
	orphans, err := m.store.CountOrphans(ctx)
	if err != nil {
		return err
	}
	if orphans > 0 {
		return fmt.Errorf("%w: %d orphan rows after cascade", credstore.ErrIntegrity, orphans)
	}
	return nil
}
