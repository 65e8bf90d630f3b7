package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/engrama/accesscore/internal/identity"
	"github.com/engrama/accesscore/internal/safety"
)

// Foreign-key violation class in the PostgreSQL error code space.
const pqForeignKeyViolationClass = "23"

// PostgresStore is the production implementation of the Store interface.
// Foreign keys are enforced by the database, and cascades run inside a
// single transaction so no concurrent read observes an orphan row.
type PostgresStore struct {
	db     *sql.DB
	dbName string
	logger *zap.Logger
}

// NewPostgresStore opens a PostgreSQL-backed credential store and ensures
// the schema exists.
func NewPostgresStore(ctx context.Context, uri string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("postgres", uri)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{
		db:     db,
		dbName: databaseName(uri),
		logger: logger,
	}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// databaseName extracts the database name from a connection URI.
func databaseName(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Path, "/")
}

// initSchema creates the three relations with enforced foreign keys.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS tenants (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS projects (
		id         TEXT PRIMARY KEY,
		tenant_id  TEXT NOT NULL REFERENCES tenants(id),
		name       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (tenant_id, id)
	);
	CREATE TABLE IF NOT EXISTS api_keys (
		id         TEXT PRIMARY KEY,
		key_hash   TEXT NOT NULL UNIQUE,
		tenant_id  TEXT NOT NULL,
		project_id TEXT NOT NULL,
		user_id    TEXT DEFAULT NULL,
		tier       TEXT NOT NULL,
		active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		FOREIGN KEY (tenant_id, project_id) REFERENCES projects(tenant_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_api_keys_hash ON api_keys(key_hash);
	CREATE INDEX IF NOT EXISTS idx_api_keys_project ON api_keys(project_id);
	CREATE INDEX IF NOT EXISTS idx_projects_tenant ON projects(tenant_id);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// CreateTenant implements Store.
func (s *PostgresStore) CreateTenant(ctx context.Context, tenant *identity.Tenant) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, created_at) VALUES ($1, $2, $3)`,
		tenant.ID, tenant.Name, tenant.CreatedAt,
	)
	return s.mapError(err)
}

// GetTenant implements Store.
func (s *PostgresStore) GetTenant(ctx context.Context, tenantID string) (*identity.Tenant, error) {
	tenant := &identity.Tenant{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM tenants WHERE id = $1`, tenantID,
	).Scan(&tenant.ID, &tenant.Name, &tenant.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

// ListTenants implements Store.
func (s *PostgresStore) ListTenants(ctx context.Context) ([]*identity.Tenant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM tenants ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*identity.Tenant
	for rows.Next() {
		tenant := &identity.Tenant{}
		if err := rows.Scan(&tenant.ID, &tenant.Name, &tenant.CreatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

// CreateProject implements Store.
func (s *PostgresStore) CreateProject(ctx context.Context, project *identity.Project) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, tenant_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		project.ID, project.TenantID, project.Name, project.CreatedAt,
	)
	return s.mapError(err)
}

// GetProject implements Store.
func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (*identity.Project, error) {
	project := &identity.Project{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, created_at FROM projects WHERE id = $1`, projectID,
	).Scan(&project.ID, &project.TenantID, &project.Name, &project.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return project, nil
}

// ListProjects implements Store.
func (s *PostgresStore) ListProjects(ctx context.Context, tenantID string) ([]*identity.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, name, created_at FROM projects
		 WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*identity.Project
	for rows.Next() {
		project := &identity.Project{}
		if err := rows.Scan(&project.ID, &project.TenantID, &project.Name, &project.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// CreateKey implements Store.
func (s *PostgresStore) CreateKey(ctx context.Context, key *identity.APIKey) error {
	userID := sql.NullString{String: key.UserID, Valid: key.UserID != ""}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, key_hash, tenant_id, project_id, user_id, tier, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.Hash, key.TenantID, key.ProjectID, userID, string(key.Tier), key.Active, key.CreatedAt,
	)
	return s.mapError(err)
}

// GetKeyByHash implements Store.
func (s *PostgresStore) GetKeyByHash(ctx context.Context, hash string) (*identity.APIKey, error) {
	key := &identity.APIKey{}
	var userID sql.NullString
	var tier string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, key_hash, tenant_id, project_id, user_id, tier, active, created_at
		 FROM api_keys WHERE key_hash = $1`, hash,
	).Scan(&key.ID, &key.Hash, &key.TenantID, &key.ProjectID, &userID, &tier, &key.Active, &key.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	key.UserID = userID.String
	key.Tier = identity.Tier(tier)
	return key, nil
}

// ListKeys implements Store.
func (s *PostgresStore) ListKeys(ctx context.Context, projectID string) ([]*identity.APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, key_hash, tenant_id, project_id, user_id, tier, active, created_at
		 FROM api_keys WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*identity.APIKey
	for rows.Next() {
		key := &identity.APIKey{}
		var userID sql.NullString
		var tier string
		if err := rows.Scan(&key.ID, &key.Hash, &key.TenantID, &key.ProjectID,
			&userID, &tier, &key.Active, &key.CreatedAt); err != nil {
			return nil, err
		}
		key.UserID = userID.String
		key.Tier = identity.Tier(tier)
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// RevokeKey implements Store.
func (s *PostgresStore) RevokeKey(ctx context.Context, keyID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET active = FALSE WHERE id = $1`, keyID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProject implements Store. Keys are deleted before the project row
// inside one transaction so the foreign keys stay satisfied throughout.
func (s *PostgresStore) DeleteProject(ctx context.Context, projectID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM api_keys WHERE project_id = $1`, projectID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx,
			`DELETE FROM projects WHERE id = $1`, projectID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteTenant implements Store. The cascade runs leaves-first: keys,
// then projects, then the tenant row, all in one transaction.
func (s *PostgresStore) DeleteTenant(ctx context.Context, tenantID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM api_keys WHERE tenant_id = $1`, tenantID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM projects WHERE tenant_id = $1`, tenantID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx,
			`DELETE FROM tenants WHERE id = $1`, tenantID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CountOrphans implements Store.
func (s *PostgresStore) CountOrphans(ctx context.Context) (int, error) {
	var orphans int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM projects p
			 WHERE NOT EXISTS (SELECT 1 FROM tenants t WHERE t.id = p.tenant_id))
			+
			(SELECT count(*) FROM api_keys k
			 WHERE NOT EXISTS (SELECT 1 FROM projects p WHERE p.id = k.project_id)
			    OR NOT EXISTS (SELECT 1 FROM tenants t WHERE t.id = k.tenant_id))
	`).Scan(&orphans)
	return orphans, err
}

// TruncateAll wipes every relation owned by this store. Used only by test
// harnesses; the safety gate is consulted before any statement is issued
// and the operation aborts fail-closed on any mismatch.
func (s *PostgresStore) TruncateAll(ctx context.Context, environment string) error {
	if err := safety.AssertDestructiveOperationAllowed(environment, s.dbName); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `TRUNCATE TABLE api_keys, projects, tenants CASCADE`)
	if err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	s.logger.Warn("credential store truncated",
		zap.String("database", s.dbName),
		zap.String("environment", environment),
	)
	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction. Any failure rolls back and is
// surfaced as ErrIntegrity unless it already carries a store sentinel.
func (s *PostgresStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrIntegrity, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", zap.Error(rbErr))
		}
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrIntegrity, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrIntegrity, err)
	}
	return nil
}

// mapError translates driver errors to store sentinels.
func (s *PostgresStore) mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Name() == "unique_violation" {
			return ErrDuplicate
		}
		if strings.HasPrefix(string(pqErr.Code), pqForeignKeyViolationClass) {
			return ErrIntegrity
		}
	}
	return err
}

// Ensure PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
