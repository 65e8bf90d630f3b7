package credstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engrama/accesscore/internal/identity"
)

func seedHierarchy(t *testing.T, store *MemoryStore) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.CreateTenant(ctx, &identity.Tenant{ID: "t1", Name: "acme", CreatedAt: now}))
	require.NoError(t, store.CreateTenant(ctx, &identity.Tenant{ID: "t2", Name: "rival", CreatedAt: now}))
	require.NoError(t, store.CreateProject(ctx, &identity.Project{ID: "p1", TenantID: "t1", Name: "app", CreatedAt: now}))
	require.NoError(t, store.CreateProject(ctx, &identity.Project{ID: "p2", TenantID: "t1", Name: "web", CreatedAt: now}))
	require.NoError(t, store.CreateProject(ctx, &identity.Project{ID: "p3", TenantID: "t2", Name: "other", CreatedAt: now}))

	keys := []*identity.APIKey{
		{ID: "k1", Hash: "h1", TenantID: "t1", ProjectID: "p1", Tier: identity.TierProject, Active: true, CreatedAt: now},
		{ID: "k2", Hash: "h2", TenantID: "t1", ProjectID: "p1", UserID: "bob", Tier: identity.TierUser, Active: true, CreatedAt: now},
		{ID: "k3", Hash: "h3", TenantID: "t1", ProjectID: "p2", Tier: identity.TierProject, Active: true, CreatedAt: now},
		{ID: "k4", Hash: "h4", TenantID: "t2", ProjectID: "p3", Tier: identity.TierProject, Active: true, CreatedAt: now},
	}
	for _, key := range keys {
		require.NoError(t, store.CreateKey(ctx, key))
	}
}

func TestMemoryStore_GetKeyByHash(t *testing.T) {
	store := NewMemoryStore()
	seedHierarchy(t, store)
	ctx := context.Background()

	key, err := store.GetKeyByHash(ctx, "h2")
	require.NoError(t, err)
	assert.Equal(t, "k2", key.ID)
	assert.Equal(t, "bob", key.UserID)

	_, err = store.GetKeyByHash(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CreateKey_CrossTenantRejected(t *testing.T) {
	store := NewMemoryStore()
	seedHierarchy(t, store)

	// p3 belongs to t2; a key claiming t1 ownership violates integrity.
	err := store.CreateKey(context.Background(), &identity.APIKey{
		ID: "k5", Hash: "h5", TenantID: "t1", ProjectID: "p3",
		Tier: identity.TierProject, Active: true,
	})
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestMemoryStore_CreateKey_Duplicate(t *testing.T) {
	store := NewMemoryStore()
	seedHierarchy(t, store)

	err := store.CreateKey(context.Background(), &identity.APIKey{
		ID: "k9", Hash: "h1", TenantID: "t1", ProjectID: "p1",
		Tier: identity.TierProject, Active: true,
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryStore_RevokeKey(t *testing.T) {
	store := NewMemoryStore()
	seedHierarchy(t, store)
	ctx := context.Background()

	require.NoError(t, store.RevokeKey(ctx, "k1"))

	// Logical deletion: the row is still reachable, marked inactive.
	key, err := store.GetKeyByHash(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, key.Active)

	assert.ErrorIs(t, store.RevokeKey(ctx, "ghost"), ErrNotFound)
}

func TestMemoryStore_DeleteProject_Cascades(t *testing.T) {
	store := NewMemoryStore()
	seedHierarchy(t, store)
	ctx := context.Background()

	require.NoError(t, store.DeleteProject(ctx, "p1"))

	_, err := store.GetProject(ctx, "p1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetKeyByHash(ctx, "h1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetKeyByHash(ctx, "h2")
	assert.ErrorIs(t, err, ErrNotFound)

	// Sibling project and tenant survive untouched.
	_, err = store.GetKeyByHash(ctx, "h3")
	assert.NoError(t, err)

	orphans, err := store.CountOrphans(ctx)
	require.NoError(t, err)
	assert.Zero(t, orphans)
}

func TestMemoryStore_DeleteTenant_CascadesTransitively(t *testing.T) {
	store := NewMemoryStore()
	seedHierarchy(t, store)
	ctx := context.Background()

	require.NoError(t, store.DeleteTenant(ctx, "t1"))

	_, err := store.GetTenant(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)
	for _, projectID := range []string{"p1", "p2"} {
		_, err = store.GetProject(ctx, projectID)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	for _, hash := range []string{"h1", "h2", "h3"} {
		_, err = store.GetKeyByHash(ctx, hash)
		assert.ErrorIs(t, err, ErrNotFound)
	}

	// The unrelated tenant is untouched.
	_, err = store.GetTenant(ctx, "t2")
	assert.NoError(t, err)
	_, err = store.GetKeyByHash(ctx, "h4")
	assert.NoError(t, err)

	orphans, err := store.CountOrphans(ctx)
	require.NoError(t, err)
	assert.Zero(t, orphans, "no key or project row may survive its tenant")
}

func TestMemoryStore_DeleteMissing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	assert.ErrorIs(t, store.DeleteProject(ctx, "ghost"), ErrNotFound)
	assert.ErrorIs(t, store.DeleteTenant(ctx, "ghost"), ErrNotFound)
}

func TestMemoryStore_ListScopedToOwner(t *testing.T) {
	store := NewMemoryStore()
	seedHierarchy(t, store)
	ctx := context.Background()

	projects, err := store.ListProjects(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, projects, 2)

	keys, err := store.ListKeys(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestMemoryStore_CreateProject_RequiresTenant(t *testing.T) {
	store := NewMemoryStore()

	err := store.CreateProject(context.Background(), &identity.Project{
		ID: "p1", TenantID: "ghost", Name: "app",
	})
	assert.ErrorIs(t, err, ErrIntegrity)
}
