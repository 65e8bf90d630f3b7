package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engrama/accesscore/internal/credstore"
	"github.com/engrama/accesscore/internal/identity"
)

func issuerFixture(t *testing.T) (*Issuer, credstore.Store) {
	t.Helper()
	ctx := context.Background()
	store := credstore.NewMemoryStore()

	require.NoError(t, store.CreateTenant(ctx, &identity.Tenant{ID: "t1", Name: "acme", CreatedAt: time.Now()}))
	require.NoError(t, store.CreateTenant(ctx, &identity.Tenant{ID: "t2", Name: "rival", CreatedAt: time.Now()}))
	require.NoError(t, store.CreateProject(ctx, &identity.Project{ID: "p1", TenantID: "t1", Name: "app", CreatedAt: time.Now()}))

	issuer, err := NewIssuer(store, nil, nil)
	require.NoError(t, err)
	return issuer, store
}

func TestIssuer_Issue_ProjectTier(t *testing.T) {
	issuer, store := issuerFixture(t)

	issued, err := issuer.Issue(context.Background(), "t1", "p1", "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(issued.Token, "eng_"))
	assert.Equal(t, identity.TierProject, issued.Key.Tier)
	assert.Empty(t, issued.Key.UserID)
	assert.True(t, issued.Key.Active)
	assert.NotContains(t, issued.Key.Hash, issued.Token, "raw token must never be stored")

	// The stored record is reachable by digest only.
	digest, err := SHA256Hasher{}.Hash(issued.Token)
	require.NoError(t, err)
	stored, err := store.GetKeyByHash(context.Background(), digest)
	require.NoError(t, err)
	assert.Equal(t, issued.Key.ID, stored.ID)
}

func TestIssuer_Issue_UserTier(t *testing.T) {
	issuer, _ := issuerFixture(t)

	issued, err := issuer.Issue(context.Background(), "t1", "p1", "bob")
	require.NoError(t, err)
	assert.Equal(t, identity.TierUser, issued.Key.Tier)
	assert.Equal(t, "bob", issued.Key.UserID)
}

func TestIssuer_Issue_CrossTenantBindingDenied(t *testing.T) {
	issuer, _ := issuerFixture(t)

	// p1 belongs to t1; issuing it under t2 must be an authorization
	// denial, not a not-found.
	_, err := issuer.Issue(context.Background(), "t2", "p1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCrossTenantBinding)
	assert.Equal(t, KindAuthorization, KindOf(err))
}

func TestIssuer_Issue_UnknownProjectDenied(t *testing.T) {
	issuer, _ := issuerFixture(t)

	_, err := issuer.Issue(context.Background(), "t1", "ghost", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCrossTenantBinding)
}

func TestIssuer_TokensAreUnique(t *testing.T) {
	issuer, _ := issuerFixture(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		issued, err := issuer.Issue(context.Background(), "t1", "p1", "")
		require.NoError(t, err)
		assert.False(t, seen[issued.Token])
		seen[issued.Token] = true
	}
}

func TestIssuer_Revoke(t *testing.T) {
	issuer, store := issuerFixture(t)

	issued, err := issuer.Issue(context.Background(), "t1", "p1", "bob")
	require.NoError(t, err)

	require.NoError(t, issuer.Revoke(context.Background(), issued.Key.ID))

	// Revocation is logical: the row survives, marked inactive.
	stored, err := store.GetKeyByHash(context.Background(), issued.Key.Hash)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	err = issuer.Revoke(context.Background(), "ghost")
	assert.Equal(t, KindValidation, KindOf(err))
}
