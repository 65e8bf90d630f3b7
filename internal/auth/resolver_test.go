package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engrama/accesscore/internal/credstore"
	"github.com/engrama/accesscore/internal/identity"
)

// seedKey stores a key for the given raw credential and returns the record.
func seedKey(t *testing.T, store credstore.Store, raw string, active bool) *identity.APIKey {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.CreateTenant(ctx, &identity.Tenant{ID: "t1", Name: "acme", CreatedAt: time.Now()}))
	require.NoError(t, store.CreateProject(ctx, &identity.Project{ID: "p1", TenantID: "t1", Name: "app", CreatedAt: time.Now()}))

	digest, err := SHA256Hasher{}.Hash(raw)
	require.NoError(t, err)

	key := &identity.APIKey{
		ID:        "key-1",
		Hash:      digest,
		TenantID:  "t1",
		ProjectID: "p1",
		UserID:    "bob",
		Tier:      identity.TierUser,
		Active:    active,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.CreateKey(ctx, key))
	return key
}

func TestResolver_Resolve(t *testing.T) {
	store := credstore.NewMemoryStore()
	seedKey(t, store, "eng_raw_token", true)

	resolver, err := NewResolver(store)
	require.NoError(t, err)

	key, err := resolver.Resolve(context.Background(), "eng_raw_token")
	require.NoError(t, err)
	assert.Equal(t, "t1", key.TenantID)
	assert.Equal(t, "p1", key.ProjectID)
	assert.Equal(t, "bob", key.UserID)
	assert.Equal(t, identity.TierUser, key.Tier)
}

func TestResolver_Resolve_UnknownCredential(t *testing.T) {
	resolver, err := NewResolver(credstore.NewMemoryStore())
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), "eng_nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.Equal(t, KindAuthentication, KindOf(err))
}

func TestResolver_Resolve_EmptyCredential(t *testing.T) {
	resolver, err := NewResolver(credstore.NewMemoryStore())
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, KindAuthentication, KindOf(err))
}

func TestResolver_Resolve_RevokedKey(t *testing.T) {
	store := credstore.NewMemoryStore()
	seedKey(t, store, "eng_revoked", false)

	resolver, err := NewResolver(store)
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), "eng_revoked")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeyRevoked)
	assert.Equal(t, KindAuthentication, KindOf(err))
}

func TestResolver_Resolve_DoesNotMutate(t *testing.T) {
	store := credstore.NewMemoryStore()
	seeded := seedKey(t, store, "eng_raw_token", true)

	resolver, err := NewResolver(store)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		key, err := resolver.Resolve(context.Background(), "eng_raw_token")
		require.NoError(t, err)
		assert.Equal(t, seeded.ID, key.ID)
		assert.True(t, key.Active)
	}
}

func TestResolver_RejectsSaltedHasher(t *testing.T) {
	// bcrypt digests are salted, so lookup-by-hash cannot work; the
	// resolver must refuse the combination at construction.
	_, err := NewResolver(credstore.NewMemoryStore(), WithResolverHasher(BcryptHasher{}))
	require.Error(t, err)
}
