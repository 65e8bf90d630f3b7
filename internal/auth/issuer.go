package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/engrama/accesscore/internal/credstore"
	"github.com/engrama/accesscore/internal/identity"
)

// keyPrefix marks issued credentials so leaked tokens are recognizable in
// secret scanners.
const keyPrefix = "eng_"

// keyRandomBytes is the entropy of the random token body.
const keyRandomBytes = 24

// IssuedKey is the result of key issuance. Token carries the raw
// credential and is returned exactly once; only its digest is persisted.
type IssuedKey struct {
	Token string
	Key   *identity.APIKey
}

// Issuer creates API keys. At issuance it verifies that the target
// project is actually owned by the requesting tenant, which prevents
// binding a key across tenants.
type Issuer struct {
	store  credstore.Store
	hasher Hasher
	logger *zap.Logger
}

// NewIssuer creates a key issuer.
func NewIssuer(store credstore.Store, hasher Hasher, logger *zap.Logger) (*Issuer, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if hasher == nil {
		hasher = SHA256Hasher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Issuer{store: store, hasher: hasher, logger: logger}, nil
}

// Issue creates a new key scoped to (tenantID, projectID). A non-empty
// userID produces a user-tier key with that identity bound immutably;
// an empty userID produces a project-tier key.
func (i *Issuer) Issue(ctx context.Context, tenantID, projectID, userID string) (*IssuedKey, error) {
	project, err := i.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			return nil, WrapAccessError(KindAuthorization, ErrCrossTenantBinding)
		}
		return nil, fmt.Errorf("load project: %w", err)
	}
	if project.TenantID != tenantID {
		i.logger.Warn("cross-tenant key binding denied",
			zap.String("tenant_id", tenantID),
			zap.String("project_id", projectID),
			zap.String("owner_tenant_id", project.TenantID),
		)
		return nil, WrapAccessError(KindAuthorization, ErrCrossTenantBinding)
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	digest, err := i.hasher.Hash(token)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}

	tier := identity.TierProject
	if userID != "" {
		tier = identity.TierUser
	}
	key := &identity.APIKey{
		ID:        uuid.NewString(),
		Hash:      digest,
		TenantID:  tenantID,
		ProjectID: projectID,
		UserID:    userID,
		Tier:      tier,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	if err := i.store.CreateKey(ctx, key); err != nil {
		if errors.Is(err, credstore.ErrIntegrity) {
			return nil, WrapAccessError(KindAuthorization, ErrCrossTenantBinding)
		}
		return nil, fmt.Errorf("persist key: %w", err)
	}

	i.logger.Info("api key issued",
		zap.String("key_id", key.ID),
		zap.String("tenant_id", tenantID),
		zap.String("project_id", projectID),
		zap.String("tier", string(tier)),
	)
	return &IssuedKey{Token: token, Key: key}, nil
}

// Revoke marks a key inactive without deleting its row.
func (i *Issuer) Revoke(ctx context.Context, keyID string) error {
	if err := i.store.RevokeKey(ctx, keyID); err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			return WrapAccessError(KindValidation, err)
		}
		return err
	}
	i.logger.Info("api key revoked", zap.String("key_id", keyID))
	return nil
}

// generateToken returns a prefixed random credential.
func generateToken() (string, error) {
	buf := make([]byte, keyRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return keyPrefix + hex.EncodeToString(buf), nil
}
