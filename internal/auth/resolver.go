// Package auth implements credential resolution, identity binding, and
// administrative authentication for the access-control core.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/engrama/accesscore/internal/credstore"
	"github.com/engrama/accesscore/internal/identity"
)

// Resolver resolves an opaque caller-supplied credential into its scope
// record. Resolution is read-only: it never mutates state.
type Resolver struct {
	store   credstore.Store
	hasher  Hasher
	logger  *zap.Logger
	metrics *Metrics
}

// ResolverOption is a functional option for the resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger for the resolver.
func WithResolverLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithResolverHasher sets the hash algorithm for the resolver.
func WithResolverHasher(hasher Hasher) ResolverOption {
	return func(r *Resolver) {
		r.hasher = hasher
	}
}

// WithResolverMetrics sets the metrics for the resolver.
func WithResolverMetrics(metrics *Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = metrics
	}
}

// NewResolver creates a new key resolver backed by the given store.
func NewResolver(store credstore.Store, opts ...ResolverOption) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}

	r := &Resolver{
		store:  store,
		hasher: SHA256Hasher{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if !r.hasher.Deterministic() {
		return nil, errors.New("resolver requires a deterministic hash algorithm for lookup")
	}
	if r.metrics == nil {
		r.metrics = NewMetrics("accesscore")
	}
	return r, nil
}

// Resolve hashes the raw credential, looks up the matching scope record,
// and returns it. The raw credential is never stored, compared directly,
// or logged.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*identity.APIKey, error) {
	start := time.Now()

	if raw == "" {
		r.metrics.RecordResolution("error", "empty", time.Since(start))
		return nil, NewAccessError(KindAuthentication, ErrNoCredentials.Error())
	}

	digest, err := r.hasher.Hash(raw)
	if err != nil {
		r.metrics.RecordResolution("error", "hash", time.Since(start))
		return nil, fmt.Errorf("hash credential: %w", err)
	}

	key, err := r.store.GetKeyByHash(ctx, digest)
	if err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			r.metrics.RecordResolution("error", "not_found", time.Since(start))
			return nil, WrapAccessError(KindAuthentication, ErrInvalidCredential)
		}
		r.metrics.RecordResolution("error", "store", time.Since(start))
		return nil, fmt.Errorf("look up credential: %w", err)
	}

	if !key.Active {
		r.metrics.RecordResolution("error", "revoked", time.Since(start))
		return nil, WrapAccessError(KindAuthentication, ErrKeyRevoked)
	}

	r.metrics.RecordResolution("success", "valid", time.Since(start))
	r.logger.Debug("credential resolved",
		zap.String("key_id", key.ID),
		zap.String("tenant_id", key.TenantID),
		zap.String("project_id", key.ProjectID),
		zap.String("tier", string(key.Tier)),
	)
	return key, nil
}
