// Package identity defines the tenancy model of the access-control core:
// tenants, projects, API keys, and the effective identity bound to a
// request after authorization.
package identity

import (
	"time"
)

// Tier classifies an API key by whether it carries a bound end-user identity.
type Tier string

const (
	// TierProject identifies a project-level key. The caller must supply a
	// user ID on every request.
	TierProject Tier = "project"

	// TierUser identifies a user-level key. The user ID is fixed at issuance
	// and cannot be overridden by the caller.
	TierUser Tier = "user"
)

// Valid reports whether the tier is one of the known values.
func (t Tier) Valid() bool {
	return t == TierProject || t == TierUser
}

// Tenant is the root isolation boundary (an organization or customer).
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Project is an isolation unit within a tenant.
type Project struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// APIKey is the persisted scope record for a credential. Only the digest
// of the raw token is stored; the raw token is returned exactly once at
// issuance and never persisted.
type APIKey struct {
	ID        string    `json:"id"`
	Hash      string    `json:"-"`
	TenantID  string    `json:"tenant_id"`
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id,omitempty"`
	Tier      Tier      `json:"tier"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// IsUserTier reports whether the key carries a bound end-user identity.
func (k *APIKey) IsUserTier() bool {
	return k.Tier == TierUser
}

// EffectiveIdentity is the identity bound by the authorization guard.
// Downstream business logic trusts only this value, never a raw request
// field.
type EffectiveIdentity struct {
	TenantID  string `json:"tenant_id"`
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
}

// RateKey returns the rate-limiter tracking key for the identity.
func (e EffectiveIdentity) RateKey() string {
	if e.UserID == "" {
		return e.TenantID + ":" + e.ProjectID
	}
	return e.TenantID + ":" + e.ProjectID + ":" + e.UserID
}
