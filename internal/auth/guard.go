package auth

import (
	"go.uber.org/zap"

	"github.com/engrama/accesscore/internal/identity"
)

// Guard decides whether a resolved scope may act as the requested user
// and computes the effective identity used downstream. It is the single
// place identity binding happens; business logic trusts only the
// EffectiveIdentity it returns, never a raw request field.
//
// Decision table:
//
//	user-tier key,    no requested user          -> bound user
//	user-tier key,    requested user == bound    -> bound user
//	user-tier key,    requested user != bound    -> cross-user denial
//	project-tier key, requested user present     -> requested user
//	project-tier key, no requested user          -> missing user_id
//
// A user-tier key must never let the caller override the bound identity;
// silently substituting the caller's value is the exact defect this guard
// exists to eliminate.
type Guard struct {
	logger *zap.Logger
}

// NewGuard creates a new authorization guard.
func NewGuard(logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{logger: logger}
}

// Authorize applies the decision table. Pure and stateless per call.
func (g *Guard) Authorize(scope *identity.APIKey, requestedUserID string) (identity.EffectiveIdentity, error) {
	if scope.IsUserTier() {
		if requestedUserID != "" && requestedUserID != scope.UserID {
			g.logger.Warn("cross-user access denied",
				zap.String("key_id", scope.ID),
				zap.String("tenant_id", scope.TenantID),
				zap.String("project_id", scope.ProjectID),
			)
			return identity.EffectiveIdentity{}, WrapAccessError(KindAuthorization, ErrCrossUserAccess)
		}
		return identity.EffectiveIdentity{
			TenantID:  scope.TenantID,
			ProjectID: scope.ProjectID,
			UserID:    scope.UserID,
		}, nil
	}

	if requestedUserID == "" {
		return identity.EffectiveIdentity{}, WrapAccessError(KindValidation, ErrMissingUserID)
	}
	return identity.EffectiveIdentity{
		TenantID:  scope.TenantID,
		ProjectID: scope.ProjectID,
		UserID:    requestedUserID,
	}, nil
}
