package auth

import (
	"crypto/sha256"
	"crypto/subtle"

	"go.uber.org/zap"
)

// AdminGuard authenticates administrative requests against a single
// configured token, independent of the tiered key system.
//
// An empty configured token always denies: there is no unauthenticated
// admin fallback in any environment.
type AdminGuard struct {
	digest     [sha256.Size]byte
	configured bool
	logger     *zap.Logger
}

// NewAdminGuard creates an admin guard for the configured token.
func NewAdminGuard(configuredToken string, logger *zap.Logger) *AdminGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &AdminGuard{logger: logger}
	if configuredToken != "" {
		g.digest = sha256.Sum256([]byte(configuredToken))
		g.configured = true
	}
	return g
}

// Configured reports whether an admin token is set.
func (g *AdminGuard) Configured() bool {
	return g.configured
}

// Verify checks the supplied token. Both sides are reduced to fixed-size
// digests before the constant-time comparison, so neither the token
// length nor a matching prefix leaks through timing.
func (g *AdminGuard) Verify(supplied string) error {
	if !g.configured {
		g.logger.Error("admin request blocked: no admin token configured")
		return WrapAccessError(KindConfiguration, ErrAdminTokenUnset)
	}
	if supplied == "" {
		return WrapAccessError(KindAuthentication, ErrInvalidAdminToken)
	}

	suppliedDigest := sha256.Sum256([]byte(supplied))
	if subtle.ConstantTimeCompare(suppliedDigest[:], g.digest[:]) != 1 {
		g.logger.Warn("invalid admin token attempt")
		return WrapAccessError(KindAuthentication, ErrInvalidAdminToken)
	}
	return nil
}
