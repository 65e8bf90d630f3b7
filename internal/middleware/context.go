package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/engrama/accesscore/internal/identity"
)

// identityKey is the gin context key carrying the bound identity.
const identityKey = "effective_identity"

// adminKey is the gin context key marking an admin-authenticated request.
const adminKey = "admin_authenticated"

// setIdentity stores the bound identity on the request context.
func setIdentity(c *gin.Context, id identity.EffectiveIdentity) {
	c.Set(identityKey, id)
}

// IdentityFromContext returns the identity bound by the authorization
// guard. ok is false on unauthenticated paths and admin requests.
func IdentityFromContext(c *gin.Context) (identity.EffectiveIdentity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return identity.EffectiveIdentity{}, false
	}
	id, ok := value.(identity.EffectiveIdentity)
	return id, ok
}

// IsAdmin reports whether the request passed admin authentication.
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(adminKey)
}
