// Package middleware binds the access-control core to HTTP without
// defining any business routes. Every inbound request flows
// authenticate -> authorize -> admit; the bound identity, never a raw
// request field, is what reaches the handlers.
package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/engrama/accesscore/internal/auth"
	"github.com/engrama/accesscore/internal/credstore"
	"github.com/engrama/accesscore/internal/ratelimit"
)

// Credential headers. Both are opaque tokens that only pass through the
// guards; neither is ever logged.
const (
	// APIKeyHeader carries the tiered API key.
	APIKeyHeader = "X-API-Key"

	// AdminTokenHeader carries the admin token.
	AdminTokenHeader = "X-Admin-Token"

	// UserIDHeader carries the caller's requested user identity.
	UserIDHeader = "X-User-ID"
)

// AccessConfig wires the core components into the middleware chain.
type AccessConfig struct {
	// Resolver authenticates API keys.
	Resolver *auth.Resolver

	// Guard binds the effective identity.
	Guard *auth.Guard

	// AdminGuard authenticates administrative requests.
	AdminGuard *auth.AdminGuard

	// Limiter admits requests per bound identity.
	Limiter ratelimit.Limiter

	// AdminPathPrefix routes matching this prefix require the admin
	// token instead of an API key.
	AdminPathPrefix string

	// SkipPaths are served without authentication (health, docs).
	SkipPaths []string

	// Logger for security events.
	Logger *zap.Logger
}

// DefaultAccessConfig returns an AccessConfig with default values.
func DefaultAccessConfig() AccessConfig {
	return AccessConfig{
		AdminPathPrefix: "/v1/channels",
		SkipPaths:       []string{"/", "/health", "/metrics"},
	}
}

// Access returns the middleware enforcing the full access-control flow.
func Access(cfg AccessConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.NewNoopLimiter()
	}
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = true
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if skip[path] {
			c.Next()
			return
		}

		if cfg.AdminPathPrefix != "" && strings.HasPrefix(path, cfg.AdminPathPrefix) {
			handleAdmin(c, cfg)
			return
		}
		handleAPIKey(c, cfg)
	}
}

// handleAdmin authenticates and admits an administrative request.
func handleAdmin(c *gin.Context, cfg AccessConfig) {
	if err := cfg.AdminGuard.Verify(c.GetHeader(AdminTokenHeader)); err != nil {
		abortWithError(c, cfg, err)
		return
	}

	// Admin requests share one admission bucket per client address.
	if !admit(c, cfg, "admin:"+c.ClientIP()) {
		return
	}

	c.Set(adminKey, true)
	c.Next()
}

// handleAPIKey runs the authenticate -> authorize -> admit sequence for a
// tiered API key.
func handleAPIKey(c *gin.Context, cfg AccessConfig) {
	scope, err := cfg.Resolver.Resolve(c.Request.Context(), c.GetHeader(APIKeyHeader))
	if err != nil {
		abortWithError(c, cfg, err)
		return
	}

	requestedUser := c.GetHeader(UserIDHeader)
	if requestedUser == "" {
		requestedUser = c.Query("user_id")
	}

	bound, err := cfg.Guard.Authorize(scope, requestedUser)
	if err != nil {
		abortWithError(c, cfg, err)
		return
	}

	if !admit(c, cfg, bound.RateKey()) {
		return
	}

	setIdentity(c, bound)
	c.Next()
}

// admit consults the rate limiter and writes the 429 response on
// rejection. Returns whether the request proceeds.
func admit(c *gin.Context, cfg AccessConfig, rateKey string) bool {
	result, err := cfg.Limiter.Allow(c.Request.Context(), rateKey)
	if err != nil {
		cfg.Logger.Error("rate limiter failure", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "internal_error", "detail": "rate limiter unavailable",
		})
		return false
	}
	if !result.Allowed {
		retryAfter := int(result.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":  "rate_limited",
			"detail": ratelimit.ErrRateLimitExceeded.Error(),
		})
		return false
	}
	return true
}

// abortWithError maps a core error to its transport status.
func abortWithError(c *gin.Context, cfg AccessConfig, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	switch kind := auth.KindOf(err); kind {
	case auth.KindAuthentication:
		status, code = http.StatusUnauthorized, "unauthorized"
	case auth.KindAuthorization:
		status, code = http.StatusForbidden, "forbidden"
	case auth.KindValidation:
		status, code = http.StatusUnprocessableEntity, "validation_error"
	case auth.KindConfiguration:
		status, code = http.StatusForbidden, "forbidden"
	case auth.KindRateLimit:
		status, code = http.StatusTooManyRequests, "rate_limited"
	default:
		if errors.Is(err, credstore.ErrStoreUnavailable) {
			status, code = http.StatusServiceUnavailable, "store_unavailable"
		}
	}

	if status >= http.StatusInternalServerError {
		cfg.Logger.Error("access control failure", zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": code, "detail": publicDetail(err)})
}

// publicDetail returns a caller-safe message: classified errors are
// descriptive, everything else is generic.
func publicDetail(err error) string {
	if auth.IsAccessError(err) {
		var accessErr *auth.AccessError
		errors.As(err, &accessErr)
		return accessErr.Message
	}
	return "request could not be processed"
}
