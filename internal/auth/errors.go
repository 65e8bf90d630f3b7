package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for authentication and authorization operations.
var (
	// ErrNoCredentials indicates that no credential was provided.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredential indicates that no active key matches the
	// provided credential.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrKeyRevoked indicates that the matching key has been revoked.
	ErrKeyRevoked = errors.New("api key revoked")

	// ErrInvalidAdminToken indicates a missing or mismatched admin token.
	ErrInvalidAdminToken = errors.New("invalid admin token")

	// ErrAdminTokenUnset indicates that no admin token is configured, so
	// administrative access is denied outright.
	ErrAdminTokenUnset = errors.New("admin token not configured")

	// ErrCrossUserAccess indicates that a user-tier key attempted to act
	// as a different user.
	ErrCrossUserAccess = errors.New("cross-user access denied")

	// ErrCrossTenantBinding indicates an attempt to bind a key to a
	// project owned by a different tenant.
	ErrCrossTenantBinding = errors.New("project not owned by tenant")

	// ErrMissingUserID indicates a project-tier request without a user ID.
	ErrMissingUserID = errors.New("user_id is required for project-tier keys")
)

// Kind classifies an access error for boundary handling.
type Kind string

const (
	// KindAuthentication covers absent, unknown, or inactive credentials.
	KindAuthentication Kind = "authentication"

	// KindAuthorization covers cross-user and cross-tenant denials.
	KindAuthorization Kind = "authorization"

	// KindValidation covers structurally missing request fields.
	KindValidation Kind = "validation"

	// KindRateLimit covers sliding-window rejections.
	KindRateLimit Kind = "rate_limit"

	// KindConfiguration covers unsafe or missing configuration. Fatal.
	KindConfiguration Kind = "configuration"

	// KindIntegrity covers cascade deletions that could not complete
	// atomically.
	KindIntegrity Kind = "integrity"
)

// HTTPStatus maps the kind to a transport-level status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// AccessError is the single structured error surfaced at the boundary of
// the access-control core.
type AccessError struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AccessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("access error (%s): %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("access error (%s): %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *AccessError) Unwrap() error {
	return e.Cause
}

// NewAccessError creates a new AccessError.
func NewAccessError(kind Kind, message string) *AccessError {
	return &AccessError{Kind: kind, Message: message}
}

// WrapAccessError wraps an error with its access-control classification.
func WrapAccessError(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &AccessError{Kind: kind, Message: err.Error(), Cause: err}
}

// KindOf returns the classification of an error, or an empty Kind when
// the error did not originate in this core.
func KindOf(err error) Kind {
	var accessErr *AccessError
	if errors.As(err, &accessErr) {
		return accessErr.Kind
	}
	return ""
}

// IsAccessError checks whether an error carries an access classification.
func IsAccessError(err error) bool {
	var accessErr *AccessError
	return errors.As(err, &accessErr)
}
