package auth

import (
	"errors"
	"net/http"
)

// ErrUnauthorized matches every *AuthError via errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// Rejection reasons surfaced to clients.
const (
	ReasonUnauthorized     = "Unauthorized"
	ReasonMissingHeader    = "Missing Authorization Header"
	ReasonBadHeader        = "Bad Authorization header. Expected value 'Bearer <JWT>'"
	ReasonInvalidAPIKey    = "Invalid API key"
	ReasonInvalidAuthToken = "Invalid auth token"
)

// AuthError is a credential rejection. It always maps to 401.
type AuthError struct {
	Reason string
	Err    error
}

// Unauthorized builds an AuthError with the given reason and optional cause.
func Unauthorized(reason string, cause error) *AuthError {
	return &AuthError{Reason: reason, Err: cause}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

// Unwrap exposes both ErrUnauthorized and the underlying cause.
func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnauthorized}
	}
	return []error{ErrUnauthorized, e.Err}
}

// StatusCode returns the HTTP status for the rejection.
func (e *AuthError) StatusCode() int {
	return http.StatusUnauthorized
}

// IsUnauthorized reports whether err is a credential rejection and returns it.
func IsUnauthorized(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}
