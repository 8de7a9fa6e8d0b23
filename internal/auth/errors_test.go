package auth

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAuthError(t *testing.T) {
	t.Parallel()

	cause := errors.New("token is expired")
	err := fmt.Errorf("resolve: %w", Unauthorized(ReasonUnauthorized, cause))

	if !errors.Is(err, ErrUnauthorized) {
		t.Error("errors.Is(err, ErrUnauthorized) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through errors.Is")
	}

	authErr, ok := IsUnauthorized(err)
	if !ok {
		t.Fatal("IsUnauthorized = false")
	}
	if authErr.Reason != ReasonUnauthorized {
		t.Errorf("Reason = %q", authErr.Reason)
	}
	if authErr.StatusCode() != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d", authErr.StatusCode())
	}
	if got := Unauthorized(ReasonInvalidAPIKey, nil).Error(); got != "Invalid API key" {
		t.Errorf("Error() = %q", got)
	}

	if _, ok := IsUnauthorized(errors.New("db down")); ok {
		t.Error("plain errors are not rejections")
	}
}
