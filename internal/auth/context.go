package auth

import (
	"context"

	"github.com/l3agi/l3server/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const identityContextKey contextKey = "identity"

// ContextWithIdentity adds the resolved identity to the context.
func ContextWithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity from the context.
// Returns nil if the request is unauthenticated.
func IdentityFromContext(ctx context.Context) *model.Identity {
	identity, ok := ctx.Value(identityContextKey).(*model.Identity)
	if !ok {
		return nil
	}
	return identity
}

// MustIdentityFromContext panics when no identity is present.
// Use only behind the required-authentication middleware.
func MustIdentityFromContext(ctx context.Context) *model.Identity {
	identity := IdentityFromContext(ctx)
	if identity == nil {
		panic("identity not found - ensure auth middleware is applied")
	}
	return identity
}

// UserIDFromContext returns the authenticated user's ID, or "" when absent.
func UserIDFromContext(ctx context.Context) string {
	identity := IdentityFromContext(ctx)
	if !identity.Complete() {
		return ""
	}
	return identity.User.ID.String()
}

// AccountIDFromContext returns the resolved account's ID, or "" when absent.
func AccountIDFromContext(ctx context.Context) string {
	identity := IdentityFromContext(ctx)
	if !identity.Complete() {
		return ""
	}
	return identity.Account.ID.String()
}
