package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/l3agi/l3server/internal/auth"
	"github.com/l3agi/l3server/internal/model"
)

// DefaultMinAuthDuration is the floor applied to failed authentication
// attempts so rejections take the same time regardless of cause.
const DefaultMinAuthDuration = 200 * time.Millisecond

// IdentityResolver is the subset of *auth.Resolver the middleware needs.
type IdentityResolver interface {
	Resolve(ctx context.Context, authorization, accountID string) (*model.Identity, error)
	ResolveJWT(ctx context.Context, authorization, accountID string) (*model.Identity, error)
	TryResolve(ctx context.Context, authorization, accountID string) *model.Identity
	CheckAuthToken(authorization string) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Resolver IdentityResolver
	// MinDuration pads failed attempts. Zero disables padding.
	MinDuration time.Duration
}

func (cfg AuthConfig) logger() *slog.Logger {
	if cfg.Logger == nil {
		return slog.Default()
	}
	return cfg.Logger
}

// Authenticate requires a JWT or an API key. Credentials containing the l3_
// marker take the API key path.
func Authenticate(cfg AuthConfig) func(http.Handler) http.Handler {
	return required(cfg, cfg.Resolver.Resolve)
}

// AuthenticateJWT requires a JWT and never consults API keys.
func AuthenticateJWT(cfg AuthConfig) func(http.Handler) http.Handler {
	return required(cfg, cfg.Resolver.ResolveJWT)
}

type resolveFunc func(ctx context.Context, authorization, accountID string) (*model.Identity, error)

func required(cfg AuthConfig, resolve resolveFunc) func(http.Handler) http.Handler {
	logger := cfg.logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			identity, err := resolve(r.Context(),
				r.Header.Get(auth.HeaderAuthorization),
				r.Header.Get(auth.HeaderAccountID),
			)
			if err != nil {
				padFailure(start, cfg.MinDuration)
				WriteAuthError(w, r, logger, err)
				return
			}

			logger.Debug("authentication successful",
				slog.String("method", identity.Method),
				slog.String("user_id", identity.User.ID.String()),
				slog.String("account_id", identity.Account.ID.String()),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			next.ServeHTTP(w, withIdentity(r, identity))
		})
	}
}

// OptionalAuth attaches the JWT identity when one resolves and lets the
// request through unauthenticated otherwise.
func OptionalAuth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := cfg.Resolver.TryResolve(r.Context(),
				r.Header.Get(auth.HeaderAuthorization),
				r.Header.Get(auth.HeaderAccountID),
			)
			if identity != nil {
				r = withIdentity(r, identity)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthToken admits only callers presenting the static service token.
// No identity is attached.
func RequireAuthToken(cfg AuthConfig) func(http.Handler) http.Handler {
	logger := cfg.logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			if err := cfg.Resolver.CheckAuthToken(r.Header.Get(auth.HeaderAuthorization)); err != nil {
				padFailure(start, cfg.MinDuration)
				WriteAuthError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withIdentity(r *http.Request, identity *model.Identity) *http.Request {
	ctx := auth.ContextWithIdentity(r.Context(), identity)
	annotateLog(ctx, identity)
	return r.WithContext(ctx)
}

func padFailure(start time.Time, floor time.Duration) {
	if elapsed := time.Since(start); elapsed < floor {
		time.Sleep(floor - elapsed)
	}
}
