package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/l3agi/l3server/internal/metrics"
	"github.com/l3agi/l3server/internal/model"
)

const (
	methodAuthToken = "auth_token"

	lastUsedTimeout = 5 * time.Second
)

// UserStore looks up users by the email carried in a token subject.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// AccountStore resolves the account a user acts on.
type AccountStore interface {
	// GetAccountCreatedBy returns the account the user created.
	GetAccountCreatedBy(ctx context.Context, userID uuid.UUID) (*model.Account, error)
	// GetAccountByAccess returns accountID if the user created it or was granted
	// access to it, and model.ErrAccountNotFound otherwise.
	GetAccountByAccess(ctx context.Context, userID, accountID uuid.UUID) (*model.Account, error)
}

// APIKeyStore finds API key candidates with their creator and account joined.
type APIKeyStore interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	// UpdateAPIKeyLastUsed touches an active key and returns
	// model.ErrAPIKeyNotFound when the key is no longer active.
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// IdentityCache stores identities resolved from API keys.
// Implementations treat misses and corrupt entries as (nil, nil).
type IdentityCache interface {
	GetIdentity(ctx context.Context, cacheKey string) (*model.Identity, error)
	SetIdentity(ctx context.Context, cacheKey, keyID string, identity *model.Identity) error
	DeleteIdentitiesForKey(ctx context.Context, keyID string) error
}

// ResolverConfig holds the resolver's collaborators.
type ResolverConfig struct {
	Users    UserStore
	Accounts AccountStore
	APIKeys  APIKeyStore
	Cache    IdentityCache // optional
	Tokens   *TokenIssuer
	// AuthToken is the static service secret checked by CheckAuthToken.
	AuthToken string
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

// Resolver turns request credentials into an Identity.
// It holds no per-request state and is safe for concurrent use.
type Resolver struct {
	users     UserStore
	accounts  AccountStore
	apiKeys   APIKeyStore
	cache     IdentityCache
	tokens    *TokenIssuer
	authToken string
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.NewNoop()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		users:     cfg.Users,
		accounts:  cfg.Accounts,
		apiKeys:   cfg.APIKeys,
		cache:     cfg.Cache,
		tokens:    cfg.Tokens,
		authToken: cfg.AuthToken,
		metrics:   rec,
		logger:    logger,
	}
}

// Resolve authenticates a request from its Authorization and account_id header
// values, using the API-key strategy for l3_ credentials and the JWT strategy otherwise.
func (r *Resolver) Resolve(ctx context.Context, authorization, accountID string) (*model.Identity, error) {
	cred := ParseCredential(authorization)
	switch cred.Kind {
	case CredentialAPIKey:
		return r.resolveAPIKey(ctx, cred)
	case CredentialBearer:
		return r.resolveJWT(ctx, cred, accountID)
	default:
		return nil, Unauthorized(ReasonUnauthorized, fmt.Errorf("unknown credential kind %d", cred.Kind))
	}
}

// ResolveJWT authenticates with the JWT strategy only.
func (r *Resolver) ResolveJWT(ctx context.Context, authorization, accountID string) (*model.Identity, error) {
	return r.resolveJWT(ctx, ParseCredential(authorization), accountID)
}

// ResolveAPIKey authenticates with the API-key strategy only.
func (r *Resolver) ResolveAPIKey(ctx context.Context, authorization string) (*model.Identity, error) {
	return r.resolveAPIKey(ctx, ParseCredential(authorization))
}

// TryResolve runs the JWT strategy and reports any failure as a nil identity.
func (r *Resolver) TryResolve(ctx context.Context, authorization, accountID string) *model.Identity {
	identity, err := r.ResolveJWT(ctx, authorization, accountID)
	if err != nil {
		r.logger.Debug("optional authentication failed", slog.String("error", err.Error()))
		return nil
	}
	return identity
}

// CheckAuthToken compares the bearer token with the static service secret.
// It authorizes only; no identity is produced. An unset secret rejects everything.
func (r *Resolver) CheckAuthToken(authorization string) error {
	cred := ParseCredential(authorization)
	if r.authToken == "" || subtle.ConstantTimeCompare([]byte(cred.Token), []byte(r.authToken)) != 1 {
		r.metrics.IncAuthAttempt(methodAuthToken, metrics.OutcomeRejected)
		return Unauthorized(ReasonInvalidAuthToken, nil)
	}
	r.metrics.IncAuthAttempt(methodAuthToken, metrics.OutcomeSuccess)
	return nil
}

// IssueToken signs an access token for subject. Without expiryHours the
// configured lifetime applies.
func (r *Resolver) IssueToken(subject string, expiryHours ...int) (string, error) {
	token, err := r.tokens.Issue(subject, expiryHours...)
	if err != nil {
		return "", err
	}
	r.metrics.IncTokenIssued()
	return token, nil
}

func (r *Resolver) resolveJWT(ctx context.Context, cred Credential, accountID string) (identity *model.Identity, err error) {
	start := time.Now()
	defer func() { r.observe(model.MethodJWT, start, err) }()

	if cred.Scheme == "" {
		return nil, Unauthorized(ReasonMissingHeader, nil)
	}
	if !cred.IsBearer() || cred.Token == "" {
		return nil, Unauthorized(ReasonBadHeader, nil)
	}

	claims, err := r.tokens.Verify(cred.Token)
	if err != nil {
		return nil, Unauthorized(ReasonUnauthorized, err)
	}

	user, err := r.users.GetUserByEmail(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	account, err := r.resolveAccount(ctx, user, accountID)
	if err != nil {
		return nil, err
	}

	return &model.Identity{User: user, Account: account, Method: model.MethodJWT}, nil
}

// resolveAccount never falls back to the owned account once an account_id was chosen.
func (r *Resolver) resolveAccount(ctx context.Context, user *model.User, accountID string) (*model.Account, error) {
	if noAccountSelected(accountID) {
		return r.accounts.GetAccountCreatedBy(ctx, user.ID)
	}

	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed account_id", model.ErrAccountNotFound)
	}
	return r.accounts.GetAccountByAccess(ctx, user.ID, id)
}

func (r *Resolver) resolveAPIKey(ctx context.Context, cred Credential) (identity *model.Identity, err error) {
	start := time.Now()
	defer func() { r.observe(model.MethodAPIKey, start, err) }()

	cacheKey := QuickHash(cred.Token)
	if r.cache != nil {
		if cached, _ := r.cache.GetIdentity(ctx, cacheKey); cached.Complete() {
			r.metrics.IncAPIKeyCacheHit()
			return cached, nil
		}
		r.metrics.IncAPIKeyCacheMiss()
	}

	key, err := r.lookupAPIKey(ctx, cred.Token)
	if err != nil {
		return nil, err
	}
	if key == nil || key.Creator == nil || key.Account == nil {
		return nil, Unauthorized(ReasonInvalidAPIKey, nil)
	}

	identity = &model.Identity{User: key.Creator, Account: key.Account, Method: model.MethodAPIKey}

	if r.cache != nil {
		if err := r.cache.SetIdentity(ctx, cacheKey, key.ID, identity); err != nil {
			r.logger.Warn("failed to cache API key identity",
				slog.String("key_prefix", key.KeyPrefix),
				slog.String("error", err.Error()),
			)
		}
	}

	r.touchAPIKey(ctx, key.ID)

	return identity, nil
}

// lookupAPIKey finds the active key matching token. It returns (nil, nil)
// when the token is malformed or matches no key.
func (r *Resolver) lookupAPIKey(ctx context.Context, token string) (*model.APIKey, error) {
	parsed, err := ParseAPIKey(token)
	if err != nil {
		return nil, nil
	}

	candidates, err := r.apiKeys.GetAPIKeysByPrefix(ctx, parsed.Prefix)
	if err != nil {
		return nil, fmt.Errorf("lookup API key: %w", err)
	}

	// Several keys can share a prefix; verify each.
	for _, k := range candidates {
		if k.IsRevoked() {
			continue
		}
		match, err := VerifyAPIKey(token, k.KeyHash)
		if err != nil {
			continue
		}
		if match {
			return k, nil
		}
	}
	return nil, nil
}

// touchAPIKey marks the key used. A key revoked after its candidates were
// loaded may have been cached after the revocation evicted it; such entries
// are evicted again here.
func (r *Resolver) touchAPIKey(ctx context.Context, keyID string) {
	go func() {
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), lastUsedTimeout)
		defer cancel()

		err := r.apiKeys.UpdateAPIKeyLastUsed(bg, keyID)
		switch {
		case err == nil:
		case errors.Is(err, model.ErrAPIKeyNotFound):
			r.evictRevoked(bg, keyID)
		default:
			r.logger.Warn("failed to update API key last used",
				slog.String("key_id", keyID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func (r *Resolver) evictRevoked(ctx context.Context, keyID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.DeleteIdentitiesForKey(ctx, keyID); err != nil {
		r.logger.Warn("failed to evict revoked API key from cache",
			slog.String("key_id", keyID),
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.Info("evicted API key revoked during resolution", slog.String("key_id", keyID))
}

func (r *Resolver) observe(method string, start time.Time, err error) {
	r.metrics.ObserveAuthDuration(time.Since(start))
	switch {
	case err == nil:
		r.metrics.IncAuthAttempt(method, metrics.OutcomeSuccess)
	case isRejection(err):
		r.metrics.IncAuthAttempt(method, metrics.OutcomeRejected)
	default:
		r.metrics.IncAuthAttempt(method, metrics.OutcomeError)
	}
}

func isRejection(err error) bool {
	_, ok := IsUnauthorized(err)
	return ok
}
