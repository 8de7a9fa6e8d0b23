package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/l3agi/l3server/internal/audit"
	"github.com/l3agi/l3server/internal/auth"
	"github.com/l3agi/l3server/internal/handler/dto"
	"github.com/l3agi/l3server/internal/model"
)

const tokenTypeBearer = "Bearer"

// Callback error codes appended to the frontend redirect.
const (
	callbackMissingToken = "missing_token"
	callbackInvalidToken = "invalid_token"
	callbackMissingEmail = "missing_email"
	callbackServerError  = "server_error"
)

var (
	errGitHubRejected    = errors.New("github rejected access token")
	errGitHubNoEmail     = errors.New("github profile has no email")
	errGitHubUnavailable = errors.New("github unavailable")
)

// GitHubClient fetches the profile behind a GitHub access token.
// A rejected token yields (nil, nil).
type GitHubClient interface {
	GetUser(ctx context.Context, accessToken string) (*model.GitHubUser, error)
}

// SignInStore provisions users and their own accounts on first sign-in.
type SignInStore interface {
	GetOrCreateUser(ctx context.Context, user *model.User) (*model.User, error)
	GetOrCreateOwnedAccount(ctx context.Context, user *model.User) (*model.Account, error)
}

// TokenIssuer mints access tokens.
type TokenIssuer interface {
	IssueToken(subject string, expiryHours ...int) (string, error)
}

// AuthHandlerConfig holds the AuthHandler's collaborators.
type AuthHandlerConfig struct {
	Logger      *slog.Logger
	GitHub      GitHubClient
	Store       SignInStore
	Tokens      TokenIssuer
	FrontendURL string
	// ExpiryHours is the default token lifetime, reported as expires_in.
	ExpiryHours int
	Audit       AuditPublisher // optional
}

// AuthHandler serves sign-in, session and token endpoints.
type AuthHandler struct {
	logger      *slog.Logger
	github      GitHubClient
	store       SignInStore
	tokens      TokenIssuer
	frontendURL string
	expiryHours int
	audit       AuditPublisher
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		logger:      logger,
		github:      cfg.GitHub,
		store:       cfg.Store,
		tokens:      cfg.Tokens,
		frontendURL: cfg.FrontendURL,
		expiryHours: cfg.ExpiryHours,
		audit:       cfg.Audit,
	}
}

// Me returns the authenticated caller.
// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if !identity.Complete() {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, auth.ReasonUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, dto.MeResponse{
		User:    identity.User,
		Account: identity.Account,
		Method:  identity.Method,
	})
}

// Session reports whether the request carries a usable JWT. It never fails
// on bad credentials.
// GET /api/v1/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if !identity.Complete() {
		writeJSON(w, http.StatusOK, model.SessionResponse{Authenticated: false})
		return
	}
	writeJSON(w, http.StatusOK, model.SessionResponse{
		Authenticated: true,
		User:          identity.User,
		Account:       identity.Account,
	})
}

// GitHubLogin exchanges a GitHub access token for an access token of ours.
// POST /auth/github
func (h *AuthHandler) GitHubLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.GitHubLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "access_token is required")
		return
	}

	resp, err := h.login(r, req.AccessToken)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, errGitHubRejected):
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Invalid GitHub access token")
	case errors.Is(err, errGitHubNoEmail):
		writeError(w, http.StatusUnprocessableEntity, codeInvalidRequest, "GitHub account has no email address")
	case errors.Is(err, errGitHubUnavailable):
		h.logger.Error("github login failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, codeBadGateway, "GitHub sign-in unavailable")
	default:
		h.logger.Error("github login failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, "Sign-in failed")
	}
}

// GitHubCallback completes a browser sign-in by redirecting to the frontend
// with either ?token= or ?error=.
// GET /auth/github/callback?access_token=
func (h *AuthHandler) GitHubCallback(w http.ResponseWriter, r *http.Request) {
	accessToken := r.URL.Query().Get("access_token")
	if accessToken == "" {
		h.redirect(w, r, "error", callbackMissingToken)
		return
	}

	resp, err := h.login(r, accessToken)
	switch {
	case err == nil:
		h.redirect(w, r, "token", resp.AccessToken)
	case errors.Is(err, errGitHubRejected):
		h.redirect(w, r, "error", callbackInvalidToken)
	case errors.Is(err, errGitHubNoEmail):
		h.redirect(w, r, "error", callbackMissingEmail)
	default:
		h.logger.Error("github callback failed", slog.String("error", err.Error()))
		h.redirect(w, r, "error", callbackServerError)
	}
}

// IssueToken mints a token for any subject. Only reachable with the static
// service token.
// POST /internal/token
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req dto.IssueTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "subject is required")
		return
	}

	hours := h.expiryHours
	var overrides []int
	if req.ExpiryHours != nil {
		if *req.ExpiryHours <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, "expiry_hours must be positive")
			return
		}
		if *req.ExpiryHours > auth.MaxExpiryHours {
			writeError(w, http.StatusBadRequest, codeInvalidRequest,
				fmt.Sprintf("expiry_hours must not exceed %d", auth.MaxExpiryHours))
			return
		}
		hours = *req.ExpiryHours
		overrides = append(overrides, hours)
	}

	token, err := h.tokens.IssueToken(subject, overrides...)
	if err != nil {
		h.logger.Error("failed to issue token", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to issue token")
		return
	}

	h.logger.Info("service token issued",
		slog.String("subject", subject),
		slog.Int("expiry_hours", hours),
	)
	recordAudit(h.audit, r, audit.Event{Type: audit.EventTokenIssued, Subject: subject})

	writeJSON(w, http.StatusOK, dto.IssueTokenResponse{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   hours * 3600,
	})
}

// login resolves a GitHub token to our user and account, creating both on
// first sign-in, and issues a token for the user's email.
func (h *AuthHandler) login(r *http.Request, accessToken string) (*model.TokenResponse, error) {
	ctx := r.Context()
	profile, err := h.github.GetUser(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errGitHubUnavailable, err)
	}
	if profile == nil {
		return nil, errGitHubRejected
	}
	if profile.Email == "" {
		return nil, errGitHubNoEmail
	}

	user, err := h.store.GetOrCreateUser(ctx, &model.User{
		Email:     profile.Email,
		Name:      profile.DisplayName(),
		AvatarURL: profile.AvatarURL,
	})
	if err != nil {
		return nil, fmt.Errorf("provision user: %w", err)
	}

	account, err := h.store.GetOrCreateOwnedAccount(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("provision account: %w", err)
	}

	token, err := h.tokens.IssueToken(user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	h.logger.Info("github sign-in",
		slog.String("user_id", user.ID.String()),
		slog.String("account_id", account.ID.String()),
		slog.String("github_login", profile.Login),
	)
	recordAudit(h.audit, r, audit.Event{
		Type:      audit.EventSignIn,
		UserID:    user.ID.String(),
		AccountID: account.ID.String(),
	})

	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		User:        user,
		Account:     account,
	}, nil
}

func (h *AuthHandler) redirect(w http.ResponseWriter, r *http.Request, key, value string) {
	target, err := url.Parse(h.frontendURL)
	if err != nil {
		h.logger.Error("invalid frontend URL", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, "Sign-in redirect misconfigured")
		return
	}
	q := target.Query()
	q.Set(key, value)
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}
