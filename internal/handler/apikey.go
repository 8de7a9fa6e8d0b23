package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/l3agi/l3server/internal/audit"
	"github.com/l3agi/l3server/internal/auth"
	"github.com/l3agi/l3server/internal/handler/dto"
	"github.com/l3agi/l3server/internal/model"
)

// MaxAPIKeyNameLength bounds the optional key label.
const MaxAPIKeyNameLength = 100

// APIKeyStore persists API keys for an account.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	ListAPIKeysByAccount(ctx context.Context, accountID uuid.UUID) ([]*model.APIKey, error)
	RevokeAPIKey(ctx context.Context, accountID uuid.UUID, id string) error
	GetAPIKeyByID(ctx context.Context, id string) (*model.APIKey, error)
	RotateAPIKey(ctx context.Context, accountID uuid.UUID, oldID string, replacement *model.APIKey) (time.Time, error)
}

// IdentityInvalidator evicts cached identities of a revoked key.
type IdentityInvalidator interface {
	DeleteIdentitiesForKey(ctx context.Context, keyID string) error
}

// APIKeyHandler handles API key management endpoints.
type APIKeyHandler struct {
	logger *slog.Logger
	store  APIKeyStore
	cache  IdentityInvalidator
	audit  AuditPublisher
}

// NewAPIKeyHandler creates a new APIKeyHandler. cache and audit may be nil.
func NewAPIKeyHandler(logger *slog.Logger, store APIKeyStore, cache IdentityInvalidator, auditor AuditPublisher) *APIKeyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIKeyHandler{
		logger: logger,
		store:  store,
		cache:  cache,
		audit:  auditor,
	}
}

// CreateAPIKey issues a key bound to the caller and the resolved account.
// The plaintext key appears in this response only.
// POST /api/v1/api-keys
func (h *APIKeyHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req model.APIKeyCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if utf8.RuneCountInString(req.Name) > MaxAPIKeyNameLength {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "name is too long")
		return
	}

	key, generated, err := newAPIKey(req.Name, identity)
	if err != nil {
		h.logger.Error("failed to generate API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to generate API key")
		return
	}

	if err := h.store.CreateAPIKey(ctx, key); err != nil {
		h.logger.Error("failed to create API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to create API key")
		return
	}

	h.logger.Info("API key created",
		slog.String("key_id", key.ID),
		slog.String("key_prefix", key.KeyPrefix),
		slog.String("user_id", key.CreatedBy.String()),
		slog.String("account_id", key.AccountID.String()),
	)
	recordAudit(h.audit, r, audit.Event{
		Type:      audit.EventAPIKeyCreated,
		UserID:    key.CreatedBy.String(),
		AccountID: key.AccountID.String(),
		KeyID:     key.ID,
	})

	writeJSON(w, http.StatusCreated, createResponse(key, generated))
}

// ListAPIKeys lists the resolved account's keys without secrets.
// GET /api/v1/api-keys
func (h *APIKeyHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	keys, err := h.store.ListAPIKeysByAccount(r.Context(), identity.Account.ID)
	if err != nil {
		h.logger.Error("failed to list API keys", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to list API keys")
		return
	}

	resp := dto.APIKeyListResponse{Keys: make([]model.APIKeyResponse, 0, len(keys))}
	for _, key := range keys {
		resp.Keys = append(resp.Keys, key.ToResponse())
	}
	writeJSON(w, http.StatusOK, resp)
}

// RevokeAPIKey revokes one of the resolved account's keys. Keys of other
// accounts are indistinguishable from missing ones.
// DELETE /api/v1/api-keys/{key_id}
func (h *APIKeyHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	keyID := chi.URLParam(r, "key_id")
	if keyID == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Key ID is required")
		return
	}

	if err := h.store.RevokeAPIKey(ctx, identity.Account.ID, keyID); err != nil {
		if errors.Is(err, model.ErrAPIKeyNotFound) {
			writeError(w, http.StatusNotFound, codeKeyNotFound, "API key not found or already revoked")
			return
		}
		h.logger.Error("failed to revoke API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to revoke API key")
		return
	}

	h.evict(ctx, keyID)

	h.logger.Info("API key revoked",
		slog.String("key_id", keyID),
		slog.String("user_id", identity.User.ID.String()),
		slog.String("account_id", identity.Account.ID.String()),
	)
	recordAudit(h.audit, r, audit.Event{
		Type:      audit.EventAPIKeyRevoked,
		UserID:    identity.User.ID.String(),
		AccountID: identity.Account.ID.String(),
		KeyID:     keyID,
	})

	w.WriteHeader(http.StatusNoContent)
}

// RotateAPIKey replaces one of the resolved account's keys with a fresh key
// of the same name. The old key is revoked in the same transaction.
// POST /api/v1/api-keys/{key_id}/rotate
func (h *APIKeyHandler) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	keyID := chi.URLParam(r, "key_id")
	if keyID == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Key ID is required")
		return
	}

	oldKey, err := h.store.GetAPIKeyByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, model.ErrAPIKeyNotFound) {
			writeError(w, http.StatusNotFound, codeKeyNotFound, "API key not found")
			return
		}
		h.logger.Error("failed to load API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to rotate API key")
		return
	}
	if oldKey.AccountID != identity.Account.ID || oldKey.IsRevoked() {
		writeError(w, http.StatusNotFound, codeKeyNotFound, "API key not found or already revoked")
		return
	}

	newKey, generated, err := newAPIKey(oldKey.Name, identity)
	if err != nil {
		h.logger.Error("failed to generate API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to generate API key")
		return
	}

	revokedAt, err := h.store.RotateAPIKey(ctx, identity.Account.ID, oldKey.ID, newKey)
	if err != nil {
		// Lost a race with a concurrent revoke or rotate.
		if errors.Is(err, model.ErrAPIKeyNotFound) {
			writeError(w, http.StatusNotFound, codeKeyNotFound, "API key not found or already revoked")
			return
		}
		h.logger.Error("failed to rotate API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to rotate API key")
		return
	}

	h.evict(ctx, oldKey.ID)

	h.logger.Info("API key rotated",
		slog.String("old_key_id", oldKey.ID),
		slog.String("new_key_id", newKey.ID),
		slog.String("user_id", identity.User.ID.String()),
		slog.String("account_id", identity.Account.ID.String()),
	)
	recordAudit(h.audit, r, audit.Event{
		Type:      audit.EventAPIKeyRotated,
		UserID:    identity.User.ID.String(),
		AccountID: identity.Account.ID.String(),
		KeyID:     newKey.ID,
	})

	writeJSON(w, http.StatusCreated, model.APIKeyRotateResponse{
		OldKeyID:        oldKey.ID,
		OldKeyRevokedAt: revokedAt,
		NewKey:          createResponse(newKey, generated),
	})
}

// evict drops cached identities of a key that stopped being active.
// Failures leave entries to expire on their own TTL.
func (h *APIKeyHandler) evict(ctx context.Context, keyID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.DeleteIdentitiesForKey(ctx, keyID); err != nil {
		h.logger.Warn("failed to evict revoked API key from cache",
			slog.String("key_id", keyID),
			slog.String("error", err.Error()),
		)
	}
}

// newAPIKey generates a key owned by the caller and bound to the resolved account.
func newAPIKey(name string, identity *model.Identity) (*model.APIKey, *auth.GeneratedKey, error) {
	generated, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, nil, err
	}
	key := &model.APIKey{
		ID:        ulid.Make().String(),
		Name:      name,
		KeyPrefix: generated.Prefix,
		KeyHash:   generated.Hash,
		CreatedBy: identity.User.ID,
		AccountID: identity.Account.ID,
		CreatedAt: time.Now().UTC(),
	}
	return key, generated, nil
}

func createResponse(key *model.APIKey, generated *auth.GeneratedKey) model.APIKeyCreateResponse {
	return model.APIKeyCreateResponse{
		ID:        key.ID,
		Key:       generated.Plaintext,
		Name:      key.Name,
		KeyPrefix: key.KeyPrefix,
		AccountID: key.AccountID,
		CreatedAt: key.CreatedAt,
	}
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (*model.Identity, bool) {
	identity := auth.IdentityFromContext(r.Context())
	if !identity.Complete() {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, auth.ReasonUnauthorized)
		return nil, false
	}
	return identity, true
}
