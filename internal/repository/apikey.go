package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/l3agi/l3server/internal/model"
)

const apiKeyColumns = `k.id, k.name, k.key_prefix, k.key_hash, k.created_by, k.account_id, k.revoked_at, k.last_used_at, k.created_at`

const insertAPIKeyQuery = `
	INSERT INTO api_keys (id, name, key_prefix, key_hash, created_by, account_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertAPIKey(ctx context.Context, db execer, key *model.APIKey) error {
	_, err := db.Exec(ctx, insertAPIKeyQuery,
		key.ID,
		key.Name,
		key.KeyPrefix,
		key.KeyHash,
		key.CreatedBy,
		key.AccountID,
		key.CreatedAt,
	)
	return err
}

// CreateAPIKey inserts a new API key into the database.
func (r *Repository) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	if err := insertAPIKey(ctx, r.pool, key); err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}
	return nil
}

// RotateAPIKey revokes oldID and inserts replacement in one transaction.
// An old key that is unknown, foreign to accountID or already revoked
// reports model.ErrAPIKeyNotFound and nothing is written.
func (r *Repository) RotateAPIKey(ctx context.Context, accountID uuid.UUID, oldID string, replacement *model.APIKey) (time.Time, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to begin rotation: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	revokedAt := time.Now().UTC()
	result, err := tx.Exec(ctx, `
		UPDATE api_keys
		SET revoked_at = $3
		WHERE id = $1 AND account_id = $2 AND revoked_at IS NULL
	`, oldID, accountID, revokedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to revoke rotated API key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return time.Time{}, model.ErrAPIKeyNotFound
	}

	if err := insertAPIKey(ctx, tx, replacement); err != nil {
		return time.Time{}, fmt.Errorf("failed to create rotated API key: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, fmt.Errorf("failed to commit rotation: %w", err)
	}
	return revokedAt, nil
}

// GetAPIKeyByID retrieves an API key by its ID.
func (r *Repository) GetAPIKeyByID(ctx context.Context, id string) (*model.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys k WHERE k.id = $1`

	key, err := scanAPIKey(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}
	return key, nil
}

// GetAPIKeysByPrefix retrieves all active API keys matching a prefix, with the
// creating user and the bound account joined in.
// Used during authentication to find candidate keys for verification.
func (r *Repository) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `,
			u.id, u.email, u.name, u.avatar_url, u.created_at,
			a.id, a.name, a.created_by, a.created_at
		FROM api_keys k
		JOIN users u ON u.id = k.created_by
		JOIN accounts a ON a.id = k.account_id
		WHERE k.key_prefix = $1 AND k.revoked_at IS NULL
	`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get API keys by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*model.APIKey
	for rows.Next() {
		var (
			key     model.APIKey
			user    model.User
			account model.Account
		)
		err := rows.Scan(
			&key.ID, &key.Name, &key.KeyPrefix, &key.KeyHash, &key.CreatedBy,
			&key.AccountID, &key.RevokedAt, &key.LastUsedAt, &key.CreatedAt,
			&user.ID, &user.Email, &user.Name, &user.AvatarURL, &user.CreatedAt,
			&account.ID, &account.Name, &account.CreatedBy, &account.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan API key: %w", err)
		}
		key.Creator = &user
		key.Account = &account
		keys = append(keys, &key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating API keys: %w", err)
	}

	return keys, nil
}

// ListAPIKeysByAccount retrieves all API keys bound to an account, newest first.
func (r *Repository) ListAPIKeysByAccount(ctx context.Context, accountID uuid.UUID) ([]*model.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys k
		WHERE k.account_id = $1
		ORDER BY k.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}
	defer rows.Close()

	keys := []*model.APIKey{}
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan API key: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating API keys: %w", err)
	}

	return keys, nil
}

// RevokeAPIKey revokes an active API key belonging to accountID.
// Unknown, foreign and already revoked keys all report model.ErrAPIKeyNotFound.
func (r *Repository) RevokeAPIKey(ctx context.Context, accountID uuid.UUID, id string) error {
	query := `
		UPDATE api_keys
		SET revoked_at = $3
		WHERE id = $1 AND account_id = $2 AND revoked_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id, accountID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}

	if result.RowsAffected() == 0 {
		return model.ErrAPIKeyNotFound
	}

	return nil
}

// UpdateAPIKeyLastUsed updates the last_used_at timestamp of an active key.
// Should be called asynchronously after successful authentication.
// Revoked and unknown keys report model.ErrAPIKeyNotFound.
func (r *Repository) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	query := `
		UPDATE api_keys
		SET last_used_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update API key last used: %w", err)
	}

	if result.RowsAffected() == 0 {
		return model.ErrAPIKeyNotFound
	}

	return nil
}

func scanAPIKey(row pgx.Row) (*model.APIKey, error) {
	var key model.APIKey
	err := row.Scan(
		&key.ID,
		&key.Name,
		&key.KeyPrefix,
		&key.KeyHash,
		&key.CreatedBy,
		&key.AccountID,
		&key.RevokedAt,
		&key.LastUsedAt,
		&key.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &key, nil
}
