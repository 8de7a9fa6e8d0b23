package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/l3agi/l3server/internal/model"
)

const accountColumns = `a.id, a.name, a.created_by, a.created_at`

// CreateAccount inserts a new account.
func (r *Repository) CreateAccount(ctx context.Context, account *model.Account) error {
	query := `
		INSERT INTO accounts (id, name, created_by, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.Name,
		account.CreatedBy,
		account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccountCreatedBy returns the oldest account created by the user.
func (r *Repository) GetAccountCreatedBy(ctx context.Context, userID uuid.UUID) (*model.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts a
		WHERE a.created_by = $1
		ORDER BY a.created_at ASC
		LIMIT 1
	`
	return scanAccount(r.pool.QueryRow(ctx, query, userID))
}

// GetAccountByAccess returns the account if the user created it or holds an
// access grant for it. Anything else is model.ErrAccountNotFound.
func (r *Repository) GetAccountByAccess(ctx context.Context, userID, accountID uuid.UUID) (*model.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts a
		WHERE a.id = $2
		  AND (
		    a.created_by = $1
		    OR EXISTS (
		      SELECT 1 FROM account_access x
		      WHERE x.account_id = a.id AND x.user_id = $1
		    )
		  )
	`
	return scanAccount(r.pool.QueryRow(ctx, query, userID, accountID))
}

// GetOrCreateOwnedAccount returns the user's own account, creating one named
// after the user when none exists. Concurrent first sign-ins converge on a
// single owned account through idx_accounts_one_owned.
func (r *Repository) GetOrCreateOwnedAccount(ctx context.Context, user *model.User) (*model.Account, error) {
	account, err := r.GetAccountCreatedBy(ctx, user.ID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, model.ErrAccountNotFound) {
		return nil, err
	}

	name := user.Name
	if name == "" {
		name = user.Email
	}
	query := `
		INSERT INTO accounts (id, name, created_by, created_at, owned)
		VALUES ($1, $2, $3, $4, true)
		ON CONFLICT (created_by) WHERE owned DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, uuid.New(), name, user.ID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	// Re-read so a losing writer returns the winner's row.
	return r.GetAccountCreatedBy(ctx, user.ID)
}

// GrantAccountAccess gives a user access to an account. Re-granting updates the role.
func (r *Repository) GrantAccountAccess(ctx context.Context, access *model.AccountAccess) error {
	query := `
		INSERT INTO account_access (account_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, user_id) DO UPDATE SET role = EXCLUDED.role
	`

	_, err := r.pool.Exec(ctx, query,
		access.AccountID,
		access.UserID,
		access.Role,
		access.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to grant account access: %w", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var account model.Account
	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.CreatedBy,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}
