package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/l3agi/l3server/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// migrations in apply order. Down files run in reverse.
var migrations = []string{
	"000001_users",
	"000002_accounts",
	"000003_api_keys",
	"000004_owned_accounts",
}

// ResetSchema drops every table and re-applies all migrations.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		if err := applyMigration(ctx, pool, root, migrations[i]+".down.sql"); err != nil {
			return err
		}
	}
	for _, name := range migrations {
		if err := applyMigration(ctx, pool, root, name+".up.sql"); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, root, file string) error {
	sql, err := os.ReadFile(filepath.Join(root, "migrations", file))
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply migration %s: %w", file, err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a user with a unique email.
func NewTestUser(t testing.TB) *model.User {
	t.Helper()
	return &model.User{
		ID:        uuid.New(),
		Email:     UniqueID("user") + "@example.com",
		Name:      "Test User",
		AvatarURL: "https://avatars.example.com/u/1",
		CreatedAt: time.Now().UTC(),
	}
}

// NewTestAccount creates an account owned by createdBy.
func NewTestAccount(t testing.TB, createdBy uuid.UUID) *model.Account {
	t.Helper()
	return &model.Account{
		ID:        uuid.New(),
		Name:      UniqueID("account"),
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
}

// NewTestAPIKey creates an API key record bound to the given user and account.
// KeyHash is a placeholder; tests that authenticate should hash a real key.
func NewTestAPIKey(t testing.TB, createdBy, accountID uuid.UUID) *model.APIKey {
	t.Helper()
	now := time.Now().UTC()
	return &model.APIKey{
		ID:        ulid.Make().String(),
		Name:      "Test Key",
		KeyPrefix: "abc123",
		KeyHash:   fmt.Sprintf("hash-%d", now.UnixNano()),
		CreatedBy: createdBy,
		AccountID: accountID,
		CreatedAt: now,
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
