// Command bootstrap-api-key provisions an operator user, their own account and
// an API key, printing the plaintext key once.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/l3agi/l3server/internal/auth"
	"github.com/l3agi/l3server/internal/model"
	"github.com/l3agi/l3server/internal/repository"
)

type output struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	AccountID string `json:"account_id"`
	KeyID     string `json:"key_id"`
	Key       string `json:"key"`
	KeyPrefix string `json:"key_prefix"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		userID      = flag.String("user-id", "", "ID of an existing user owning the key; overrides -email")
		email       = flag.String("email", "system@l3.local", "Email of the user owning the key")
		userName    = flag.String("user-name", "system", "Display name used when the user is created")
		keyName     = flag.String("name", "bootstrap", "API key name")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if !validFormat(*format) {
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	owner := ownerRef{ID: strings.TrimSpace(*userID), Email: strings.TrimSpace(*email), Name: *userName}
	out, err := bootstrap(ctx, repo, owner, *keyName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	if err := write(os.Stdout, *format, out); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// Store is the repository surface the bootstrap needs.
type Store interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetOrCreateUser(ctx context.Context, user *model.User) (*model.User, error)
	GetOrCreateOwnedAccount(ctx context.Context, user *model.User) (*model.Account, error)
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
}

// ownerRef names the key owner: an existing user by ID, or a user looked up
// or created by email.
type ownerRef struct {
	ID    string
	Email string
	Name  string
}

func resolveOwner(ctx context.Context, store Store, owner ownerRef) (*model.User, error) {
	if owner.ID != "" {
		id, err := uuid.Parse(owner.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q: %w", owner.ID, err)
		}
		user, err := store.GetUserByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load user: %w", err)
		}
		return user, nil
	}

	if owner.Email == "" {
		return nil, fmt.Errorf("email is required")
	}
	user, err := store.GetOrCreateUser(ctx, &model.User{Email: owner.Email, Name: owner.Name})
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return user, nil
}

func bootstrap(ctx context.Context, store Store, owner ownerRef, keyName string) (*output, error) {
	user, err := resolveOwner(ctx, store, owner)
	if err != nil {
		return nil, err
	}

	account, err := store.GetOrCreateOwnedAccount(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("ensure account: %w", err)
	}

	generated, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}

	key := &model.APIKey{
		ID:        ulid.Make().String(),
		Name:      keyName,
		KeyPrefix: generated.Prefix,
		KeyHash:   generated.Hash,
		CreatedBy: user.ID,
		AccountID: account.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateAPIKey(ctx, key); err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}

	return &output{
		UserID:    user.ID.String(),
		Email:     user.Email,
		AccountID: account.ID.String(),
		KeyID:     key.ID,
		Key:       generated.Plaintext,
		KeyPrefix: key.KeyPrefix,
	}, nil
}

func validFormat(format string) bool {
	switch strings.ToLower(format) {
	case "plain", "json":
		return true
	}
	return false
}

func write(w io.Writer, format string, out *output) error {
	if strings.ToLower(format) == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	_, err := fmt.Fprintln(w, out.Key)
	return err
}
