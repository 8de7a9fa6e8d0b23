//go:build integration

package repository

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/l3agi/l3server/internal/model"
	"github.com/l3agi/l3server/internal/testutil"
)

func TestIntegrationAccountRepository_GetAccountCreatedBy(t *testing.T) {
	ctx, repo := newTestEnv(t)

	user, account := seedOwner(t, ctx, repo)

	// A newer account must not replace the oldest one.
	newer := testutil.NewTestAccount(t, user.ID)
	newer.CreatedAt = account.CreatedAt.Add(time.Hour)
	if err := repo.CreateAccount(ctx, newer); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	got, err := repo.GetAccountCreatedBy(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetAccountCreatedBy failed: %v", err)
	}
	if got.ID != account.ID {
		t.Errorf("expected oldest account %s, got %s", account.ID, got.ID)
	}
}

func TestIntegrationAccountRepository_GetAccountCreatedBy_None(t *testing.T) {
	ctx, repo := newTestEnv(t)

	user := testutil.NewTestUser(t)
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if _, err := repo.GetAccountCreatedBy(ctx, user.ID); !errors.Is(err, model.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestIntegrationAccountRepository_GetAccountByAccess(t *testing.T) {
	ctx, repo := newTestEnv(t)

	owner, account := seedOwner(t, ctx, repo)
	member := testutil.NewTestUser(t)
	if err := repo.CreateUser(ctx, member); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	outsider := testutil.NewTestUser(t)
	if err := repo.CreateUser(ctx, outsider); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	err := repo.GrantAccountAccess(ctx, &model.AccountAccess{
		AccountID: account.ID,
		UserID:    member.ID,
		Role:      model.RoleMember,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("GrantAccountAccess failed: %v", err)
	}

	tests := []struct {
		name    string
		userID  uuid.UUID
		wantErr error
	}{
		{name: "creator", userID: owner.ID},
		{name: "granted member", userID: member.ID},
		{name: "outsider", userID: outsider.ID, wantErr: model.ErrAccountNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.GetAccountByAccess(ctx, tc.userID, account.ID)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetAccountByAccess failed: %v", err)
			}
			if got.ID != account.ID {
				t.Errorf("ID mismatch: got %s, want %s", got.ID, account.ID)
			}
		})
	}
}

func TestIntegrationAccountRepository_GetOrCreateOwnedAccount(t *testing.T) {
	ctx, repo := newTestEnv(t)

	user := testutil.NewTestUser(t)
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	created, err := repo.GetOrCreateOwnedAccount(ctx, user)
	if err != nil {
		t.Fatalf("GetOrCreateOwnedAccount (create) failed: %v", err)
	}
	if created.CreatedBy != user.ID {
		t.Errorf("CreatedBy mismatch: got %s, want %s", created.CreatedBy, user.ID)
	}
	if created.Name != user.Name {
		t.Errorf("Name mismatch: got %q, want %q", created.Name, user.Name)
	}

	again, err := repo.GetOrCreateOwnedAccount(ctx, user)
	if err != nil {
		t.Fatalf("GetOrCreateOwnedAccount (get) failed: %v", err)
	}
	if again.ID != created.ID {
		t.Errorf("expected same account %s, got %s", created.ID, again.ID)
	}
}

func TestIntegrationAccountRepository_GetOrCreateOwnedAccount_Concurrent(t *testing.T) {
	ctx, repo := newTestEnv(t)

	user := testutil.NewTestUser(t)
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	const signIns = 8
	ids := make([]uuid.UUID, signIns)
	errs := make([]error, signIns)
	var wg sync.WaitGroup
	for i := 0; i < signIns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			account, err := repo.GetOrCreateOwnedAccount(ctx, user)
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = account.ID
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("sign-in %d failed: %v", i, err)
		}
		if ids[i] != ids[0] {
			t.Errorf("sign-in %d got account %s, want %s", i, ids[i], ids[0])
		}
	}

	var count int
	if err := repo.Pool().QueryRow(ctx, `SELECT count(*) FROM accounts WHERE created_by = $1`, user.ID).Scan(&count); err != nil {
		t.Fatalf("count accounts: %v", err)
	}
	if count != 1 {
		t.Errorf("user has %d accounts, want 1", count)
	}
}
