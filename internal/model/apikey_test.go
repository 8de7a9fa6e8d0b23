package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAPIKey_IsRevoked(t *testing.T) {
	key := &APIKey{}
	if key.IsRevoked() {
		t.Error("new key should not be revoked")
	}

	now := time.Now()
	key.RevokedAt = &now
	if !key.IsRevoked() {
		t.Error("key with RevokedAt should be revoked")
	}
}

func TestAPIKey_ToResponse(t *testing.T) {
	now := time.Now()
	accountID := uuid.New()
	userID := uuid.New()
	key := &APIKey{
		ID:         "01HXYZ",
		Name:       "ci",
		KeyPrefix:  "abc123",
		KeyHash:    "$argon2id$secret",
		CreatedBy:  userID,
		AccountID:  accountID,
		RevokedAt:  &now,
		LastUsedAt: &now,
		CreatedAt:  now,
	}

	resp := key.ToResponse()

	if resp.ID != key.ID || resp.Name != key.Name || resp.KeyPrefix != key.KeyPrefix {
		t.Errorf("identity fields not copied: %+v", resp)
	}
	if resp.AccountID != accountID || resp.CreatedBy != userID {
		t.Errorf("ownership fields not copied: %+v", resp)
	}
	if !resp.Revoked {
		t.Error("expected Revoked to be true")
	}
}

func TestIdentity_Complete(t *testing.T) {
	testCases := []struct {
		name string
		id   *Identity
		want bool
	}{
		{"nil identity", nil, false},
		{"missing account", &Identity{User: &User{}}, false},
		{"missing user", &Identity{Account: &Account{}}, false},
		{"complete", &Identity{User: &User{}, Account: &Account{}}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.id.Complete(); got != tc.want {
				t.Errorf("Complete() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestGitHubUser_DisplayName(t *testing.T) {
	if got := (&GitHubUser{Login: "octocat"}).DisplayName(); got != "octocat" {
		t.Errorf("DisplayName() = %q, want login fallback", got)
	}
	if got := (&GitHubUser{Login: "octocat", Name: "Mona"}).DisplayName(); got != "Mona" {
		t.Errorf("DisplayName() = %q, want Mona", got)
	}
}
