// Package model defines domain entities for the application.
package model

import (
	"time"

	"github.com/google/uuid"
)

// User is an authenticated person. Email is the JWT subject.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Account is the tenant a request acts on behalf of.
type Account struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Account access roles.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// AccountAccess grants a user access to an account it did not create.
type AccountAccess struct {
	AccountID uuid.UUID `json:"account_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// GitHubUser is the subset of the GitHub /user payload used for sign-in.
type GitHubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// DisplayName returns the profile name, falling back to the login.
func (g *GitHubUser) DisplayName() string {
	if g.Name != "" {
		return g.Name
	}
	return g.Login
}
