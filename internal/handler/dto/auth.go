// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import "github.com/l3agi/l3server/internal/model"

// GitHubLoginRequest is the body of POST /auth/github.
type GitHubLoginRequest struct {
	AccessToken string `json:"access_token"`
}

// IssueTokenRequest is the body of POST /internal/token.
// ExpiryHours overrides the configured lifetime when set.
type IssueTokenRequest struct {
	Subject     string `json:"subject"`
	ExpiryHours *int   `json:"expiry_hours,omitempty"`
}

// IssueTokenResponse carries a token minted for a service caller.
type IssueTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}

// MeResponse describes the authenticated caller.
type MeResponse struct {
	User    *model.User    `json:"user"`
	Account *model.Account `json:"account"`
	Method  string         `json:"method"`
}
