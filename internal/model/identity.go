package model

// Authentication methods recorded on a resolved Identity.
const (
	MethodJWT    = "jwt"
	MethodAPIKey = "api_key"
)

// Identity is the resolved caller: exactly one user acting on exactly one account.
type Identity struct {
	User    *User    `json:"user"`
	Account *Account `json:"account"`
	Method  string   `json:"method"`
}

// Complete reports whether both halves of the identity are present.
func (i *Identity) Complete() bool {
	return i != nil && i.User != nil && i.Account != nil
}

// SessionResponse is returned by endpoints where authentication is optional.
type SessionResponse struct {
	Authenticated bool     `json:"authenticated"`
	User          *User    `json:"user,omitempty"`
	Account       *Account `json:"account,omitempty"`
}

// TokenResponse carries a freshly issued access token.
type TokenResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	User        *User    `json:"user,omitempty"`
	Account     *Account `json:"account,omitempty"`
}
