package auth

import "strings"

// Header names read by the resolver.
const (
	HeaderAuthorization = "Authorization"
	HeaderAccountID     = "account_id"
)

// APIKeyMarker is the literal that marks an Authorization header as an API key.
const APIKeyMarker = "l3_"

// undefinedAccountID is what browser clients send when no account is selected.
const undefinedAccountID = "undefined"

// CredentialKind tags the shape of a parsed Authorization header.
type CredentialKind int

const (
	// CredentialBearer is a JWT access token.
	CredentialBearer CredentialKind = iota
	// CredentialAPIKey is a long-lived l3_ API key.
	CredentialAPIKey
)

func (k CredentialKind) String() string {
	switch k {
	case CredentialAPIKey:
		return "api_key"
	case CredentialBearer:
		return "bearer"
	default:
		return "unknown"
	}
}

// Credential is the result of parsing an Authorization header once.
type Credential struct {
	Kind   CredentialKind
	Scheme string
	Token  string
}

// ParseCredential classifies a raw Authorization header value.
// Any header containing APIKeyMarker is an API key, whatever its scheme.
func ParseCredential(header string) Credential {
	scheme, token := splitAuthorization(header)
	kind := CredentialBearer
	if strings.Contains(header, APIKeyMarker) {
		kind = CredentialAPIKey
	}
	return Credential{Kind: kind, Scheme: scheme, Token: token}
}

// IsBearer reports whether the header used the Bearer scheme.
func (c Credential) IsBearer() bool {
	return strings.EqualFold(c.Scheme, "Bearer")
}

// splitAuthorization splits "<scheme> <param>" at the first space.
// A header without a space yields the whole value as scheme and an empty param.
func splitAuthorization(header string) (scheme, param string) {
	scheme, param, _ = strings.Cut(header, " ")
	return scheme, param
}

// noAccountSelected reports whether the account_id header should fall back
// to the account created by the user.
func noAccountSelected(accountID string) bool {
	return accountID == "" || accountID == undefinedAccountID
}
