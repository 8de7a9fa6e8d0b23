package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultExpiryHours applies when JWT_EXPIRY is unset or unusable.
const DefaultExpiryHours = 300

// MaxExpiryHours caps token lifetimes at ten years.
const MaxExpiryHours = 10 * 365 * 24

const accessTokenType = "access"

var (
	// ErrMissingSubject is returned for tokens without a sub claim.
	ErrMissingSubject = errors.New("token has no subject")
	// ErrWrongTokenType is returned for tokens that are not access tokens.
	ErrWrongTokenType = errors.New("only access tokens are allowed")
	// ErrExpiryTooLong is returned for lifetimes above MaxExpiryHours.
	ErrExpiryTooLong = errors.New("token expiry exceeds maximum")
)

// AccessClaims is the payload of an issued access token.
type AccessClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens whose subject is the user's email.
type TokenIssuer struct {
	secret      []byte
	expiryHours int
	now         func() time.Time
}

// NewTokenIssuer creates an issuer. expiryHours outside (0, MaxExpiryHours]
// falls back to DefaultExpiryHours.
func NewTokenIssuer(secret string, expiryHours int) *TokenIssuer {
	if !ValidExpiryHours(expiryHours) {
		expiryHours = DefaultExpiryHours
	}
	return &TokenIssuer{
		secret:      []byte(secret),
		expiryHours: expiryHours,
		now:         time.Now,
	}
}

// ExpiryHours returns the default lifetime of issued tokens.
func (i *TokenIssuer) ExpiryHours() int {
	return i.expiryHours
}

// Issue signs an access token for subject. An explicit positive expiryHours
// overrides the configured lifetime; one above MaxExpiryHours is an error.
func (i *TokenIssuer) Issue(subject string, expiryHours ...int) (string, error) {
	if subject == "" {
		return "", ErrMissingSubject
	}

	hours := i.expiryHours
	if len(expiryHours) > 0 && expiryHours[0] > 0 {
		if expiryHours[0] > MaxExpiryHours {
			return "", ErrExpiryTooLong
		}
		hours = expiryHours[0]
	}

	now := i.now()
	claims := AccessClaims{
		Type: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(hours) * time.Hour)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and token type and returns the claims.
func (i *TokenIssuer) Verify(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, err
	}

	if claims.Type != accessTokenType {
		return nil, ErrWrongTokenType
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

// ParseExpiryHours converts the string-typed JWT_EXPIRY setting to hours.
// Empty, unparseable, non-positive and over-cap values yield DefaultExpiryHours.
func ParseExpiryHours(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultExpiryHours
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || !ValidExpiryHours(hours) {
		return DefaultExpiryHours
	}
	return hours
}

// ValidExpiryHours reports whether hours is a usable token lifetime.
func ValidExpiryHours(hours int) bool {
	return hours > 0 && hours <= MaxExpiryHours
}
