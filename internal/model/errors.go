package model

import "errors"

// Lookup errors shared by the identity store and its callers.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailExists     = errors.New("email already exists")
	ErrAccountNotFound = errors.New("account not found")
	ErrAPIKeyNotFound  = errors.New("API key not found")
)
