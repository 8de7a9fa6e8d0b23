package dto

import "github.com/l3agi/l3server/internal/model"

// APIKeyListResponse wraps the keys of the resolved account.
type APIKeyListResponse struct {
	Keys []model.APIKeyResponse `json:"keys"`
}
