package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/l3agi/l3server/internal/model"
)

const (
	// identityCachePrefix is the Redis key prefix for cached identities.
	identityCachePrefix = "auth:identity:"
	// keyIndexPrefix maps an API key ID to the cache keys holding its identity.
	keyIndexPrefix = "auth:key:"
	// IdentityCacheTTL is the time-to-live for cached identities.
	IdentityCacheTTL = 5 * time.Minute
)

// cachedIdentity is the stored form of an API-key identity.
type cachedIdentity struct {
	KeyID   string         `json:"key_id"`
	User    *model.User    `json:"user"`
	Account *model.Account `json:"account"`
}

func identityKey(cacheKey string) string { return identityCachePrefix + cacheKey }

func keyIndexKey(keyID string) string { return keyIndexPrefix + keyID }

func encodeIdentity(keyID string, identity *model.Identity) ([]byte, error) {
	if !identity.Complete() {
		return nil, fmt.Errorf("identity is incomplete")
	}
	return json.Marshal(cachedIdentity{KeyID: keyID, User: identity.User, Account: identity.Account})
}

// decodeIdentity returns nil for corrupt or incomplete entries.
func decodeIdentity(data []byte) *model.Identity {
	var cached cachedIdentity
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil
	}
	identity := &model.Identity{User: cached.User, Account: cached.Account, Method: model.MethodAPIKey}
	if !identity.Complete() {
		return nil
	}
	return identity
}

// GetIdentity retrieves a cached identity by cache key.
// Returns nil if not found (cache miss) or the entry is unreadable.
func (c *Cache) GetIdentity(ctx context.Context, cacheKey string) (*model.Identity, error) {
	data, err := c.client.Get(ctx, identityKey(cacheKey)).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}
	return decodeIdentity(data), nil
}

// SetIdentity caches an identity resolved from the API key keyID and records
// the cache key under keyID so revocation can find it.
func (c *Cache) SetIdentity(ctx context.Context, cacheKey, keyID string, identity *model.Identity) error {
	data, err := encodeIdentity(keyID, identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, identityKey(cacheKey), data, IdentityCacheTTL)
	pipe.SAdd(ctx, keyIndexKey(keyID), cacheKey)
	pipe.Expire(ctx, keyIndexKey(keyID), IdentityCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache identity: %w", err)
	}
	return nil
}

// DeleteIdentitiesForKey removes every cached identity for an API key.
// Used when a key is revoked.
func (c *Cache) DeleteIdentitiesForKey(ctx context.Context, keyID string) error {
	index := keyIndexKey(keyID)
	cacheKeys, err := c.client.SMembers(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("read key index: %w", err)
	}

	keys := make([]string, 0, len(cacheKeys)+1)
	for _, ck := range cacheKeys {
		keys = append(keys, identityKey(ck))
	}
	keys = append(keys, index)

	return c.client.Del(ctx, keys...).Err()
}
