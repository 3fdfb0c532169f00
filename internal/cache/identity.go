package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// IdentityCache stores resolved identities so bearer checks skip the user lookup.
type IdentityCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewIdentityCache builds a cache with the given entry lifetime.
func NewIdentityCache(client redis.Cmdable, ttl time.Duration) *IdentityCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &IdentityCache{client: client, ttl: ttl}
}

// Get returns the cached identity, or nil on a miss. Undecodable entries count as misses.
func (c *IdentityCache) Get(ctx context.Context, userID string) (*domain.Identity, error) {
	data, err := c.client.Get(ctx, identityKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}

	var identity domain.Identity
	if err := json.Unmarshal(data, &identity); err != nil || identity.ID != userID {
		return nil, nil //nolint:nilerr
	}
	return &identity, nil
}

// Set caches identity under its user id.
func (c *IdentityCache) Set(ctx context.Context, identity domain.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	return c.client.Set(ctx, identityKey(identity.ID), data, c.ttl).Err()
}
