package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petlink/petlink/internal/model"
)

const (
	// sessionCachePrefix is the Redis key prefix for cached account roles.
	sessionCachePrefix = "session:role:"
	// sessionCacheTTL bounds how long a role change takes to apply to
	// already issued tokens.
	sessionCacheTTL = 5 * time.Minute
)

// GetSessionRole returns the cached role for an account.
// Returns ErrCacheMiss if not cached.
func (c *Cache) GetSessionRole(ctx context.Context, accountID string) (model.Role, error) {
	role, err := c.client.Get(ctx, sessionCachePrefix+accountID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("failed to get session role: %w", err)
	}

	r := model.Role(role)
	if !r.IsValid() {
		// Corrupted cache entry - treat as miss
		return "", ErrCacheMiss
	}
	return r, nil
}

// SetSessionRole caches the current role of an account.
func (c *Cache) SetSessionRole(ctx context.Context, accountID string, role model.Role) error {
	return c.client.Set(ctx, sessionCachePrefix+accountID, string(role), sessionCacheTTL).Err()
}

// DeleteSessionRole drops the cached role. Used when the role changes.
func (c *Cache) DeleteSessionRole(ctx context.Context, accountID string) error {
	return c.client.Del(ctx, sessionCachePrefix+accountID).Err()
}
