// Package cache is the Redis layer in front of PostgreSQL: pet lookup
// entries with negative caching, cached account roles and the per-IP
// token buckets behind rate limiting.
//
// Key space:
//
//	pet:<code>             hash, CachedPet
//	pet:<code>:neg         marker, code known not to exist
//	pet:<code>:gen         counter, bumped on every write or eviction
//	session:role:<id>      string, account role
//	ratelimit:lookup:<ip>  hash, token bucket
//	ratelimit:login:<ip>   hash, token bucket
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps one Redis client. Callers treat every error as a miss and
// fall back to PostgreSQL.
type Cache struct {
	client *redis.Client
}

// New connects to redisURL and fails unless the server answers PING.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.ClientName == "" {
		opt.ClientName = "petlink"
	}
	opt.PoolSize, opt.MinIdleConns = 10, 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	c := NewFromClient(redis.NewClient(opt))
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return c, nil
}

// NewFromClient wraps an existing client, as tests do.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

func (c *Cache) Close() error { return c.client.Close() }

// Client exposes the raw client for the scan stream, which needs stream
// commands the Cache does not wrap.
func (c *Cache) Client() *redis.Client { return c.client }
