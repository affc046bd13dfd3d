package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time // when the bucket is full again
	RetryAfter time.Duration
}

// bucket names one family of per-IP token buckets.
type bucket struct {
	prefix string
	// idle is how long an untouched bucket survives; it must exceed the
	// time a drained bucket needs to refill.
	idle time.Duration
}

var (
	lookupBucket = bucket{prefix: "ratelimit:lookup:", idle: 2 * time.Minute}
	loginBucket  = bucket{prefix: "ratelimit:login:", idle: 15 * time.Minute}
)

var errInvalidLimit = errors.New("rate and burst must be positive")

// tokenBucketScript refills and takes one token atomically. Times are in
// milliseconds so per-minute rates refill smoothly.
//
// KEYS[1] bucket key
// ARGV    rate (tokens/s), burst, now (ms), idle ttl (ms)
// returns {allowed, retry_after_ms, tokens_left}
var tokenBucketScript = redis.NewScript(`
local rate  = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now   = tonumber(ARGV[3])

local state  = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1]) or burst
local ts     = tonumber(state[2]) or now

if now > ts then
	tokens = math.min(burst, tokens + (now - ts) / 1000 * rate)
end

local allowed, wait = 0, 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
else
	wait = math.ceil((1 - tokens) / rate * 1000)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', now)
redis.call('PEXPIRE', KEYS[1], ARGV[4])

return {allowed, wait, math.floor(tokens)}
`)

// CheckIPRateLimit takes a token from the public lookup bucket of ip.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	return c.take(ctx, lookupBucket, ip, float64(ratePerSecond), burst)
}

// CheckLoginRateLimit takes a token from the sign-in bucket of ip.
func (c *Cache) CheckLoginRateLimit(ctx context.Context, ip string, ratePerMinute, burst int) (*RateLimitResult, error) {
	return c.take(ctx, loginBucket, ip, float64(ratePerMinute)/60, burst)
}

// take runs the bucket script. Redis errors are returned; callers decide
// whether to fail open.
func (c *Cache) take(ctx context.Context, b bucket, ip string, rate float64, burst int) (*RateLimitResult, error) {
	if rate <= 0 || burst <= 0 {
		return nil, errInvalidLimit
	}

	now := time.Now()
	vals, err := tokenBucketScript.Run(ctx, c.client,
		[]string{b.prefix + hashIP(ip)},
		rate, burst, now.UnixMilli(), b.idle.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", b.prefix, err)
	}
	if len(vals) != 3 {
		return nil, fmt.Errorf("rate limit %s: unexpected reply %v", b.prefix, vals)
	}

	remaining := vals[2]
	return &RateLimitResult{
		Allowed:    vals[0] == 1,
		Remaining:  remaining,
		ResetAt:    now.Add(refillTime(rate, burst, remaining)),
		RetryAfter: time.Duration(vals[1]) * time.Millisecond,
	}, nil
}

// refillTime is how long a bucket holding remaining tokens needs to be full.
func refillTime(rate float64, burst int, remaining int64) time.Duration {
	missing := float64(int64(burst) - remaining)
	if missing <= 0 || rate <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(missing / rate * float64(time.Second)))
}

// hashIP keys buckets by a truncated SHA-256 so raw addresses never reach Redis.
func hashIP(ip string) string {
	sum := sha256.Sum256([]byte("petlink:ip:" + ip))
	return hex.EncodeToString(sum[:8])
}
