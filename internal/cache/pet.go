package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petlink/petlink/internal/model"
)

// Cache key prefixes and TTLs.
const (
	petKeyPrefix      = "pet:"
	negCacheKeySuffix = ":neg"
	genKeySuffix      = ":gen"

	// DefaultPetTTL is the TTL for cached pet data.
	DefaultPetTTL = 6 * time.Hour

	// NegativeCacheTTL is the TTL for negative cache entries. Kept short so
	// a freshly registered code becomes visible quickly even if an earlier
	// miss was cached on another replica.
	NegativeCacheTTL = 30 * time.Second

	// genTTL outlives any entry written under the generation it guards.
	genTTL = DefaultPetTTL + time.Hour
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
	// ErrStaleBackfill means the code was written or evicted after the
	// caller read its generation, so the caller's data may be outdated.
	ErrStaleBackfill = errors.New("stale cache backfill")
)

// GetPet retrieves a pet from cache by code.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetPet(ctx context.Context, code string) (*model.Pet, error) {
	var cached model.CachedPet

	cmd := c.client.HGetAll(ctx, petKeyPrefix+code)
	if err := cmd.Err(); err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(cmd.Val()) == 0 {
		return nil, ErrCacheMiss
	}
	if err := cmd.Scan(&cached); err != nil {
		return nil, fmt.Errorf("decode cached pet: %w", err)
	}

	return cached.ToPet(code), nil
}

// PetGeneration returns the code's write generation. Read it before loading
// from the store and pass it to BackfillPet or BackfillMissing.
func (c *Cache) PetGeneration(ctx context.Context, code string) (int64, error) {
	gen, err := c.client.Get(ctx, petKeyPrefix+code+genKeySuffix).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read pet generation: %w", err)
	}
	return gen, nil
}

// SetPet stores fresh pet data, as the owner just wrote it, and clears any
// negative entry for its code. Pending backfills for the code are voided.
func (c *Cache) SetPet(ctx context.Context, pet *model.Pet) error {
	pipe := c.client.TxPipeline()
	bumpGeneration(ctx, pipe, pet.Code)
	writePet(ctx, pipe, pet)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache pet: %w", err)
	}
	return nil
}

// BackfillPet caches pet read from the store, unless the code's generation
// moved past gen meanwhile; then it returns ErrStaleBackfill.
func (c *Cache) BackfillPet(ctx context.Context, pet *model.Pet, gen int64) error {
	return c.writeAt(ctx, pet.Code, gen, func(pipe redis.Pipeliner) {
		writePet(ctx, pipe, pet)
	})
}

// BackfillMissing marks code as not found under the same guard as BackfillPet.
func (c *Cache) BackfillMissing(ctx context.Context, code string, gen int64) error {
	return c.writeAt(ctx, code, gen, func(pipe redis.Pipeliner) {
		pipe.SetEx(ctx, petKeyPrefix+code+negCacheKeySuffix, "", NegativeCacheTTL)
	})
}

// DeletePet evicts a pet and its negative entry, and voids pending backfills.
func (c *Cache) DeletePet(ctx context.Context, code string) error {
	key := petKeyPrefix + code

	pipe := c.client.TxPipeline()
	bumpGeneration(ctx, pipe, code)
	pipe.Del(ctx, key, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete pet from cache: %w", err)
	}
	return nil
}

// IsNegativelyCached checks if a code is in negative cache.
func (c *Cache) IsNegativelyCached(ctx context.Context, code string) (bool, error) {
	exists, err := c.client.Exists(ctx, petKeyPrefix+code+negCacheKeySuffix).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}

	return exists > 0, nil
}

// writeAt runs write in a transaction that only commits while the code's
// generation still equals gen.
func (c *Cache) writeAt(ctx context.Context, code string, gen int64, write func(redis.Pipeliner)) error {
	genKey := petKeyPrefix + code + genKeySuffix

	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return ErrStaleBackfill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			write(pipe)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil, errors.Is(err, ErrStaleBackfill):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return ErrStaleBackfill
	default:
		return fmt.Errorf("cache backfill: %w", err)
	}
}

func writePet(ctx context.Context, pipe redis.Pipeliner, pet *model.Pet) {
	key := petKeyPrefix + pet.Code
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, pet.ToCachedPet())
	pipe.Expire(ctx, key, DefaultPetTTL)
	pipe.Del(ctx, key+negCacheKeySuffix)
}

func bumpGeneration(ctx context.Context, pipe redis.Pipeliner, code string) {
	genKey := petKeyPrefix + code + genKeySuffix
	pipe.Incr(ctx, genKey)
	pipe.Expire(ctx, genKey, genTTL)
}
