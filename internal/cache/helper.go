package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"recipebox/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Key helpers and TTLs.
const (
	RecipeKeyPrefix = "recipe:"
	RecipeTTL       = 30 * time.Minute
)

// RecipeKey is the cache key of a recipe detail (recipe + author).
func RecipeKey(recipeID string) string {
	return RecipeKeyPrefix + recipeID
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	s, err := rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		observability.CacheResults.WithLabelValues("miss").Inc()
		return false, nil
	}
	if err != nil {
		observability.CacheResults.WithLabelValues("error").Inc()
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		observability.CacheResults.WithLabelValues("error").Inc()
		return false, err
	}
	observability.CacheResults.WithLabelValues("hit").Inc()
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, rdb *redis.Client, key string, v any, ttl time.Duration) error {
	if rdb == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first; on a miss it calls fetch, which must populate dest,
// then stores dest with ttl. Cache failures never fail the read.
func Aside(ctx context.Context, rdb *redis.Client, key string, dest any, ttl time.Duration, fetch func() error) error {
	if found, err := GetJSON(ctx, rdb, key, dest); err == nil && found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	_ = SetJSON(ctx, rdb, key, dest, ttl)
	return nil
}

// Invalidate removes key; a nil client is a no-op.
func Invalidate(ctx context.Context, rdb *redis.Client, key string) {
	if rdb != nil {
		rdb.Del(ctx, key)
	}
}
