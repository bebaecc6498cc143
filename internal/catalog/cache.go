package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "catalog:"

// Cache keeps rendered listing results in Redis for a short TTL. A nil Cache
// or one without a client is a no-op.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCache constructs a cache helper. A non-positive ttl disables caching.
func NewCache(client redis.UniversalClient, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Load decodes the cached payload stored under key into dst. It reports whether the key existed.
func (c *Cache) Load(ctx context.Context, key string, dst any) (bool, error) {
	if !c.enabled() || key == "" {
		return false, nil
	}
	raw, err := c.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Store serialises v and keeps it under key until the TTL elapses.
func (c *Cache) Store(ctx context.Context, key string, v any) error {
	if !c.enabled() || key == "" {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKeyPrefix+key, raw, c.ttl).Err()
}
