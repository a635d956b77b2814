// Package redis caches expensive read views. Only projections live here;
// balances and ledger state are always read from the store.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crestbank/core/pkg/logger"
)

const (
	// DefaultTTL bounds how stale a cached view may be.
	DefaultTTL = 30 * time.Second

	// KeyPrefix namespaces all view cache keys
	KeyPrefix = "crestbank:"
)

// ViewCache is a Redis-backed JSON cache for read views
type ViewCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewViewCache creates a new view cache with the default TTL
func NewViewCache(client *redis.Client, log *logger.Logger) *ViewCache {
	return NewViewCacheWithTTL(client, DefaultTTL, log)
}

// NewViewCacheWithTTL creates a new view cache with a custom TTL
func NewViewCacheWithTTL(client *redis.Client, ttl time.Duration, log *logger.Logger) *ViewCache {
	return &ViewCache{
		client: client,
		ttl:    ttl,
		logger: log.WithField("component", "view_cache"),
	}
}

// Get retrieves a cached view into dest, reporting whether the key was
// present.
func (c *ViewCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.client.Get(ctx, KeyPrefix+key).Result()
	if err == redis.Nil {
		c.logger.Debug("cache miss", "key", key)
		return false, nil
	}
	if err != nil {
		c.logger.Error("cache error", "operation", "get", "key", key, "error", err)
		return false, fmt.Errorf("failed to get cached view: %w", err)
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached view: %w", err)
	}

	c.logger.Debug("cache hit", "key", key)
	return true, nil
}

// Set stores a view in the cache with the configured TTL
func (c *ViewCache) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal view: %w", err)
	}

	if err := c.client.Set(ctx, KeyPrefix+key, data, c.ttl).Err(); err != nil {
		c.logger.Error("cache error", "operation", "set", "key", key, "error", err)
		return fmt.Errorf("failed to set cached view: %w", err)
	}

	return nil
}

// Delete removes a cached view
func (c *ViewCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, KeyPrefix+key).Err()
}
