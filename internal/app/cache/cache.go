// Package cache provides a small JSON cache over Redis. A nil Cache is valid
// and behaves as a permanent miss, so callers need no redis in tests or when
// caching is disabled.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/earnhub/platform/pkg/logger"
)

// Cache wraps a redis client with JSON helpers.
type Cache struct {
	client *redis.Client
	log    *logger.Logger
}

// New connects to redis. Returns nil (cache disabled) when addr is empty or
// the server is unreachable.
func New(ctx context.Context, addr, password string, db int, log *logger.Logger) *Cache {
	if addr == "" {
		return nil
	}
	if log == nil {
		log = logger.NewDefault("cache")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).Warn("redis unreachable; caching disabled")
		_ = client.Close()
		return nil
	}

	return &Cache{client: client, log: log}
}

// GetJSON loads key into v, reporting whether it was a hit.
func (c *Cache) GetJSON(ctx context.Context, key string, v interface{}) bool {
	if c == nil {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("discarding corrupt cache entry")
		_ = c.client.Del(ctx, key).Err()
		return false
	}
	return true
}

// SetJSON stores v under key with a TTL. Failures are logged, never surfaced.
func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache marshal failed")
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache set failed")
	}
}

// Invalidate removes keys.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.WithError(err).Warn("cache invalidate failed")
	}
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
