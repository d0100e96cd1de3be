// Package rediscache is an optional, fail-open read-through cache in front
// of CatalogRepo's lead lookups, repurposing the spec's reserved REDIS_URL
// slot (spec.md §6). Grounded on event-service's
// internal/infrastructure/caching/redis/client.go.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache wraps a go-redis client. Every method fails open: a Redis error is
// logged and treated as a cache miss, never surfaced to the caller, since
// the catalog is authoritative in Postgres and Redis is purely an
// accelerator.
type Cache struct {
	rdb *redis.Client
	log zerolog.Logger
}

func New(url string, log zerolog.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Cache{rdb: rdb, log: log.With().Str("component", "rediscache").Logger()}, nil
}

func (c *Cache) Close() error { return c.rdb.Close() }

// Get reports whether key was found and populates dest on hit. Any Redis
// error is swallowed and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache get failed, falling back to db")
		}
		return false
	}
	if err := json.Unmarshal(val, dest); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache value decode failed, falling back to db")
		return false
	}
	return true
}

// Set stores val under key with ttl. Failures are logged, never returned,
// since callers should not fail the request over a cache-write error.
func (c *Cache) Set(ctx context.Context, key string, val any, ttl time.Duration) {
	bytes, err := json.Marshal(val)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache value encode failed")
		return
	}
	if err := c.rdb.Set(ctx, key, bytes, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}
