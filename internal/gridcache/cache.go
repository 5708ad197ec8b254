// Package gridcache caches compiled grids in Redis. Entries live for a short
// TTL and are dropped whenever a business's configuration or locks change;
// within the TTL a slightly stale grid is acceptable because lock acquisition
// always re-derives cell status from the store.
package gridcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"bookgrid/internal/models"
)

// Cache is a Redis-backed grid read cache.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

// New creates a cache over the given client.
func New(rdb *redis.Client, ttl time.Duration, logger *zerolog.Logger) *Cache {
	return &Cache{rdb: rdb, ttl: ttl, logger: logger}
}

// Get returns cached entries for the key, if present and decodable.
func (c *Cache) Get(ctx context.Context, key string) ([]models.SlotGridEntry, bool) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var entries []models.SlotGridEntry
	if err := json.Unmarshal([]byte(val), &entries); err != nil {
		return nil, false
	}
	return entries, true
}

// Set stores entries under the key for the cache TTL. Failures are logged
// and swallowed; the cache is best-effort.
func (c *Cache) Set(ctx context.Context, key string, entries []models.SlotGridEntry) {
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("grid cache set failed")
	}
}

// Invalidate drops every cached grid for a business.
func (c *Cache) Invalidate(ctx context.Context, businessID int64) {
	pattern := fmt.Sprintf("grid:%d:*", businessID)
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Debug().Err(err).Str("key", iter.Val()).Msg("grid cache del failed")
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Debug().Err(err).Str("pattern", pattern).Msg("grid cache scan failed")
	}
}
