// Package readcache implements the Read-Through Cache (spec §4.4): a
// Redis-backed cache in front of the upstream session pool for read-shaped
// RPC operations, keyed by a canonicalized (tenant, op, model, payload)
// digest and invalidated by (tenant, model) pattern on writes.
package readcache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/geniustep/bridgecore/internal/canon"
)

// DefaultTTL matches cache.default_ttl_s (§6.4).
const DefaultTTL = 300 * time.Second

const scanCount = 200

// Cache wraps Redis for read-through caching with tenant/model pattern
// invalidation.
type Cache struct {
	rdb    *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// New creates a Cache with the given TTL.
func New(rdb *redis.Client, logger *slog.Logger, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, logger: logger, ttl: ttl}
}

// entryKey builds the Redis key, namespaced by tenant and model so
// Invalidate can target exactly the entries a write on that model could
// have affected, per spec §3's "every key includes (tenant, M)" invariant.
func entryKey(tenantID, model, digest string) string {
	return fmt.Sprintf("rc:%s:%s:%s", tenantID, model, digest)
}

// Get looks up a cached result. ok is false on a miss; a Redis error is
// treated as a miss (fail open to upstream) and logged.
func (c *Cache) Get(ctx context.Context, tenantID, op, model string, payload canon.Value) (result []byte, ok bool) {
	key := entryKey(tenantID, model, canon.CacheKey(tenantID, op, model, payload))
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("readcache: get failed, treating as miss", "error", err)
		}
		return nil, false
	}
	return val, true
}

// Set stores a successful result. Per spec §4.4, a failed call never
// populates the cache — callers must only invoke Set on success.
func (c *Cache) Set(ctx context.Context, tenantID, op, model string, payload canon.Value, result []byte) {
	key := entryKey(tenantID, model, canon.CacheKey(tenantID, op, model, payload))
	if err := c.rdb.Set(ctx, key, result, c.ttl).Err(); err != nil {
		c.logger.Warn("readcache: set failed", "error", err, "key", key)
	}
}

// Invalidate drops every cache entry for (tenantID, model) via SCAN+DEL.
// Per spec §5's ordering guarantee, the caller must await Invalidate before
// returning the response of the triggering write so subsequent reads miss;
// reads already in flight may still observe the pre-invalidation value.
func (c *Cache) Invalidate(ctx context.Context, tenantID, model string) error {
	pattern := fmt.Sprintf("rc:%s:%s:*", tenantID, model)

	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return fmt.Errorf("readcache: scanning keys for invalidation: %w", err)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("readcache: deleting keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
