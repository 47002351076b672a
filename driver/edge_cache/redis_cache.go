package edge_cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"imgcdn/domain"
)

// Hash fields of a cached entry.
const (
	fieldData        = "data"
	fieldContentType = "content_type"
	fieldCachedAt    = "cached_at"
)

// RedisCache is a shared edge cache backed by Redis. Every operation is
// best-effort: I/O failures are logged and the method behaves as a miss or
// no-op, so the service stays available while Redis is degraded.
type RedisCache struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisCache connects to the Redis URL (redis://host:port/db).
// Connection problems surface lazily per-operation, not here.
func NewRedisCache(redisURL string, log *slog.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{
		client: redis.NewClient(opts),
		log:    log,
	}, nil
}

// Get returns the entry for key, or ok=false on miss or any Redis failure.
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.EdgeCacheEntry, bool) {
	fields, err := c.client.HGetAll(ctx, keyNamespace+key).Result()
	if err != nil {
		c.log.Warn("edge cache get failed", "key", key, "error", err)
		return nil, false
	}
	if len(fields) == 0 {
		return nil, false
	}

	data, ok := fields[fieldData]
	if !ok {
		return nil, false
	}

	cachedAt, _ := time.Parse(time.RFC3339Nano, fields[fieldCachedAt])
	return &domain.EdgeCacheEntry{
		Data:        []byte(data),
		ContentType: fields[fieldContentType],
		CachedAt:    cachedAt,
	}, true
}

// Set stores the entry with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, entry *domain.EdgeCacheEntry, ttl time.Duration) {
	if entry == nil || ttl <= 0 {
		return
	}

	namespaced := keyNamespace + key
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, namespaced, map[string]interface{}{
		fieldData:        entry.Data,
		fieldContentType: entry.ContentType,
		fieldCachedAt:    entry.CachedAt.Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, namespaced, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("edge cache set failed", "key", key, "error", err)
	}
}

// Delete removes one key.
func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, keyNamespace+key).Err(); err != nil {
		c.log.Warn("edge cache delete failed", "key", key, "error", err)
	}
}

// DeleteByPrefix scans for namespaced keys under the prefix and deletes them
// in batches.
func (c *RedisCache) DeleteByPrefix(ctx context.Context, prefix string) {
	match := keyNamespace + prefix + "*"
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, 200).Result()
		if err != nil {
			c.log.Warn("edge cache scan failed", "prefix", prefix, "error", err)
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.log.Warn("edge cache prefix delete failed", "prefix", prefix, "error", err)
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// HealthCheck reports whether Redis answers a ping.
func (c *RedisCache) HealthCheck(ctx context.Context) bool {
	return c.client.Ping(ctx).Err() == nil
}

// Name identifies this implementation.
func (c *RedisCache) Name() string {
	return "redis_edge"
}
