package edge_cache_port

import (
	"context"
	"time"

	"imgcdn/domain"
)

// EdgeCachePort is the volatile L2 tier contract. Every operation is
// best-effort: implementations swallow I/O failures and behave as a miss or
// no-op so a degraded edge cache never takes the service down.
type EdgeCachePort interface {
	// Get returns the cached entry, or ok=false on miss, expiry, or error.
	Get(ctx context.Context, key string) (*domain.EdgeCacheEntry, bool)

	// Set stores the entry with the given TTL.
	Set(ctx context.Context, key string, entry *domain.EdgeCacheEntry, ttl time.Duration)

	// Delete removes one key.
	Delete(ctx context.Context, key string)

	// DeleteByPrefix removes every key sharing the prefix.
	DeleteByPrefix(ctx context.Context, prefix string)

	// HealthCheck reports whether the cache backend is reachable.
	HealthCheck(ctx context.Context) bool

	// Name identifies the implementation for stats and logs.
	Name() string
}
