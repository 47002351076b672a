// Package edge_cache provides the volatile L2 tier implementations: an
// in-process LRU with entry and byte caps, and a shared Redis cache where
// every operation is best-effort.
package edge_cache

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"imgcdn/domain"
)

// Default limits for the in-process cache.
const (
	DefaultMaxEntries = 1000
	DefaultMaxBytes   = 512 << 20
)

// keyNamespace prefixes every stored key so cache contents cannot collide
// with co-tenants of the backing store.
const keyNamespace = "imgcdn:edge:"

type memoryEntry struct {
	entry     *domain.EdgeCacheEntry
	expiresAt time.Time
	size      int64
}

// MemoryCache is an in-process LRU edge cache bounded by entry count and
// total bytes. Entries larger than the byte cap are silently not cached.
type MemoryCache struct {
	mu       sync.Mutex
	entries  *lru.Cache[string, *memoryEntry]
	bytes    int64
	maxBytes int64
}

// NewMemoryCache creates a MemoryCache. Non-positive limits fall back to the
// defaults.
func NewMemoryCache(maxEntries int, maxBytes int64) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	c := &MemoryCache{maxBytes: maxBytes}

	// The eviction callback runs synchronously under c.mu from Add/Remove,
	// so the byte counter stays consistent with the key set.
	cache, err := lru.NewWithEvict(maxEntries, func(_ string, v *memoryEntry) {
		c.bytes -= v.size
	})
	if err != nil {
		// Only reachable with a non-positive size, which is guarded above.
		panic(err)
	}
	c.entries = cache
	return c
}

// Get returns the entry for key. Expired entries are evicted on read.
func (c *MemoryCache) Get(_ context.Context, key string) (*domain.EdgeCacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.entries.Get(keyNamespace + key)
	if !ok {
		return nil, false
	}
	if time.Now().After(item.expiresAt) {
		c.entries.Remove(keyNamespace + key)
		return nil, false
	}
	return item.entry, true
}

// Set stores the entry, evicting least-recently-used entries until both the
// entry and byte caps hold.
func (c *MemoryCache) Set(_ context.Context, key string, entry *domain.EdgeCacheEntry, ttl time.Duration) {
	if entry == nil || ttl <= 0 {
		return
	}
	size := int64(len(entry.Data))
	if size > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Replacing a key must not double-count its bytes.
	c.entries.Remove(keyNamespace + key)

	c.entries.Add(keyNamespace+key, &memoryEntry{
		entry:     entry,
		expiresAt: time.Now().Add(ttl),
		size:      size,
	})
	c.bytes += size

	for c.bytes > c.maxBytes && c.entries.Len() > 1 {
		c.entries.RemoveOldest()
	}
}

// Delete removes one key.
func (c *MemoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(keyNamespace + key)
}

// DeleteByPrefix removes every key sharing the prefix.
func (c *MemoryCache) DeleteByPrefix(_ context.Context, prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, keyNamespace+prefix) {
			c.entries.Remove(key)
		}
	}
}

// HealthCheck always succeeds for the in-process cache.
func (c *MemoryCache) HealthCheck(_ context.Context) bool {
	return true
}

// Name identifies this implementation.
func (c *MemoryCache) Name() string {
	return "memory_lru"
}
