package metrics

import "sync"

// Snapshot is a point-in-time view of proxy counters.
type Snapshot struct {
	TotalRequests  int64 `json:"total_requests"`
	EdgeHits       int64 `json:"edge_hits"`
	StoreHits      int64 `json:"store_hits"`
	OriginFetches  int64 `json:"origin_fetches"`
	UpstreamErrors int64 `json:"upstream_errors"`
	PurgedPrefixes int64 `json:"purged_prefixes"`
}

// Collector provides thread-safe counters for the request pipeline.
type Collector struct {
	mu             sync.RWMutex
	totalRequests  int64
	edgeHits       int64
	storeHits      int64
	originFetches  int64
	upstreamErrors int64
	purgedPrefixes int64
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) RecordRequest() {
	c.mu.Lock()
	c.totalRequests++
	c.mu.Unlock()
}

func (c *Collector) RecordEdgeHit() {
	c.mu.Lock()
	c.edgeHits++
	c.mu.Unlock()
}

func (c *Collector) RecordStoreHit() {
	c.mu.Lock()
	c.storeHits++
	c.mu.Unlock()
}

func (c *Collector) RecordOriginFetch() {
	c.mu.Lock()
	c.originFetches++
	c.mu.Unlock()
}

func (c *Collector) RecordUpstreamError() {
	c.mu.Lock()
	c.upstreamErrors++
	c.mu.Unlock()
}

func (c *Collector) RecordPurge() {
	c.mu.Lock()
	c.purgedPrefixes++
	c.mu.Unlock()
}

// GetSnapshot returns current counter values.
func (c *Collector) GetSnapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		TotalRequests:  c.totalRequests,
		EdgeHits:       c.edgeHits,
		StoreHits:      c.storeHits,
		OriginFetches:  c.originFetches,
		UpstreamErrors: c.upstreamErrors,
		PurgedPrefixes: c.purgedPrefixes,
	}
}
