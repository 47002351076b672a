package domain

import "time"

// CacheMetadata is the persistent metadata record stored adjacent to cached
// bytes (filesystem sidecar or object-store custom metadata).
type CacheMetadata struct {
	OriginalURL    string    `json:"original_url"`
	ContentType    string    `json:"content_type"`
	OriginalSize   int64     `json:"original_size"`
	CachedSize     int64     `json:"cached_size"`
	Width          int       `json:"width,omitempty"`
	Height         int       `json:"height,omitempty"`
	WorkspaceID    string    `json:"workspace_id,omitempty"`
	BlockID        string    `json:"block_id,omitempty"`
	CachedAt       time.Time `json:"cached_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	AccessCount    int64     `json:"access_count"`
}

// CachedEntry is a persistent-store record: bytes plus metadata.
type CachedEntry struct {
	Data     []byte
	Metadata CacheMetadata
}

// EdgeCacheEntry is a volatile edge-cache record. TTL is set at insertion by
// the cache implementation.
type EdgeCacheEntry struct {
	Data        []byte
	ContentType string
	CachedAt    time.Time
}

// FetchResult is a successful upstream fetch.
type FetchResult struct {
	Data         []byte
	ContentType  string
	OriginalSize int64
}

// ProcessedImage is the optimizer output.
type ProcessedImage struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}
