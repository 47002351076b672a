package storage_port

import (
	"context"
	"errors"

	"imgcdn/domain"
)

// ErrNotFound is returned by Get when no entry exists for the key. Callers
// treat it as a benign miss; every other error is surfaced.
var ErrNotFound = errors.New("cache entry not found")

// StoragePort is the persistent L3 tier contract.
type StoragePort interface {
	// Get returns the entry for key, or ErrNotFound. The filesystem backend
	// updates last-access metadata best-effort, and a metadata failure never
	// fails the read; the object-store backend does not update access
	// metadata on read.
	Get(ctx context.Context, key string) (*domain.CachedEntry, error)

	// Put stores bytes and metadata for key.
	Put(ctx context.Context, key string, data []byte, meta domain.CacheMetadata) error

	// Exists reports whether an entry is stored for key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes one entry.
	Delete(ctx context.Context, key string) error

	// DeleteByPrefix removes every entry sharing the prefix and returns the
	// number of entries removed.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)

	// HealthCheck reports whether the backing store is usable.
	HealthCheck(ctx context.Context) bool

	// Name identifies the implementation for stats and logs.
	Name() string
}
