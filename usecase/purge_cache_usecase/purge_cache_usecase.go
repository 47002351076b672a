// Package purge_cache_usecase invalidates every cached variant of one source
// image by key prefix.
package purge_cache_usecase

import (
	"context"
	"log/slog"
	"net/http"

	"imgcdn/domain"
	"imgcdn/port/edge_cache_port"
	"imgcdn/port/storage_port"
	apperrors "imgcdn/utils/errors"
	"imgcdn/utils/metrics"
)

// PurgeResult reports how many persistent entries were removed.
type PurgeResult struct {
	Prefix  string `json:"prefix"`
	Removed int    `json:"removed"`
}

// PurgeCacheUsecase removes entries from both cache tiers.
type PurgeCacheUsecase struct {
	edge      edge_cache_port.EdgeCachePort
	store     storage_port.StoragePort
	collector *metrics.Collector
	log       *slog.Logger
}

// NewPurgeCacheUsecase wires the purge path.
func NewPurgeCacheUsecase(
	edge edge_cache_port.EdgeCachePort,
	store storage_port.StoragePort,
	collector *metrics.Collector,
	log *slog.Logger,
) *PurgeCacheUsecase {
	return &PurgeCacheUsecase{edge: edge, store: store, collector: collector, log: log}
}

// PurgeByBaseURL removes every variant of the image identified by the base
// URL from the edge cache and the persistent store.
func (u *PurgeCacheUsecase) PurgeByBaseURL(ctx context.Context, baseURL string) (*PurgeResult, error) {
	prefix := domain.CachePrefix(baseURL)

	u.edge.DeleteByPrefix(ctx, prefix)

	removed, err := u.store.DeleteByPrefix(ctx, prefix)
	if err != nil {
		u.log.Error("cache purge failed", "prefix", prefix, "error", err)
		return nil, apperrors.Wrap(http.StatusInternalServerError, apperrors.CodePurgeFailed,
			"failed to purge cached variants", err)
	}

	u.collector.RecordPurge()
	u.log.Info("cache purged", "prefix", prefix, "removed", removed)
	return &PurgeResult{Prefix: prefix, Removed: removed}, nil
}
