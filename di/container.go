// Package di wires concrete gateway and driver implementations into the
// usecases. Construction order follows the dependency graph, leaves first.
package di

import (
	"context"
	"fmt"
	"log/slog"

	"imgcdn/config"
	"imgcdn/driver/edge_cache"
	"imgcdn/driver/storage"
	"imgcdn/gateway/image_fetch_gateway"
	"imgcdn/gateway/image_processing_gateway"
	"imgcdn/middleware"
	"imgcdn/port/edge_cache_port"
	"imgcdn/port/storage_port"
	"imgcdn/usecase/proxy_image_usecase"
	"imgcdn/usecase/purge_cache_usecase"
	"imgcdn/utils/metrics"
	"imgcdn/utils/security"
)

// ApplicationComponents holds every constructed dependency the REST layer
// needs.
type ApplicationComponents struct {
	URLValidator      *security.URLValidator
	Storage           storage_port.StoragePort
	EdgeCache         edge_cache_port.EdgeCachePort
	ProxyImageUsecase *proxy_image_usecase.ProxyImageUsecase
	PurgeCacheUsecase *purge_cache_usecase.PurgeCacheUsecase
	RateLimiter       *middleware.RateLimiter
	Metrics           *metrics.Collector
	CacheTTLSeconds   int
}

// NewApplicationComponents builds the full graph from configuration.
func NewApplicationComponents(ctx context.Context, cfg *config.Config, log *slog.Logger) (*ApplicationComponents, error) {
	validator := security.NewURLValidator(cfg.AllowedDomainList())
	collector := metrics.NewCollector()

	store, err := newStorage(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("storage backend: %w", err)
	}

	edge, err := newEdgeCache(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("edge cache: %w", err)
	}

	fetcher := image_fetch_gateway.NewImageFetchGateway(
		validator, cfg.Upstream.Timeout, cfg.Upstream.MaxImageSizeBytes)
	processor := image_processing_gateway.NewProcessingGateway()

	proxyUsecase := proxy_image_usecase.NewProxyImageUsecase(
		edge, store, fetcher, processor, collector, cfg.Cache.TTL, log)
	purgeUsecase := purge_cache_usecase.NewPurgeCacheUsecase(edge, store, collector, log)

	return &ApplicationComponents{
		URLValidator:      validator,
		Storage:           store,
		EdgeCache:         edge,
		ProxyImageUsecase: proxyUsecase,
		PurgeCacheUsecase: purgeUsecase,
		RateLimiter:       middleware.NewRateLimiter(cfg.RateLimit.PerMinute),
		Metrics:           collector,
		CacheTTLSeconds:   int(cfg.Cache.TTL.Seconds()),
	}, nil
}

func newStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage_port.StoragePort, error) {
	switch cfg.Storage.Backend {
	case config.BackendFS:
		return storage.NewFilesystemStorage(cfg.Storage.CacheDir, log)
	case config.BackendS3, config.BackendR2:
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:    cfg.Storage.S3Bucket,
			Region:    cfg.Storage.S3Region,
			Endpoint:  cfg.Storage.S3Endpoint,
			AccessKey: cfg.Storage.S3AccessKey,
			SecretKey: cfg.Storage.S3SecretKey,
		}, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func newEdgeCache(cfg *config.Config, log *slog.Logger) (edge_cache_port.EdgeCachePort, error) {
	if cfg.Cache.RedisURL != "" {
		return edge_cache.NewRedisCache(cfg.Cache.RedisURL, log)
	}
	return edge_cache.NewMemoryCache(cfg.Cache.MaxEntries, cfg.Cache.MaxBytes), nil
}
