// Package proxy_image_usecase orchestrates the three-tier probe: edge cache,
// persistent store, then a single-flighted upstream fetch with optimization
// and fire-and-forget cache writes.
package proxy_image_usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"imgcdn/domain"
	"imgcdn/port/edge_cache_port"
	"imgcdn/port/image_fetch_port"
	"imgcdn/port/image_processing_port"
	"imgcdn/port/storage_port"
	apperrors "imgcdn/utils/errors"
	"imgcdn/utils/metrics"
)

// Cache tier labels reported in X-Cache-Tier.
const (
	TierEdge       = "L2_EDGE"
	TierPersistent = "L3_PERSISTENT"
	TierOrigin     = "ORIGIN"
)

// ErrorMode selects how upstream fetch errors surface to the client.
type ErrorMode string

const (
	// ErrorModeRelay returns fetcher errors verbatim with their HTTP status.
	ErrorModeRelay ErrorMode = "relay"
	// ErrorModeCacheMiss rewrites upstream 403/404/502 to 404
	// IMAGE_NOT_CACHED; used by the stable-path route, which cannot know the
	// signed upstream URL.
	ErrorModeCacheMiss ErrorMode = "cache-miss"
)

// ProxyRequest describes one image request after REST-layer parsing.
type ProxyRequest struct {
	// CacheBaseURL is the cache identity (query string already stripped).
	CacheBaseURL string
	// UpstreamURL is the URL fetched on a full miss (may carry a signature).
	UpstreamURL string
	// Options are the transform directives from the query parameters.
	Options domain.TransformOptions
	// AcceptHeader drives content negotiation when no format is requested.
	AcceptHeader string
	// WorkspaceID and BlockID annotate persisted metadata when known.
	WorkspaceID string
	BlockID     string
	// ErrorMode selects upstream error handling for this route.
	ErrorMode ErrorMode
}

// ProxyResponse is a successful image response.
type ProxyResponse struct {
	Data          []byte
	ContentType   string
	Cache         string // HIT or MISS
	Tier          string // L2_EDGE, L3_PERSISTENT, ORIGIN
	OriginalSize  int64  // set only on ORIGIN responses
	OptimizedSize int
}

// ProxyImageUsecase coordinates the cache tiers. One instance (and thus one
// single-flight group) serves all routes.
type ProxyImageUsecase struct {
	edge      edge_cache_port.EdgeCachePort
	store     storage_port.StoragePort
	fetcher   image_fetch_port.ImageFetchPort
	processor image_processing_port.ImageProcessingPort
	collector *metrics.Collector
	log       *slog.Logger

	flights singleflight.Group
	edgeTTL time.Duration
}

// NewProxyImageUsecase wires the pipeline.
func NewProxyImageUsecase(
	edge edge_cache_port.EdgeCachePort,
	store storage_port.StoragePort,
	fetcher image_fetch_port.ImageFetchPort,
	processor image_processing_port.ImageProcessingPort,
	collector *metrics.Collector,
	edgeTTL time.Duration,
	log *slog.Logger,
) *ProxyImageUsecase {
	return &ProxyImageUsecase{
		edge:      edge,
		store:     store,
		fetcher:   fetcher,
		processor: processor,
		collector: collector,
		edgeTTL:   edgeTTL,
		log:       log,
	}
}

// Execute runs the ordered tier probe for one request.
func (u *ProxyImageUsecase) Execute(ctx context.Context, req ProxyRequest) (*ProxyResponse, error) {
	u.collector.RecordRequest()

	opts := negotiateFormat(req.Options, req.AcceptHeader).Normalize()
	key := domain.CacheKey(req.CacheBaseURL, opts)

	if entry, ok := u.edge.Get(ctx, key); ok {
		u.collector.RecordEdgeHit()
		return &ProxyResponse{
			Data:          entry.Data,
			ContentType:   entry.ContentType,
			Cache:         "HIT",
			Tier:          TierEdge,
			OptimizedSize: len(entry.Data),
		}, nil
	}

	stored, err := u.store.Get(ctx, key)
	switch {
	case err == nil:
		u.collector.RecordStoreHit()
		u.backfillEdge(ctx, key, stored)
		return &ProxyResponse{
			Data:          stored.Data,
			ContentType:   stored.Metadata.ContentType,
			Cache:         "HIT",
			Tier:          TierPersistent,
			OptimizedSize: len(stored.Data),
		}, nil
	case errors.Is(err, storage_port.ErrNotFound):
		// fall through to origin
	default:
		// Persistent-store read failures other than not-found are surfaced.
		return nil, apperrors.Wrap(http.StatusInternalServerError, apperrors.CodeInternalError,
			"persistent store read failed", err)
	}

	resp, err := u.fetchOnce(ctx, key, req, opts)
	if err != nil {
		return nil, u.mapUpstreamError(err, req.ErrorMode)
	}
	return resp, nil
}

// fetchOnce coalesces concurrent misses on the same key: the first caller
// fetches and optimizes, every concurrent caller shares the outcome — errors
// included.
func (u *ProxyImageUsecase) fetchOnce(ctx context.Context, key string, req ProxyRequest, opts domain.TransformOptions) (*ProxyResponse, error) {
	// The leader must survive its own client disconnecting: followers may
	// still be waiting on the flight, and abandoning the fetch would only
	// multiply upstream load on retry. The fetcher applies its own deadline.
	leaderCtx := context.WithoutCancel(ctx)

	// The flight function runs only on the leader's goroutine, so this flag
	// tells the leader apart from the followers sharing its result.
	leader := false
	result, err, _ := u.flights.Do(key, func() (interface{}, error) {
		leader = true
		return u.fetchAndStore(leaderCtx, key, req, opts)
	})
	if err != nil {
		return nil, err
	}

	resp := result.(*ProxyResponse)
	if !leader {
		// Followers reuse the leader's committed outcome; to them this is an
		// in-memory hit.
		return &ProxyResponse{
			Data:          resp.Data,
			ContentType:   resp.ContentType,
			Cache:         "HIT",
			Tier:          TierEdge,
			OptimizedSize: resp.OptimizedSize,
		}, nil
	}
	return resp, nil
}

// fetchAndStore is the leader's work: fetch, optimize, then detach the cache
// writes from the response path.
func (u *ProxyImageUsecase) fetchAndStore(ctx context.Context, key string, req ProxyRequest, opts domain.TransformOptions) (*ProxyResponse, error) {
	u.collector.RecordOriginFetch()

	fetched, err := u.fetcher.Fetch(ctx, req.UpstreamURL)
	if err != nil {
		u.collector.RecordUpstreamError()
		return nil, err
	}

	data := fetched.Data
	contentType := fetched.ContentType
	width, height := 0, 0

	processed, perr := u.processor.Process(ctx, fetched.Data, opts)
	if perr != nil {
		// Optimizer failures never fail the request: serve the original
		// bytes and leave a trace for the logs.
		u.log.Error("image optimization failed, serving original bytes",
			"url", req.CacheBaseURL, "error", perr)
	} else {
		data = processed.Data
		contentType = processed.ContentType
		width, height = processed.Width, processed.Height
	}

	now := time.Now().UTC()
	meta := domain.CacheMetadata{
		OriginalURL:    req.CacheBaseURL,
		ContentType:    contentType,
		OriginalSize:   fetched.OriginalSize,
		CachedSize:     int64(len(data)),
		Width:          width,
		Height:         height,
		WorkspaceID:    req.WorkspaceID,
		BlockID:        req.BlockID,
		CachedAt:       now,
		LastAccessedAt: now,
		AccessCount:    0,
	}

	u.writeBack(ctx, key, data, contentType, meta)

	return &ProxyResponse{
		Data:          data,
		ContentType:   contentType,
		Cache:         "MISS",
		Tier:          TierOrigin,
		OriginalSize:  fetched.OriginalSize,
		OptimizedSize: len(data),
	}, nil
}

// writeBack issues fire-and-forget writes to both cache tiers. Write errors
// are logged but never delay or fail the response.
func (u *ProxyImageUsecase) writeBack(ctx context.Context, key string, data []byte, contentType string, meta domain.CacheMetadata) {
	detached := context.WithoutCancel(ctx)

	go func() {
		if err := u.store.Put(detached, key, data, meta); err != nil {
			u.log.Error("persistent store write failed",
				"key", key, "error", err, "tag", "infrastructure_degraded")
		}
	}()

	go func() {
		u.edge.Set(detached, key, &domain.EdgeCacheEntry{
			Data:        data,
			ContentType: contentType,
			CachedAt:    meta.CachedAt,
		}, u.edgeTTL)
	}()
}

// backfillEdge repopulates L2 after an L3 hit, off the response path.
func (u *ProxyImageUsecase) backfillEdge(ctx context.Context, key string, entry *domain.CachedEntry) {
	detached := context.WithoutCancel(ctx)
	go func() {
		u.edge.Set(detached, key, &domain.EdgeCacheEntry{
			Data:        entry.Data,
			ContentType: entry.Metadata.ContentType,
			CachedAt:    entry.Metadata.CachedAt,
		}, u.edgeTTL)
	}()
}

// mapUpstreamError applies the route's error mode to a fetch failure.
func (u *ProxyImageUsecase) mapUpstreamError(err error, mode ErrorMode) error {
	if mode != ErrorModeCacheMiss {
		return err
	}

	var perr *apperrors.ProxyError
	if !errors.As(err, &perr) {
		return err
	}
	switch perr.Status {
	case http.StatusForbidden, http.StatusNotFound, http.StatusBadGateway:
		return apperrors.Wrap(http.StatusNotFound, apperrors.CodeImageNotCached,
			"image is not cached; prime the cache via the explicit-url proxy route first", perr)
	}
	return err
}

// negotiateFormat chooses an output format from the Accept header when the
// client did not request one explicitly. An explicit format always wins,
// including an explicit fmt=original.
func negotiateFormat(opts domain.TransformOptions, accept string) domain.TransformOptions {
	if opts.Format != "" {
		return opts
	}
	switch {
	case strings.Contains(accept, "image/avif"):
		opts.Format = domain.FormatAVIF
	case strings.Contains(accept, "image/webp"):
		opts.Format = domain.FormatWebP
	}
	return opts
}
