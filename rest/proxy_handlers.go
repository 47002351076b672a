package rest

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"imgcdn/di"
	"imgcdn/domain"
	"imgcdn/usecase/proxy_image_usecase"
	apperrors "imgcdn/utils/errors"
)

// handleProxy serves GET /api/v1/proxy?url=<encoded>: the explicit-URL route
// that primes the cache from a signed upstream URL.
func handleProxy(container *di.ApplicationComponents) echo.HandlerFunc {
	return func(c echo.Context) error {
		rawURL := c.QueryParam("url")

		if verr := container.URLValidator.Validate(rawURL); verr != nil {
			return handleError(c, verr, "proxy_image")
		}

		opts := parseTransformOptions(c)

		// Cache identity is the URL minus its volatile signature. A parsed
		// upstream shape additionally yields workspace/block provenance.
		cacheBase, err := domain.StripQuery(rawURL)
		if err != nil {
			return handleError(c, apperrors.Wrap(http.StatusBadRequest,
				apperrors.CodeInvalidURL, "url is not parseable", err), "proxy_image")
		}

		req := proxy_image_usecase.ProxyRequest{
			CacheBaseURL: cacheBase,
			UpstreamURL:  rawURL,
			Options:      opts,
			AcceptHeader: c.Request().Header.Get("Accept"),
			ErrorMode:    proxy_image_usecase.ErrorModeRelay,
		}
		if parsed, ok := domain.ParseUpstreamURL(rawURL); ok {
			req.CacheBaseURL = parsed.BaseURL
			req.WorkspaceID = parsed.WorkspaceID
			req.BlockID = parsed.BlockID
		}

		resp, err := container.ProxyImageUsecase.Execute(c.Request().Context(), req)
		if err != nil {
			return handleError(c, err, "proxy_image")
		}

		return writeImageResponse(c, resp, container.CacheTTLSeconds)
	}
}

// handleStablePath serves GET /img/:workspaceId/:blockId/:filename — the
// durable route that outlives upstream signatures. It can only be served from
// cache (or an upstream that accepts unsigned requests), so upstream failures
// surface as IMAGE_NOT_CACHED.
func handleStablePath(container *di.ApplicationComponents) echo.HandlerFunc {
	return func(c echo.Context) error {
		workspaceID := c.Param("workspaceId")
		blockID := c.Param("blockId")
		filename := c.Param("filename")

		if workspaceID == "" || blockID == "" || filename == "" {
			return handleError(c, apperrors.New(http.StatusBadRequest,
				apperrors.CodeMissingParams, "workspace, block, and filename are required"), "stable_path")
		}

		baseURL := domain.StablePathBaseURL(workspaceID, blockID, filename)
		if verr := container.URLValidator.Validate(baseURL); verr != nil {
			return handleError(c, verr, "stable_path")
		}

		req := proxy_image_usecase.ProxyRequest{
			CacheBaseURL: baseURL,
			UpstreamURL:  baseURL,
			Options:      parseTransformOptions(c),
			AcceptHeader: c.Request().Header.Get("Accept"),
			WorkspaceID:  workspaceID,
			BlockID:      blockID,
			ErrorMode:    proxy_image_usecase.ErrorModeCacheMiss,
		}

		resp, err := container.ProxyImageUsecase.Execute(c.Request().Context(), req)
		if err != nil {
			return handleError(c, err, "stable_path")
		}

		return writeImageResponse(c, resp, container.CacheTTLSeconds)
	}
}

// handlePurge serves DELETE /api/v1/cache?url=<encoded>: removes every
// variant of one image by prefix. Purge by page_id is declared but not
// implemented.
func handlePurge(container *di.ApplicationComponents) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.QueryParam("page_id") != "" {
			return handleError(c, apperrors.New(http.StatusNotImplemented,
				apperrors.CodeNotImplemented, "purge by page_id is not implemented"), "purge_cache")
		}

		rawURL := c.QueryParam("url")
		if verr := container.URLValidator.Validate(rawURL); verr != nil {
			return handleError(c, verr, "purge_cache")
		}

		cacheBase, err := domain.StripQuery(rawURL)
		if err != nil {
			return handleError(c, apperrors.Wrap(http.StatusBadRequest,
				apperrors.CodeInvalidURL, "url is not parseable", err), "purge_cache")
		}
		if parsed, ok := domain.ParseUpstreamURL(rawURL); ok {
			cacheBase = parsed.BaseURL
		}

		result, err := container.PurgeCacheUsecase.PurgeByBaseURL(c.Request().Context(), cacheBase)
		if err != nil {
			return handleError(c, err, "purge_cache")
		}

		return c.JSON(http.StatusOK, result)
	}
}
