package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"imgcdn/middleware"
	"imgcdn/usecase/proxy_image_usecase"
	apperrors "imgcdn/utils/errors"
	"imgcdn/utils/logger"
)

// handleError converts any error into the JSON error envelope. Unknown errors
// become INTERNAL_ERROR; 5xx messages are scrubbed before transmission.
func handleError(c echo.Context, err error, operation string) error {
	var perr *apperrors.ProxyError
	if !errors.As(err, &perr) {
		perr = apperrors.Internal(err)
	}

	logger.FromContext(c.Request().Context()).Error("request failed",
		"operation", operation,
		"code", perr.Code,
		"status", perr.Status,
		"error", perr.Error(),
		"path", c.Request().URL.Path,
	)

	requestID := c.Response().Header().Get(middleware.HeaderRequestID)
	sanitized := perr.Sanitized()
	return c.JSON(sanitized.Status, sanitized.ToHTTPResponse(requestID))
}

// writeImageResponse sets the cache headers and streams the bytes.
func writeImageResponse(c echo.Context, resp *proxy_image_usecase.ProxyResponse, cacheTTLSeconds int) error {
	h := c.Response().Header()
	h.Set("Cache-Control", fmt.Sprintf(
		"public, max-age=3600, s-maxage=%d, stale-while-revalidate=3600", cacheTTLSeconds))
	h.Set("X-Cache", resp.Cache)
	h.Set("X-Cache-Tier", resp.Tier)
	h.Set("X-Optimized-Size", strconv.Itoa(resp.OptimizedSize))
	if resp.Tier == proxy_image_usecase.TierOrigin {
		h.Set("X-Original-Size", strconv.FormatInt(resp.OriginalSize, 10))
	}

	return c.Blob(http.StatusOK, resp.ContentType, resp.Data)
}
