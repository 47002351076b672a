package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"imgcdn/utils/logger"
)

// LoggingMiddleware logs request start and completion with request-scoped
// attributes. Health checks are skipped to reduce noise.
func LoggingMiddleware(baseLogger *slog.Logger) echo.MiddlewareFunc {
	contextLogger := logger.NewContextLogger(baseLogger)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.URL.Path == "/health" {
				return next(c)
			}

			start := time.Now()
			ctx := req.Context()

			contextLogger.WithContext(ctx).Info("request started",
				"method", req.Method,
				"path", req.URL.Path,
				"remote_addr", c.RealIP(),
			)

			err := next(c)

			res := c.Response()
			logAttrs := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"response_size", res.Size,
			}
			switch {
			case res.Status >= 500:
				contextLogger.WithContext(ctx).Error("request completed", logAttrs...)
			case res.Status >= 400:
				contextLogger.WithContext(ctx).Warn("request completed", logAttrs...)
			default:
				contextLogger.WithContext(ctx).Info("request completed", logAttrs...)
			}

			if err != nil {
				contextLogger.WithContext(ctx).Error("request error",
					"method", req.Method,
					"path", req.URL.Path,
					"error", err,
				)
			}

			return err
		}
	}
}
