package rest

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"imgcdn/config"
	"imgcdn/di"
	middleware_custom "imgcdn/middleware"
	"imgcdn/utils/logger"
)

// RegisterRoutes wires the middleware chain and the route table.
func RegisterRoutes(e *echo.Echo, container *di.ApplicationComponents, cfg *config.Config) {
	// 1. Request ID first so every later stage can correlate.
	e.Use(middleware_custom.RequestIDMiddleware())

	// 2. Recovery early to catch panics from everything below.
	e.Use(middleware.Recover())

	// 3. Security headers.
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
	}))

	// 4. CORS: image responses are embedded cross-origin by design.
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOriginList(),
		AllowMethods: []string{echo.GET, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept,
			middleware_custom.HeaderRequestID, middleware_custom.HeaderAPIKey},
		MaxAge: 86400,
	}))

	// 5. Per-IP admission control.
	e.Use(middleware_custom.RateLimitMiddleware(container.RateLimiter))

	// 6. Request logging.
	e.Use(middleware_custom.LoggingMiddleware(logger.Logger))

	e.GET("/health", handleHealth(container))

	api := e.Group("/api/v1",
		middleware_custom.APIKeyMiddleware(cfg.APIKeys.Enabled, cfg.APIKeyList()))
	api.GET("/proxy", handleProxy(container))
	api.DELETE("/cache", handlePurge(container))
	api.GET("/stats", handleStats(container))

	// Stable-path route: referenced from <img src>, so it stays key-free.
	e.GET("/img/:workspaceId/:blockId/:filename", handleStablePath(container))
}
