package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "imgcdn/utils/errors"
)

// HeaderAPIKey carries the client credential when API keys are enabled.
const HeaderAPIKey = "X-Api-Key"

// APIKeyMiddleware gates requests on a static key set. With enabled=false it
// is a pass-through.
func APIKeyMiddleware(enabled bool, keys []string) echo.MiddlewareFunc {
	keySet := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		keySet[key] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !enabled {
				return next(c)
			}

			provided := c.Request().Header.Get(HeaderAPIKey)
			if !keyMatches(keySet, provided) {
				perr := apperrors.New(http.StatusUnauthorized,
					apperrors.CodeInvalidParams, "missing or invalid api key")
				requestID := c.Response().Header().Get(HeaderRequestID)
				return c.JSON(perr.Status, perr.ToHTTPResponse(requestID))
			}
			return next(c)
		}
	}
}

func keyMatches(keySet map[string]struct{}, provided string) bool {
	if provided == "" {
		return false
	}
	// Constant-time comparison against each configured key.
	for key := range keySet {
		if len(key) == len(provided) &&
			subtle.ConstantTimeCompare([]byte(key), []byte(provided)) == 1 {
			return true
		}
	}
	return false
}
