package middleware

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"imgcdn/utils/logger"
)

// HeaderRequestID is the correlation header honoured on requests and always
// set on responses.
const HeaderRequestID = "X-Request-Id"

// maxRequestIDLength caps client-supplied correlation IDs.
const maxRequestIDLength = 128

// RequestIDMiddleware assigns each request a correlation ID. A client-supplied
// X-Request-Id is kept when it fits; otherwise one is generated.
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Request().Header.Get(HeaderRequestID)
			if requestID == "" || len(requestID) > maxRequestIDLength {
				requestID = uuid.New().String()
			}

			c.Response().Header().Set(HeaderRequestID, requestID)

			ctx := context.WithValue(c.Request().Context(), logger.RequestIDKey, requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
