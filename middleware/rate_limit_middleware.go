package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	apperrors "imgcdn/utils/errors"
)

// staleAfter is how long an idle client keeps its limiter before pruning.
const staleAfter = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-IP, per-minute admission gate.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	perMinute int
	lastPrune time.Time
}

// NewRateLimiter allows perMinute requests per client IP. Zero disables the
// limit.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		clients:   make(map[string]*clientLimiter),
		perMinute: perMinute,
		lastPrune: time.Now(),
	}
}

// Allow reports whether the client may proceed.
func (r *RateLimiter) Allow(ip string) bool {
	if r.perMinute <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if now.Sub(r.lastPrune) > staleAfter {
		r.prune(now)
	}

	client, ok := r.clients[ip]
	if !ok {
		client = &clientLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(r.perMinute)), r.perMinute),
		}
		r.clients[ip] = client
	}
	client.lastSeen = now

	return client.limiter.Allow()
}

func (r *RateLimiter) prune(now time.Time) {
	for ip, client := range r.clients {
		if now.Sub(client.lastSeen) > staleAfter {
			delete(r.clients, ip)
		}
	}
	r.lastPrune = now
}

// RateLimitMiddleware rejects clients over their per-minute budget with 429
// RATE_LIMIT_EXCEEDED.
func RateLimitMiddleware(limiter *RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().URL.Path == "/health" {
				return next(c)
			}
			if !limiter.Allow(c.RealIP()) {
				perr := apperrors.New(http.StatusTooManyRequests,
					apperrors.CodeRateLimitExceeded, "rate limit exceeded")
				requestID := c.Response().Header().Get(HeaderRequestID)
				return c.JSON(perr.Status, perr.ToHTTPResponse(requestID))
			}
			return next(c)
		}
	}
}
