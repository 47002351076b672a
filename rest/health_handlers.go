package rest

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"imgcdn/di"
)

type probeStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
}

type healthResponse struct {
	Status  string      `json:"status"`
	Storage probeStatus `json:"storage"`
	Cache   probeStatus `json:"cache"`
}

// handleHealth reports liveness plus storage and edge-cache sub-probes.
// Storage health decides the status code; a degraded edge cache is reported
// but stays 200 because the service keeps working without it.
func handleHealth(container *di.ApplicationComponents) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		storageHealthy := container.Storage.HealthCheck(ctx)
		cacheHealthy := container.EdgeCache.HealthCheck(ctx)

		resp := healthResponse{
			Status:  "healthy",
			Storage: probeStatus{Name: container.Storage.Name(), Healthy: storageHealthy},
			Cache:   probeStatus{Name: container.EdgeCache.Name(), Healthy: cacheHealthy},
		}

		status := http.StatusOK
		if !storageHealthy {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}

		return c.JSON(status, resp)
	}
}

type statsResponse struct {
	Storage string         `json:"storage"`
	Cache   string         `json:"cache"`
	Metrics map[string]any `json:"metrics"`
}

// handleStats serves the minimal operational snapshot.
func handleStats(container *di.ApplicationComponents) echo.HandlerFunc {
	return func(c echo.Context) error {
		snapshot := container.Metrics.GetSnapshot()
		return c.JSON(http.StatusOK, statsResponse{
			Storage: container.Storage.Name(),
			Cache:   container.EdgeCache.Name(),
			Metrics: map[string]any{
				"total_requests":  snapshot.TotalRequests,
				"edge_hits":       snapshot.EdgeHits,
				"store_hits":      snapshot.StoreHits,
				"origin_fetches":  snapshot.OriginFetches,
				"upstream_errors": snapshot.UpstreamErrors,
				"purged_prefixes": snapshot.PurgedPrefixes,
			},
		})
	}
}
