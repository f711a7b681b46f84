package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/kiranshivaraju/errtrack/internal/api/response"
)

// Pinger checks connectivity of a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health. The
// cache is optional; a nil cache is reported as disabled. Only a store
// failure makes the service unhealthy.
func NewHealthHandler(db Pinger, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		body := map[string]string{"status": "ok", "store": "ok", "cache": "disabled"}
		status := http.StatusOK

		if err := db.Ping(ctx); err != nil {
			body["status"] = "unavailable"
			body["store"] = "error"
			status = http.StatusServiceUnavailable
		}
		if cache != nil {
			body["cache"] = "ok"
			if err := cache.Ping(ctx); err != nil {
				body["cache"] = "error"
				if status == http.StatusOK {
					body["status"] = "degraded"
				}
			}
		}

		response.Status(w, status, body)
	}
}
