package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/errtrack/internal/api/response"
	"github.com/kiranshivaraju/errtrack/internal/metrics"
)

// NewCleanupHandler returns an http.HandlerFunc for POST /api/v1/admin/cleanup.
// An empty body uses defaultDays. m may be nil.
func NewCleanupHandler(svc Reporter, defaultDays int, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DaysToKeep *int `json:"days_to_keep"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			invalid(w, "Invalid JSON body")
			return
		}

		days := defaultDays
		if req.DaysToKeep != nil {
			days = *req.DaysToKeep
		}

		deleted, err := svc.Cleanup(r.Context(), days)
		m.RecordCleanup(deleted, err)
		if err != nil {
			writeError(w, r, err)
			return
		}

		slog.InfoContext(r.Context(), "cleanup completed", "days_to_keep", days, "deleted", deleted)
		response.JSON(w, map[string]any{
			"days_to_keep": days,
			"deleted":      deleted,
		})
	}
}
