package handler

import (
	"net/http"
	"strconv"

	"github.com/kiranshivaraju/errtrack/internal/api/response"
)

// NewStatsHandler returns an http.HandlerFunc for GET /api/v1/stats. It
// accepts the same filters as the list endpoint; paging is ignored.
func NewStatsHandler(svc Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		stats, err := svc.Stats(r.Context(), filter)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, stats)
	}
}

// NewSummaryHandler returns an http.HandlerFunc for GET /api/v1/summary.
func NewSummaryHandler(svc Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		top := 0
		if v := r.URL.Query().Get("top"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				invalid(w, "top must be a positive integer")
				return
			}
			top = n
		}

		summary, err := svc.Summary(r.Context(), top)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, summary)
	}
}
