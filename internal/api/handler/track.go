package handler

import (
	"encoding/json"
	"net/http"

	"github.com/kiranshivaraju/errtrack/internal/api/response"
	"github.com/kiranshivaraju/errtrack/internal/metrics"
)

type trackRequest struct {
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Message    string         `json:"message"`
	Context    map[string]any `json:"context"`
}

// NewTrackHandler returns an http.HandlerFunc for POST /api/v1/track. It
// lets services without the Go logger report sync failures. Unlike the
// logging path, errors are returned to the caller. m may be nil.
func NewTrackHandler(classifiers ClassifierSource, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req trackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			invalid(w, "Invalid JSON body")
			return
		}
		if req.EntityType == "" {
			invalid(w, "entity_type is required")
			return
		}

		c, err := classifiers.Create(req.EntityType)
		if err != nil {
			writeError(w, r, err)
			return
		}

		result, err := c.Track(r.Context(), req.EntityID, req.Message, req.Context)
		if err != nil {
			writeError(w, r, err)
			return
		}
		m.RecordTracked(c.EntityType(), result.IsNew)

		if result.IsNew {
			response.Created(w, result)
			return
		}
		response.JSON(w, result)
	}
}
