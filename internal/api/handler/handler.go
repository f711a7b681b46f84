package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/errtrack/internal/api/response"
	"github.com/kiranshivaraju/errtrack/internal/classifier"
	"github.com/kiranshivaraju/errtrack/internal/report"
	"github.com/kiranshivaraju/errtrack/internal/store"
	"github.com/kiranshivaraju/errtrack/pkg/models"
)

// Reporter defines the read and lifecycle operations handlers depend on.
// *report.Service satisfies it.
type Reporter interface {
	ListErrors(ctx context.Context, filter store.ErrorFilter) ([]*models.ErrorRecord, error)
	GetError(ctx context.Context, id uuid.UUID) (*models.ErrorRecord, error)
	Stats(ctx context.Context, filter store.ErrorFilter) (*models.ErrorStats, error)
	Summary(ctx context.Context, top int) (*report.Summary, error)
	ResolveError(ctx context.Context, id uuid.UUID, notes string) error
	IgnoreError(ctx context.Context, id uuid.UUID, notes string) error
	Cleanup(ctx context.Context, daysToKeep int) (int64, error)
}

// ClassifierSource resolves entity types. *classifier.Factory satisfies it.
type ClassifierSource interface {
	Create(entityType string) (classifier.Classifier, error)
}

// writeError maps domain errors onto the API error envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *store.ValidationError
	switch {
	case errors.Is(err, classifier.ErrUnsupportedEntityType):
		response.Error(w, http.StatusBadRequest, "UNSUPPORTED_ENTITY_TYPE", err.Error(), nil)
	case errors.As(err, &ve):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(),
			map[string]string{"field": ve.Field})
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Error record not found", nil)
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
	default:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}

func invalid(w http.ResponseWriter, message string) {
	response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", message, nil)
}

// errorIDParam parses the {errorID} path parameter.
func errorIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "errorID"))
	if err != nil {
		invalid(w, "errorID must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// parseFilter reads the list/stats query parameters.
func parseFilter(r *http.Request) (store.ErrorFilter, error) {
	q := r.URL.Query()
	f := store.ErrorFilter{
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Status:     models.Status(q.Get("status")),
		Category:   models.Category(q.Get("category")),
	}

	var err error
	if f.OccurredAfter, err = parseTime(q.Get("after"), "after"); err != nil {
		return f, err
	}
	if f.OccurredBefore, err = parseTime(q.Get("before"), "before"); err != nil {
		return f, err
	}
	if f.MinOccurrences, err = parseNonNegative(q.Get("min_occurrences"), "min_occurrences"); err != nil {
		return f, err
	}
	if f.Limit, err = parseNonNegative(q.Get("limit"), "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = parseNonNegative(q.Get("offset"), "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func parseTime(v, field string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, &store.ValidationError{Field: field, Reason: "must be a valid RFC3339 timestamp"}
	}
	return t, nil
}

func parseNonNegative(v, field string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, &store.ValidationError{Field: field, Reason: "must be a non-negative integer"}
	}
	return n, nil
}
