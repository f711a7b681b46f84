package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/errtrack/internal/api/response"
)

// NewListErrorsHandler returns an http.HandlerFunc for GET /api/v1/errors.
func NewListErrorsHandler(svc Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		records, err := svc.ListErrors(r.Context(), filter)
		if err != nil {
			writeError(w, r, err)
			return
		}

		limit, offset := filter.Page()
		response.Collection(w, records, response.PaginationMeta{
			Limit:   limit,
			Offset:  offset,
			Count:   len(records),
			HasNext: len(records) == limit,
		})
	}
}

// NewGetErrorHandler returns an http.HandlerFunc for GET /api/v1/errors/{errorID}.
func NewGetErrorHandler(svc Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := errorIDParam(w, r)
		if !ok {
			return
		}
		record, err := svc.GetError(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, record)
	}
}

// NewResolveHandler returns an http.HandlerFunc for POST /api/v1/errors/{errorID}/resolve.
func NewResolveHandler(svc Reporter) http.HandlerFunc {
	return newLifecycleHandler(svc, svc.ResolveError)
}

// NewIgnoreHandler returns an http.HandlerFunc for POST /api/v1/errors/{errorID}/ignore.
func NewIgnoreHandler(svc Reporter) http.HandlerFunc {
	return newLifecycleHandler(svc, svc.IgnoreError)
}

type lifecycleFunc func(ctx context.Context, id uuid.UUID, notes string) error

func newLifecycleHandler(svc Reporter, apply lifecycleFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := errorIDParam(w, r)
		if !ok {
			return
		}

		var req struct {
			Notes string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			invalid(w, "Invalid JSON body")
			return
		}

		if err := apply(r.Context(), id, req.Notes); err != nil {
			writeError(w, r, err)
			return
		}

		record, err := svc.GetError(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, record)
	}
}
