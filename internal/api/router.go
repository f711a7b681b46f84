package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/errtrack/internal/api/middleware"
	"github.com/kiranshivaraju/errtrack/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler  http.HandlerFunc
	MetricsHandler http.Handler

	ListErrors     http.HandlerFunc
	GetError       http.HandlerFunc
	ResolveError   http.HandlerFunc
	IgnoreError    http.HandlerFunc
	StatsHandler   http.HandlerFunc
	SummaryHandler http.HandlerFunc
	TrackHandler   http.HandlerFunc
	CleanupHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public endpoints
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/v1/errors", orNotImplemented(deps.ListErrors))
		r.Get("/api/v1/errors/{errorID}", orNotImplemented(deps.GetError))
		r.Post("/api/v1/errors/{errorID}/resolve", orNotImplemented(deps.ResolveError))
		r.Post("/api/v1/errors/{errorID}/ignore", orNotImplemented(deps.IgnoreError))
		r.Get("/api/v1/stats", orNotImplemented(deps.StatsHandler))
		r.Get("/api/v1/summary", orNotImplemented(deps.SummaryHandler))
		r.Post("/api/v1/track", orNotImplemented(deps.TrackHandler))
		r.Post("/api/v1/admin/cleanup", orNotImplemented(deps.CleanupHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
