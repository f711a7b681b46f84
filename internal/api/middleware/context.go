package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const clientIDKey contextKey = "client_id"

// WithClientID stores the authenticated client identifier.
func WithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey, id)
}

// ClientID returns the identifier set by Authenticate.
func ClientID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(clientIDKey).(string)
	return id, ok && id != ""
}
