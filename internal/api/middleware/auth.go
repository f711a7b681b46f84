package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/errtrack/internal/api/response"
	"golang.org/x/crypto/bcrypt"
)

const minKeyLen = 16

// Auth validates bearer keys against a single configured bcrypt hash.
type Auth struct {
	hash []byte
}

// NewAuth creates a new Auth middleware for the given bcrypt hash.
func NewAuth(keyHash string) *Auth {
	return &Auth{hash: []byte(keyHash)}
}

// Authenticate validates the Bearer token and sets a client identifier in
// the request context for rate limiting.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := extractBearerToken(r)
		if rawKey == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		if len(rawKey) < minKeyLen {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid API key format", nil)
			return
		}

		if bcrypt.CompareHashAndPassword(a.hash, []byte(rawKey)) != nil {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid API key", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClientID(r.Context(), clientID(rawKey))))
	})
}

// clientID derives a stable, non-reversible identifier for a key.
func clientID(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:8])
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
