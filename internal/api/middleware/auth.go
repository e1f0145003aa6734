package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/chatwire/chatwire/internal/auth"
	"github.com/chatwire/chatwire/internal/models"
)

type contextKey string

const identityContextKey contextKey = "identity"

// AuthMiddleware verifies bearer tokens on authenticated endpoints.
type AuthMiddleware struct {
	verifier auth.Verifier
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(verifier auth.Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth rejects requests without a valid Authorization bearer token
// and attaches the verified identity to the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			jsonError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		identity, err := m.verifier.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// IdentityFromContext retrieves the authenticated identity from the
// request context, or nil when the request was not authenticated.
func IdentityFromContext(ctx context.Context) *models.Identity {
	identity, ok := ctx.Value(identityContextKey).(*models.Identity)
	if !ok {
		return nil
	}
	return identity
}
