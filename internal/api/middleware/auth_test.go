package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwire/chatwire/internal/auth"
	"github.com/chatwire/chatwire/internal/models"
)

type staticVerifier struct {
	identity *models.Identity
}

func (v *staticVerifier) Verify(token string) (*models.Identity, error) {
	if token != "valid" {
		return nil, auth.ErrUnauthenticated
	}
	return v.identity, nil
}

func TestRequireAuth(t *testing.T) {
	mw := NewAuthMiddleware(&staticVerifier{identity: &models.Identity{ID: 7, Username: "alice"}})

	var seen *models.Identity
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic dXNlcg==", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer valid", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, int64(7), seen.ID)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestIdentityFromContextWithoutAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, IdentityFromContext(req.Context()))
}
