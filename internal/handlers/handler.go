package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/chatwire/chatwire/internal/auth"
	"github.com/chatwire/chatwire/internal/realtime"
	"github.com/chatwire/chatwire/internal/store"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store   store.ChatStore
	redis   *store.RedisStore
	tokens  *auth.TokenService
	gateway *realtime.Gateway
	logger  zerolog.Logger

	uploadDir     string
	maxUploadSize int64
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(st store.ChatStore, redis *store.RedisStore, tokens *auth.TokenService, gateway *realtime.Gateway, logger zerolog.Logger, uploadDir string, maxUploadSize int64) *Handler {
	return &Handler{
		store:         st,
		redis:         redis,
		tokens:        tokens,
		gateway:       gateway,
		logger:        logger.With().Str("component", "http").Logger(),
		uploadDir:     uploadDir,
		maxUploadSize: maxUploadSize,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// sanitizeUsername trims, strips control characters, and caps length.
func sanitizeUsername(name string) string {
	name = strings.TrimSpace(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	if len(name) > 50 {
		name = name[:50]
	}

	return name
}

// isValidEmail validates email addresses using RFC 5322 pattern.
func isValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}
