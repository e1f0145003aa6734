package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/chatwire/chatwire/internal/api/middleware"
	"github.com/chatwire/chatwire/internal/models"
)

const (
	defaultHistoryLimit = 200
	searchLimit         = 100
)

// MessageView is a message as returned over the API, with the is_own
// flag resolved for the requesting user.
type MessageView struct {
	models.Message
	IsOwn bool `json:"is_own"`
}

// ListMessages returns a room's recent non-deleted messages in
// chronological order. Reconnecting clients call this to resync.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	roomID, err := strconv.ParseInt(chi.URLParam(r, "roomID"), 10, 64)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid room ID")
		return
	}

	room, err := h.store.GetRoom(r.Context(), roomID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if room == nil {
		h.Error(w, http.StatusNotFound, "room not found")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= defaultHistoryLimit {
			limit = n
		}
	}

	messages, err := h.store.ListMessages(r.Context(), roomID, limit)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	h.JSON(w, http.StatusOK, withOwnership(messages, identity.ID))
}

// SearchMessages finds messages matching a content query, optionally
// scoped to one room.
func (h *Handler) SearchMessages(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if len(query) < 2 {
		h.Error(w, http.StatusBadRequest, "search query must be at least 2 characters")
		return
	}

	var roomID int64
	if raw := r.URL.Query().Get("room_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid room ID")
			return
		}
		roomID = id
	}

	messages, err := h.store.SearchMessages(r.Context(), query, roomID, searchLimit)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "search failed")
		return
	}

	h.JSON(w, http.StatusOK, withOwnership(messages, identity.ID))
}

// DeleteMessage soft-deletes a message over the REST API. Authorization
// is the conditional update itself; the realtime deletion event goes out
// through the fanout engine only when exactly one row was affected.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	messageID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid message ID")
		return
	}

	msg, err := h.store.GetMessage(r.Context(), messageID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if msg == nil {
		h.Error(w, http.StatusNotFound, "message not found")
		return
	}
	if msg.UserID != identity.ID {
		h.Error(w, http.StatusForbidden, "you can only delete your own messages")
		return
	}

	affected, err := h.store.SoftDeleteMessage(r.Context(), messageID, identity.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to delete message")
		return
	}
	if affected == 1 {
		h.gateway.Fanout().BroadcastDeleted(msg.RoomID, messageID)
	}

	h.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "Message deleted"})
}

func withOwnership(messages []models.Message, userID int64) []MessageView {
	views := make([]MessageView, len(messages))
	for i, msg := range messages {
		views[i] = MessageView{Message: msg, IsOwn: msg.UserID == userID}
	}
	return views
}
