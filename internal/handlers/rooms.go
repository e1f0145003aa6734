package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/chatwire/chatwire/internal/api/middleware"
	"github.com/chatwire/chatwire/internal/models"
)

// Room name validation: alphanumeric, spaces, hyphens, underscores, 1-50 chars
var roomNameRegex = regexp.MustCompile(`^[a-zA-Z0-9 _-]{1,50}$`)

// CreateRoomRequest represents the room creation request.
type CreateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ListRooms returns all rooms ordered by name.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.store.ListRooms(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch rooms")
		return
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	h.JSON(w, http.StatusOK, rooms)
}

// CreateRoom creates a new room and makes the creator a member.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if !roomNameRegex.MatchString(req.Name) {
		h.Error(w, http.StatusBadRequest, "name must be 1-50 characters, alphanumeric with spaces, hyphens, and underscores only")
		return
	}

	room, err := h.store.CreateRoom(r.Context(), req.Name, req.Description)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "room already exists")
		return
	}

	if err := h.store.UpsertRoomMembership(r.Context(), identity.ID, room.ID); err != nil {
		h.logger.Warn().Err(err).
			Int64("user_id", identity.ID).
			Int64("room_id", room.ID).
			Msg("creator membership upsert failed")
	}

	h.JSON(w, http.StatusCreated, room)
}

// RoomOnlineUsers returns the distinct online users currently subscribed
// to a room, computed from the live membership table, with a best-effort
// cached copy in Redis for reconnect bursts.
func (h *Handler) RoomOnlineUsers(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(chi.URLParam(r, "roomID"), 10, 64)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid room ID")
		return
	}

	seen := make(map[int64]bool)
	users := []models.Identity{}
	for _, c := range h.gateway.Membership().MembersOf(roomID) {
		if seen[c.User.ID] {
			continue
		}
		seen[c.User.ID] = true
		users = append(users, c.User)
	}

	// An empty live table right after a restart does not mean an empty
	// room; fall back to the last cached snapshot until members rejoin.
	if len(users) == 0 && h.redis != nil {
		cached, err := h.redis.GetRoomOnlineUsers(r.Context(), roomID)
		if err != nil {
			h.logger.Debug().Err(err).Int64("room_id", roomID).Msg("online snapshot cache read failed")
		} else if cached != nil {
			h.JSON(w, http.StatusOK, cached)
			return
		}
	}

	if h.redis != nil {
		if err := h.redis.SetRoomOnlineUsers(r.Context(), roomID, users); err != nil {
			h.logger.Debug().Err(err).Int64("room_id", roomID).Msg("online snapshot cache write failed")
		}
	}

	h.JSON(w, http.StatusOK, users)
}
