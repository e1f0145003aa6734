package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/chatwire/chatwire/internal/api/middleware"
	"github.com/chatwire/chatwire/internal/auth"
	"github.com/chatwire/chatwire/internal/models"
	"github.com/chatwire/chatwire/internal/store"
)

// RegisterRequest represents the registration request.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login request.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents a successful login.
type LoginResponse struct {
	Token string     `json:"token"`
	User  PublicUser `json:"user"`
}

// PublicUser is the user shape exposed over the API.
type PublicUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	IsOnline  bool   `json:"is_online"`
}

func publicUser(u *models.User) PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		IsOnline:  u.IsOnline,
	}
}

// Register handles new user registration.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Username = sanitizeUsername(req.Username)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		h.Error(w, http.StatusBadRequest, "username, email, and password are required")
		return
	}
	if len(req.Password) < 6 {
		h.Error(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}
	if !isValidEmail(req.Email) {
		h.Error(w, http.StatusBadRequest, "invalid email address")
		return
	}

	if existing, err := h.store.GetUserByUsername(r.Context(), req.Username); err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	} else if existing != nil {
		h.Error(w, http.StatusBadRequest, "username already exists")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := h.store.CreateUser(r.Context(), req.Username, req.Email, hash)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "username or email already exists")
		return
	}

	// New users start in the seeded default room. Looked up by name: the
	// seed does not guarantee ids on a pre-existing database.
	if room, err := h.store.GetRoomByName(r.Context(), store.DefaultRoomName); err != nil || room == nil {
		h.logger.Warn().Err(err).Str("room", store.DefaultRoomName).Msg("default room lookup failed")
	} else if err := h.store.UpsertRoomMembership(r.Context(), user.ID, room.ID); err != nil {
		h.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("default room membership failed")
	}

	h.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Registration successful. You can now login.",
	})
}

// Login verifies credentials and issues a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		h.Error(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		h.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.JSON(w, http.StatusOK, LoginResponse{Token: token, User: publicUser(user)})
}

// OnlineUser is the presence shape exposed by the online-users endpoint.
// No email: every authenticated user can list who is online.
type OnlineUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// OnlineUsers returns every user currently online, across all rooms.
func (h *Handler) OnlineUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListOnlineUsers(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	out := make([]OnlineUser, len(users))
	for i, u := range users {
		out[i] = OnlineUser{ID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL}
	}
	h.JSON(w, http.StatusOK, out)
}

// Logout acknowledges a logout. Tokens are stateless; real presence
// transitions happen when the websocket disconnects.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), identity.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if user == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	h.JSON(w, http.StatusOK, publicUser(user))
}
