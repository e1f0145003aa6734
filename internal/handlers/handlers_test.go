package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwire/chatwire/internal/auth"
	"github.com/chatwire/chatwire/internal/models"
	"github.com/chatwire/chatwire/internal/realtime"
)

// stubStore is a minimal in-memory ChatStore for handler tests.
type stubStore struct {
	nextUserID  int64
	usersByName map[string]*models.User
	usersByID   map[int64]*models.User
	onlineUsers []models.User
	defaultRoom *models.Room
	upserts     [][2]int64
}

func newStubStore() *stubStore {
	return &stubStore{
		usersByName: make(map[string]*models.User),
		usersByID:   make(map[int64]*models.User),
	}
}

func (s *stubStore) Close()                         {}
func (s *stubStore) Ping(ctx context.Context) error { return nil }

func (s *stubStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	s.nextUserID++
	user := &models.User{ID: s.nextUserID, Username: username, Email: email, PasswordHash: passwordHash}
	s.usersByName[username] = user
	s.usersByID[user.ID] = user
	return user, nil
}

func (s *stubStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.usersByID[id], nil
}

func (s *stubStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.usersByName[username], nil
}

func (s *stubStore) SetUserOnline(ctx context.Context, userID int64, online bool) error {
	return nil
}

func (s *stubStore) ListOnlineUsers(ctx context.Context) ([]models.User, error) {
	return s.onlineUsers, nil
}

func (s *stubStore) CreateRoom(ctx context.Context, name, description string) (*models.Room, error) {
	return &models.Room{ID: 1, Name: name, Description: description}, nil
}

func (s *stubStore) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	return nil, nil
}

func (s *stubStore) GetRoomByName(ctx context.Context, name string) (*models.Room, error) {
	if s.defaultRoom != nil && s.defaultRoom.Name == name {
		return s.defaultRoom, nil
	}
	return nil, nil
}

func (s *stubStore) ListRooms(ctx context.Context) ([]models.Room, error) { return nil, nil }

func (s *stubStore) UpsertRoomMembership(ctx context.Context, userID, roomID int64) error {
	s.upserts = append(s.upserts, [2]int64{userID, roomID})
	return nil
}

func (s *stubStore) ListRoomsForUser(ctx context.Context, userID int64) ([]int64, error) {
	return nil, nil
}

func (s *stubStore) InsertMessage(ctx context.Context, roomID, userID int64, content, msgType string, file *models.FileMeta) (*models.Message, error) {
	return nil, nil
}

func (s *stubStore) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	return nil, nil
}

func (s *stubStore) SoftDeleteMessage(ctx context.Context, messageID, requesterID int64) (int64, error) {
	return 0, nil
}

func (s *stubStore) ListMessages(ctx context.Context, roomID int64, limit int) ([]models.Message, error) {
	return nil, nil
}

func (s *stubStore) SearchMessages(ctx context.Context, query string, roomID int64, limit int) ([]models.Message, error) {
	return nil, nil
}

func newTestHandler(t *testing.T, st *stubStore) (*Handler, *realtime.Gateway) {
	t.Helper()
	tokens := auth.NewTokenService("test-secret")
	gateway := realtime.NewGateway(tokens, st, zerolog.Nop(), time.Second)
	return NewHandler(st, nil, tokens, gateway, zerolog.Nop(), t.TempDir(), 10<<20), gateway
}

func TestRegisterJoinsSeededRoomByName(t *testing.T) {
	st := newStubStore()
	st.defaultRoom = &models.Room{ID: 42, Name: "General"}
	h, _ := newTestHandler(t, st)

	body, _ := json.Marshal(RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "hunter22"})
	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, st.upserts, 1)
	assert.Equal(t, [2]int64{1, 42}, st.upserts[0],
		"membership uses the looked-up room id, never a hard-coded one")
}

func TestRegisterSurvivesMissingSeededRoom(t *testing.T) {
	st := newStubStore()
	h, _ := newTestHandler(t, st)

	body, _ := json.Marshal(RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "hunter22"})
	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, st.upserts)
}

func TestOnlineUsersEndpoint(t *testing.T) {
	st := newStubStore()
	st.onlineUsers = []models.User{
		{ID: 1, Username: "alice", Email: "alice@example.com", AvatarURL: "/uploads/a.png", IsOnline: true},
		{ID: 2, Username: "bob", Email: "bob@example.com", IsOnline: true},
	}
	h, _ := newTestHandler(t, st)

	rec := httptest.NewRecorder()
	h.OnlineUsers(rec, httptest.NewRequest(http.MethodGet, "/api/auth/online-users", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []OnlineUser
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, OnlineUser{ID: 1, Username: "alice", AvatarURL: "/uploads/a.png"}, got[0])
	assert.NotContains(t, rec.Body.String(), "example.com", "emails never leave this endpoint")
}

func TestRoomOnlineUsersCountsDistinctUsers(t *testing.T) {
	st := newStubStore()
	h, gateway := newTestHandler(t, st)

	ctx := context.Background()
	a1 := realtime.NewConn(models.Identity{ID: 1, Username: "alice"})
	a2 := realtime.NewConn(models.Identity{ID: 1, Username: "alice"})
	b := realtime.NewConn(models.Identity{ID: 2, Username: "bob"})
	for _, c := range []*realtime.Conn{a1, a2, b} {
		_, err := gateway.Register(ctx, c)
		require.NoError(t, err)
		gateway.JoinRoom(ctx, c, 5)
	}

	router := chi.NewRouter()
	router.Get("/api/chat/rooms/{roomID}/online", h.RoomOnlineUsers)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat/rooms/5/online", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.Identity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2, "two tabs of one user are one online member")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat/rooms/9/online", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
