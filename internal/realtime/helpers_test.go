package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatwire/chatwire/internal/models"
	"github.com/chatwire/chatwire/internal/store"
)

// fakeStore is an in-memory ChatStore for exercising the realtime core
// without a database.
type fakeStore struct {
	mu            sync.Mutex
	nextMessageID int64
	messages      map[int64]*models.Message
	userRooms     map[int64][]int64
	online        map[int64]bool
	upserts       int

	insertErr error
	listErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages:  make(map[int64]*models.Message),
		userRooms: make(map[int64][]int64),
		online:    make(map[int64]bool),
	}
}

func (f *fakeStore) Close()                         {}
func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	return nil, nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return nil, nil
}

func (f *fakeStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return nil, nil
}

func (f *fakeStore) SetUserOnline(ctx context.Context, userID int64, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[userID] = online
	return nil
}

func (f *fakeStore) ListOnlineUsers(ctx context.Context) ([]models.User, error) {
	return nil, nil
}

func (f *fakeStore) CreateRoom(ctx context.Context, name, description string) (*models.Room, error) {
	return nil, nil
}

func (f *fakeStore) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	return nil, nil
}

func (f *fakeStore) GetRoomByName(ctx context.Context, name string) (*models.Room, error) {
	return nil, nil
}

func (f *fakeStore) ListRooms(ctx context.Context) ([]models.Room, error) {
	return nil, nil
}

func (f *fakeStore) UpsertRoomMembership(ctx context.Context, userID, roomID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	return nil
}

func (f *fakeStore) ListRoomsForUser(ctx context.Context, userID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.userRooms[userID], nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, roomID, userID int64, content, msgType string, file *models.FileMeta) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.nextMessageID++
	msg := &models.Message{
		ID:        f.nextMessageID,
		RoomID:    roomID,
		UserID:    userID,
		Username:  fmt.Sprintf("user%d", userID),
		Content:   content,
		Type:      msgType,
		File:      file,
		CreatedAt: time.Now(),
	}
	f.messages[msg.ID] = msg
	return msg, nil
}

func (f *fakeStore) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[id], nil
}

func (f *fakeStore) SoftDeleteMessage(ctx context.Context, messageID, requesterID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[messageID]
	if !ok || msg.UserID != requesterID || msg.IsDeleted {
		return 0, nil
	}
	msg.IsDeleted = true
	return 1, nil
}

func (f *fakeStore) ListMessages(ctx context.Context, roomID int64, limit int) ([]models.Message, error) {
	return nil, nil
}

func (f *fakeStore) SearchMessages(ctx context.Context, query string, roomID int64, limit int) ([]models.Message, error) {
	return nil, nil
}

// fakeVerifier resolves any token of the form "user:<name>" so handshake
// paths can run without JWTs.
type fakeVerifier struct {
	identities map[string]*models.Identity
}

func (v *fakeVerifier) Verify(token string) (*models.Identity, error) {
	id, ok := v.identities[token]
	if !ok {
		return nil, ErrUnauthenticated
	}
	return id, nil
}

func newTestGateway(st store.ChatStore) *Gateway {
	return NewGateway(&fakeVerifier{}, st, zerolog.Nop(), time.Second)
}

// activeConn returns a registered-shape connection already in the Active
// state, bypassing the socket transport.
func activeConn(userID int64, username string) *Conn {
	c := NewConn(models.Identity{ID: userID, Username: username})
	c.transition(StateActive)
	return c
}

// drainEvents empties a connection's outbound queue without blocking.
func drainEvents(c *Conn) []Event {
	var evs []Event
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				return evs
			}
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

// eventsOfType filters a drained slice down to one event type.
func eventsOfType(evs []Event, typ string) []Event {
	var out []Event
	for _, ev := range evs {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
