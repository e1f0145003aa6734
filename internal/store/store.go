package store

import (
	"context"

	"github.com/chatwire/chatwire/internal/models"
)

// ChatStore defines the interface for durable storage of users, rooms,
// and messages. Both PostgresStore and SQLiteStore implement it.
// Single-row getters return (nil, nil) when the row does not exist.
type ChatStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	SetUserOnline(ctx context.Context, userID int64, online bool) error
	ListOnlineUsers(ctx context.Context) ([]models.User, error)

	// Room operations
	CreateRoom(ctx context.Context, name, description string) (*models.Room, error)
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	GetRoomByName(ctx context.Context, name string) (*models.Room, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	UpsertRoomMembership(ctx context.Context, userID, roomID int64) error
	ListRoomsForUser(ctx context.Context, userID int64) ([]int64, error)

	// Message operations
	InsertMessage(ctx context.Context, roomID, userID int64, content, msgType string, file *models.FileMeta) (*models.Message, error)
	GetMessage(ctx context.Context, id int64) (*models.Message, error)
	SoftDeleteMessage(ctx context.Context, messageID, requesterID int64) (int64, error)
	ListMessages(ctx context.Context, roomID int64, limit int) ([]models.Message, error)
	SearchMessages(ctx context.Context, query string, roomID int64, limit int) ([]models.Message, error)
}
