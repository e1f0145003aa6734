package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chatwire/chatwire/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the development
// backend; PostgresStore is used in production.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chatwire.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chatwire.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		avatar_url TEXT,
		is_online INTEGER NOT NULL DEFAULT 0,
		last_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS rooms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		description TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS user_rooms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		room_id INTEGER NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, room_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id INTEGER NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		message_type TEXT NOT NULL DEFAULT 'text',
		file_url TEXT,
		file_name TEXT,
		file_size INTEGER,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages(room_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_user_rooms_user ON user_rooms(user_id);

	INSERT OR IGNORE INTO rooms (name, description) VALUES
		('General', 'General discussion room'),
		('Random', 'Random talk about anything'),
		('Help', 'Get help and support'),
		('Technology', 'Discuss latest tech trends'),
		('Gaming', 'For gamers to connect');
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash)
		VALUES (?, ?, ?)
	`, username, email, passwordHash)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, `WHERE username = ?`, username)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	user := &models.User{}
	var avatarURL sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, avatar_url, is_online, last_seen, created_at
		FROM users `+where,
		arg,
	).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&avatarURL,
		&user.IsOnline,
		&user.LastSeen,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.AvatarURL = avatarURL.String
	return user, nil
}

// ListOnlineUsers returns every user currently flagged online, ordered
// by username.
func (s *SQLiteStore) ListOnlineUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, email, password_hash, avatar_url, is_online, last_seen, created_at
		FROM users WHERE is_online = 1 ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		var avatarURL sql.NullString
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.PasswordHash,
			&avatarURL,
			&user.IsOnline,
			&user.LastSeen,
			&user.CreatedAt,
		); err != nil {
			return nil, err
		}
		user.AvatarURL = avatarURL.String
		users = append(users, user)
	}
	return users, rows.Err()
}

// SetUserOnline updates a user's online flag and last seen timestamp.
func (s *SQLiteStore) SetUserOnline(ctx context.Context, userID int64, online bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET is_online = ?, last_seen = CURRENT_TIMESTAMP WHERE id = ?
	`, online, userID)
	return err
}

// CreateRoom creates a new room.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name, description string) (*models.Room, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (name, description) VALUES (?, ?)
	`, name, description)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetRoom(ctx, id)
}

// GetRoom retrieves a room by ID.
func (s *SQLiteStore) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	room := &models.Room{}
	var description sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at FROM rooms WHERE id = ?
	`, id).Scan(&room.ID, &room.Name, &description, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	room.Description = description.String
	return room, nil
}

// GetRoomByName retrieves a room by its unique name.
func (s *SQLiteStore) GetRoomByName(ctx context.Context, name string) (*models.Room, error) {
	room := &models.Room{}
	var description sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at FROM rooms WHERE name = ?
	`, name).Scan(&room.ID, &room.Name, &description, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	room.Description = description.String
	return room, nil
}

// ListRooms retrieves all rooms ordered by name.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]models.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, created_at FROM rooms ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		var room models.Room
		var description sql.NullString
		if err := rows.Scan(&room.ID, &room.Name, &description, &room.CreatedAt); err != nil {
			return nil, err
		}
		room.Description = description.String
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// UpsertRoomMembership records that a user belongs to a room. Idempotent.
func (s *SQLiteStore) UpsertRoomMembership(ctx context.Context, userID, roomID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_rooms (user_id, room_id) VALUES (?, ?)
	`, userID, roomID)
	return err
}

// ListRoomsForUser returns the ids of rooms the user is a member of.
func (s *SQLiteStore) ListRoomsForUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT room_id FROM user_rooms WHERE user_id = ? ORDER BY room_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roomIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		roomIDs = append(roomIDs, id)
	}
	return roomIDs, rows.Err()
}

// InsertMessage persists a message and reads back the canonical row.
func (s *SQLiteStore) InsertMessage(ctx context.Context, roomID, userID int64, content, msgType string, file *models.FileMeta) (*models.Message, error) {
	var fileURL, fileName any
	var fileSize any
	if file != nil {
		fileURL, fileName, fileSize = file.URL, file.Name, file.Size
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (room_id, user_id, content, message_type, file_url, file_name, file_size)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, roomID, userID, content, msgType, fileURL, fileName, fileSize)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	msg, err := s.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("message %d vanished after insert", id)
	}
	return msg, nil
}

const sqliteMessageColumns = `
	m.id, m.room_id, m.user_id, u.username, u.avatar_url,
	m.content, m.message_type, m.file_url, m.file_name, m.file_size,
	m.is_deleted, m.created_at`

func scanSQLiteMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	msg := &models.Message{}
	var avatarURL, fileURL, fileName sql.NullString
	var fileSize sql.NullInt64
	var createdAt time.Time

	err := row.Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.UserID,
		&msg.Username,
		&avatarURL,
		&msg.Content,
		&msg.Type,
		&fileURL,
		&fileName,
		&fileSize,
		&msg.IsDeleted,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	msg.AvatarURL = avatarURL.String
	msg.CreatedAt = createdAt
	if fileURL.Valid {
		msg.File = &models.FileMeta{
			URL:  fileURL.String,
			Name: fileName.String,
			Size: fileSize.Int64,
		}
	}
	return msg, nil
}

// GetMessage retrieves a message by ID with author display fields.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sqliteMessageColumns+`
		FROM messages m
		JOIN users u ON m.user_id = u.id
		WHERE m.id = ?
	`, id)
	msg, err := scanSQLiteMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// SoftDeleteMessage marks a message deleted if the requester is its author.
// Returns the number of rows affected (0 or 1).
func (s *SQLiteStore) SoftDeleteMessage(ctx context.Context, messageID, requesterID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET is_deleted = 1
		WHERE id = ? AND user_id = ? AND is_deleted = 0
	`, messageID, requesterID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListMessages retrieves the most recent non-deleted messages for a room
// in chronological order.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID int64, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteMessageColumns+`
		FROM messages m
		JOIN users u ON m.user_id = u.id
		WHERE m.room_id = ? AND m.is_deleted = 0
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ?
	`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs, err := collectSQLiteMessages(rows)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// SearchMessages finds non-deleted messages whose content matches the query.
// roomID of 0 searches all rooms.
func (s *SQLiteStore) SearchMessages(ctx context.Context, query string, roomID int64, limit int) ([]models.Message, error) {
	pattern := "%" + query + "%"

	var (
		rows *sql.Rows
		err  error
	)
	if roomID > 0 {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+sqliteMessageColumns+`
			FROM messages m
			JOIN users u ON m.user_id = u.id
			WHERE m.content LIKE ? AND m.is_deleted = 0 AND m.room_id = ?
			ORDER BY m.created_at DESC
			LIMIT ?
		`, pattern, roomID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+sqliteMessageColumns+`
			FROM messages m
			JOIN users u ON m.user_id = u.id
			WHERE m.content LIKE ? AND m.is_deleted = 0
			ORDER BY m.created_at DESC
			LIMIT ?
		`, pattern, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSQLiteMessages(rows)
}

func collectSQLiteMessages(rows *sql.Rows) ([]models.Message, error) {
	var msgs []models.Message
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *msg)
	}
	return msgs, rows.Err()
}
