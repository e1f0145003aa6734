package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatwire/chatwire/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, username, email, password_hash, COALESCE(avatar_url, ''), is_online, last_seen, created_at
	`, username, email, passwordHash).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.IsOnline,
		&user.LastSeen,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

// GetUserByUsername retrieves a user by username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, `WHERE username = $1`, username)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, COALESCE(avatar_url, ''), is_online, last_seen, created_at
		FROM users `+where,
		arg,
	).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.IsOnline,
		&user.LastSeen,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// ListOnlineUsers returns every user currently flagged online, ordered
// by username.
func (s *PostgresStore) ListOnlineUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, email, password_hash, COALESCE(avatar_url, ''), is_online, last_seen, created_at
		FROM users WHERE is_online = TRUE ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.PasswordHash,
			&user.AvatarURL,
			&user.IsOnline,
			&user.LastSeen,
			&user.CreatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// SetUserOnline updates a user's online flag and last seen timestamp.
func (s *PostgresStore) SetUserOnline(ctx context.Context, userID int64, online bool) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET is_online = $2, last_seen = now() WHERE id = $1
	`, userID, online)
	return err
}

// CreateRoom creates a new room.
func (s *PostgresStore) CreateRoom(ctx context.Context, name, description string) (*models.Room, error) {
	room := &models.Room{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO rooms (name, description)
		VALUES ($1, $2)
		RETURNING id, name, COALESCE(description, ''), created_at
	`, name, description).Scan(
		&room.ID,
		&room.Name,
		&room.Description,
		&room.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return room, nil
}

// GetRoom retrieves a room by ID.
func (s *PostgresStore) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	room := &models.Room{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(description, ''), created_at
		FROM rooms WHERE id = $1
	`, id).Scan(&room.ID, &room.Name, &room.Description, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// GetRoomByName retrieves a room by its unique name.
func (s *PostgresStore) GetRoomByName(ctx context.Context, name string) (*models.Room, error) {
	room := &models.Room{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(description, ''), created_at
		FROM rooms WHERE name = $1
	`, name).Scan(&room.ID, &room.Name, &room.Description, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// ListRooms retrieves all rooms ordered by name.
func (s *PostgresStore) ListRooms(ctx context.Context) ([]models.Room, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, COALESCE(description, ''), created_at
		FROM rooms ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		var room models.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.Description, &room.CreatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// UpsertRoomMembership records that a user belongs to a room. Idempotent.
func (s *PostgresStore) UpsertRoomMembership(ctx context.Context, userID, roomID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_rooms (user_id, room_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, room_id) DO NOTHING
	`, userID, roomID)
	return err
}

// ListRoomsForUser returns the ids of rooms the user is a member of.
func (s *PostgresStore) ListRoomsForUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT room_id FROM user_rooms WHERE user_id = $1 ORDER BY room_id
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

// InsertMessage persists a message and reads back the canonical row joined
// with the author's display fields.
func (s *PostgresStore) InsertMessage(ctx context.Context, roomID, userID int64, content, msgType string, file *models.FileMeta) (*models.Message, error) {
	var fileURL, fileName *string
	var fileSize *int64
	if file != nil {
		fileURL, fileName, fileSize = &file.URL, &file.Name, &file.Size
	}

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (room_id, user_id, content, message_type, file_url, file_name, file_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, roomID, userID, content, msgType, fileURL, fileName, fileSize).Scan(&id)
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

const messageColumns = `
	m.id, m.room_id, m.user_id, u.username, COALESCE(u.avatar_url, ''),
	m.content, m.message_type, m.file_url, m.file_name, m.file_size,
	m.is_deleted, m.created_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	msg := &models.Message{}
	var fileURL, fileName *string
	var fileSize *int64

	err := row.Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.UserID,
		&msg.Username,
		&msg.AvatarURL,
		&msg.Content,
		&msg.Type,
		&fileURL,
		&fileName,
		&fileSize,
		&msg.IsDeleted,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if fileURL != nil {
		msg.File = &models.FileMeta{URL: *fileURL}
		if fileName != nil {
			msg.File.Name = *fileName
		}
		if fileSize != nil {
			msg.File.Size = *fileSize
		}
	}
	return msg, nil
}

// GetMessage retrieves a message by ID with author display fields.
func (s *PostgresStore) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		JOIN users u ON m.user_id = u.id
		WHERE m.id = $1
	`, id)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// SoftDeleteMessage marks a message deleted if the requester is its author.
// Returns the number of rows affected (0 or 1). Authorization is the
// conditional predicate itself.
func (s *PostgresStore) SoftDeleteMessage(ctx context.Context, messageID, requesterID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET is_deleted = TRUE
		WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE
	`, messageID, requesterID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListMessages retrieves the most recent non-deleted messages for a room
// in chronological order.
func (s *PostgresStore) ListMessages(ctx context.Context, roomID int64, limit int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		JOIN users u ON m.user_id = u.id
		WHERE m.room_id = $1 AND m.is_deleted = FALSE
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $2
	`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}

	// Reverse to chronological order for the client.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// SearchMessages finds non-deleted messages whose content matches the query.
// roomID of 0 searches all rooms.
func (s *PostgresStore) SearchMessages(ctx context.Context, query string, roomID int64, limit int) ([]models.Message, error) {
	pattern := "%" + query + "%"

	var (
		rows pgx.Rows
		err  error
	)
	if roomID > 0 {
		rows, err = s.pool.Query(ctx, `
			SELECT `+messageColumns+`
			FROM messages m
			JOIN users u ON m.user_id = u.id
			WHERE m.content ILIKE $1 AND m.is_deleted = FALSE AND m.room_id = $2
			ORDER BY m.created_at DESC
			LIMIT $3
		`, pattern, roomID, limit)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT `+messageColumns+`
			FROM messages m
			JOIN users u ON m.user_id = u.id
			WHERE m.content ILIKE $1 AND m.is_deleted = FALSE
			ORDER BY m.created_at DESC
			LIMIT $2
		`, pattern, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]models.Message, error) {
	var msgs []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *msg)
	}
	return msgs, rows.Err()
}
