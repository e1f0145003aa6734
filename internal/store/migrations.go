package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// DefaultRoomName is the seeded room new users are made members of at
// registration. Both schemas seed it; look rooms up by name, never by a
// hard-coded id, since seeding against a pre-existing database does not
// guarantee ids.
const DefaultRoomName = "General"

// pgSchema is the PostgreSQL schema, applied idempotently at startup.
const pgSchema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username VARCHAR(50) UNIQUE NOT NULL,
	email VARCHAR(100) UNIQUE NOT NULL,
	password_hash VARCHAR(255) NOT NULL,
	avatar_url VARCHAR(255),
	is_online BOOLEAN NOT NULL DEFAULT FALSE,
	last_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rooms (
	id BIGSERIAL PRIMARY KEY,
	name VARCHAR(50) UNIQUE NOT NULL,
	description TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_rooms (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	room_id BIGINT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, room_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id BIGSERIAL PRIMARY KEY,
	room_id BIGINT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	message_type VARCHAR(10) NOT NULL DEFAULT 'text',
	file_url VARCHAR(255),
	file_name VARCHAR(255),
	file_size BIGINT,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages(room_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id);
CREATE INDEX IF NOT EXISTS idx_user_rooms_user ON user_rooms(user_id);

INSERT INTO rooms (name, description) VALUES
	('General', 'General discussion room'),
	('Random', 'Random talk about anything'),
	('Help', 'Get help and support'),
	('Technology', 'Discuss latest tech trends'),
	('Gaming', 'For gamers to connect')
ON CONFLICT (name) DO NOTHING;
`

// RunMigrations applies the schema to the database at databaseURL.
func RunMigrations(databaseURL string) error {
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, pgSchema)
	return err
}
