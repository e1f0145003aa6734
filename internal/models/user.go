package models

import "time"

// User represents a registered chat user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	IsOnline     bool      `json:"is_online"`
	LastSeen     time.Time `json:"last_seen"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the authenticated subset of a user carried by tokens
// and attached to live connections.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}
