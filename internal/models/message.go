package models

import "time"

// Message types accepted by the server.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
	MessageTypeEmoji = "emoji"
)

// ValidMessageType reports whether t is one of the accepted message types.
func ValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeEmoji:
		return true
	}
	return false
}

// FileMeta describes an uploaded attachment referenced by a message.
type FileMeta struct {
	URL  string `json:"file_url,omitempty"`
	Name string `json:"file_name,omitempty"`
	Size int64  `json:"file_size,omitempty"`
}

// Message represents a persisted chat message. Immutable once stored,
// except for the soft-delete transition.
type Message struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Content   string    `json:"content"`
	Type      string    `json:"message_type"`
	File      *FileMeta `json:"file,omitempty"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
}
