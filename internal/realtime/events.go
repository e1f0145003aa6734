package realtime

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/chatwire/chatwire/internal/models"
)

// Inbound event types, issued by clients over the socket.
const (
	EventJoinRoom      = "joinRoom"
	EventLeaveRoom     = "leaveRoom"
	EventTyping        = "typing"
	EventSendMessage   = "sendMessage"
	EventDeleteMessage = "deleteMessage"
)

// Outbound event types, emitted by the server.
const (
	EventReady         = "ready"
	EventNewMessage    = "newMessage"
	EventMsgDeleted    = "messageDeleted"
	EventUserTyping    = "userTyping"
	EventUserOnline    = "userOnline"
	EventUserOffline   = "userOffline"
	EventRoomUserCount = "roomOnlineUserCount"
	EventMessageError  = "messageError"
)

// InboundEvent is the envelope clients send: a discriminated, named payload.
type InboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Event is the envelope the server delivers to clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// JoinRoomPayload is the body of joinRoom and leaveRoom events.
type JoinRoomPayload struct {
	RoomID int64 `json:"room_id"`
}

// TypingPayload is the body of a typing event.
type TypingPayload struct {
	RoomID   int64 `json:"room_id"`
	IsTyping bool  `json:"is_typing"`
}

// SendMessagePayload is the body of a sendMessage event.
type SendMessagePayload struct {
	RoomID   int64  `json:"room_id"`
	Content  string `json:"content"`
	Type     string `json:"message_type,omitempty"`
	FileURL  string `json:"file_url,omitempty"`
	FileName string `json:"file_name,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// DeleteMessagePayload is the body of a deleteMessage event.
type DeleteMessagePayload struct {
	MessageID int64 `json:"message_id"`
	RoomID    int64 `json:"room_id"`
}

// ReadyPayload is sent once after a successful handshake.
type ReadyPayload struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	Rooms        []int64   `json:"rooms"`
}

// UserTypingPayload is the body of a userTyping broadcast.
type UserTypingPayload struct {
	RoomID   int64  `json:"room_id"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}

// RoomUserCountPayload is the body of a roomOnlineUserCount broadcast.
type RoomUserCountPayload struct {
	RoomID int64 `json:"room_id"`
	Count  int   `json:"count"`
}

// MessageDeletedPayload carries the id of a soft-deleted message, never
// its content.
type MessageDeletedPayload struct {
	MessageID int64 `json:"message_id"`
}

// MessageErrorPayload is delivered to the originating connection only.
type MessageErrorPayload struct {
	Error string `json:"error"`
}

func newMessageEvent(msg *models.Message) Event {
	return Event{Type: EventNewMessage, Data: msg}
}

func messageDeletedEvent(messageID int64) Event {
	return Event{Type: EventMsgDeleted, Data: MessageDeletedPayload{MessageID: messageID}}
}

func userTypingEvent(roomID int64, who models.Identity, isTyping bool) Event {
	return Event{Type: EventUserTyping, Data: UserTypingPayload{
		RoomID:   roomID,
		UserID:   who.ID,
		Username: who.Username,
		IsTyping: isTyping,
	}}
}

func userOnlineEvent(who models.Identity) Event {
	return Event{Type: EventUserOnline, Data: who}
}

func userOfflineEvent(who models.Identity) Event {
	return Event{Type: EventUserOffline, Data: who}
}

func roomUserCountEvent(roomID int64, count int) Event {
	return Event{Type: EventRoomUserCount, Data: RoomUserCountPayload{RoomID: roomID, Count: count}}
}

func messageErrorEvent(reason string) Event {
	return Event{Type: EventMessageError, Data: MessageErrorPayload{Error: reason}}
}
