package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/chatwire/chatwire/internal/metrics"
	"github.com/chatwire/chatwire/internal/models"
	"github.com/chatwire/chatwire/internal/store"
)

// FanoutEngine accepts validated messages, persists them, and delivers the
// canonical persisted row to every live connection subscribed to the room.
// The correctness-critical ordering: a message that failed to persist is
// never broadcast, and one that persisted is always offered to every member
// of a snapshot taken after persistence.
type FanoutEngine struct {
	store      store.ChatStore
	membership *Membership
	logger     zerolog.Logger

	// Per-room fanout locks. Broadcasts for the same room are serialized
	// in the order persistence completed, which is the canonical order
	// the storage layer assigned.
	mu        sync.Mutex
	roomLocks map[int64]*sync.Mutex
}

// NewFanoutEngine creates a message fanout engine.
func NewFanoutEngine(st store.ChatStore, membership *Membership, logger zerolog.Logger) *FanoutEngine {
	return &FanoutEngine{
		store:      st,
		membership: membership,
		logger:     logger.With().Str("component", "fanout").Logger(),
		roomLocks:  make(map[int64]*sync.Mutex),
	}
}

func (e *FanoutEngine) roomLock(roomID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.roomLocks[roomID]
	if !ok {
		l = &sync.Mutex{}
		e.roomLocks[roomID] = l
	}
	return l
}

// SendMessage runs the full inbound-message protocol for one sendMessage
// event: membership check, persist, broadcast. Errors that concern only
// the sender are delivered as messageError events to the sender and
// returned for the caller's logging; they never close the connection.
func (e *FanoutEngine) SendMessage(ctx context.Context, sender *Conn, p SendMessagePayload) error {
	if !e.membership.IsMember(sender, p.RoomID) {
		sender.Deliver(messageErrorEvent("you are not a member of this room"))
		return ErrNotAMember
	}

	msgType := p.Type
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	if !models.ValidMessageType(msgType) {
		sender.Deliver(messageErrorEvent("invalid message type"))
		return nil
	}

	var file *models.FileMeta
	if p.FileURL != "" {
		file = &models.FileMeta{URL: p.FileURL, Name: p.FileName, Size: p.FileSize}
	}

	msg, err := e.store.InsertMessage(ctx, p.RoomID, sender.User.ID, p.Content, msgType, file)
	if err != nil {
		// No broadcast for a message that cannot be confirmed persisted.
		sender.Deliver(messageErrorEvent("failed to send message"))
		e.logger.Error().Err(err).
			Int64("room_id", p.RoomID).
			Int64("user_id", sender.User.ID).
			Msg("message persist failed")
		return err
	}

	e.Broadcast(p.RoomID, newMessageEvent(msg))
	metrics.MessagesBroadcast.Inc()
	return nil
}

// DeleteMessage soft-deletes a message and, only when the conditional
// update affected exactly one row, announces the deletion to the room.
// A delete by a non-author affects zero rows and produces no broadcast.
func (e *FanoutEngine) DeleteMessage(ctx context.Context, sender *Conn, p DeleteMessagePayload) error {
	affected, err := e.store.SoftDeleteMessage(ctx, p.MessageID, sender.User.ID)
	if err != nil {
		sender.Deliver(messageErrorEvent("failed to delete message"))
		e.logger.Error().Err(err).
			Int64("message_id", p.MessageID).
			Int64("user_id", sender.User.ID).
			Msg("message delete failed")
		return err
	}
	if affected != 1 {
		return nil
	}

	e.Broadcast(p.RoomID, messageDeletedEvent(p.MessageID))
	metrics.MessagesDeleted.Inc()
	return nil
}

// BroadcastDeleted announces a soft-deleted message to a room's members.
// Used by the REST delete path after its own conditional update succeeded.
func (e *FanoutEngine) BroadcastDeleted(roomID, messageID int64) {
	e.Broadcast(roomID, messageDeletedEvent(messageID))
	metrics.MessagesDeleted.Inc()
}

// Broadcast delivers an event to every connection subscribed to the room
// at this moment. The snapshot is taken under the room's fanout lock so
// that, within one room, events go out in the order their persistence
// completed. Per-target failures are skipped.
func (e *FanoutEngine) Broadcast(roomID int64, ev Event) {
	lock := e.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	for _, c := range e.membership.MembersOf(roomID) {
		if !c.Deliver(ev) {
			metrics.DeliveryFailures.WithLabelValues(ev.Type).Inc()
			e.logger.Debug().
				Str("event", ev.Type).
				Str("conn_id", c.ID.String()).
				Int64("room_id", roomID).
				Msg("skipped undeliverable connection")
			continue
		}
		metrics.EventsDelivered.WithLabelValues(ev.Type).Inc()
	}
}
