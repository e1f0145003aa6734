package realtime

import (
	"github.com/rs/zerolog"

	"github.com/chatwire/chatwire/internal/metrics"
	"github.com/chatwire/chatwire/internal/models"
)

// Broadcaster turns membership, typing, and online-status changes into
// events delivered to the right subscriber set. It works on snapshots
// only and never touches storage; delivery is best-effort per target and
// a connection that disappears between snapshot and delivery is skipped.
type Broadcaster struct {
	registry   *Registry
	membership *Membership
	logger     zerolog.Logger
}

// NewBroadcaster creates a presence broadcaster over the given registry
// and membership tables.
func NewBroadcaster(registry *Registry, membership *Membership, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		registry:   registry,
		membership: membership,
		logger:     logger.With().Str("component", "broadcaster").Logger(),
	}
}

// deliver sends ev to every connection in targets, excluding connections
// owned by exceptUser when exceptUser is non-zero. Failed targets are
// skipped; recovery is the client's reconnect-triggered resync.
func (b *Broadcaster) deliver(targets []*Conn, ev Event, exceptUser int64) {
	for _, c := range targets {
		if exceptUser != 0 && c.User.ID == exceptUser {
			continue
		}
		if !c.Deliver(ev) {
			metrics.DeliveryFailures.WithLabelValues(ev.Type).Inc()
			b.logger.Debug().
				Str("event", ev.Type).
				Str("conn_id", c.ID.String()).
				Int64("user_id", c.User.ID).
				Msg("skipped undeliverable connection")
			continue
		}
		metrics.EventsDelivered.WithLabelValues(ev.Type).Inc()
	}
}

// UserOnline announces that a user came online to every connection except
// the user's own.
func (b *Broadcaster) UserOnline(who models.Identity) {
	b.deliver(b.registry.All(), userOnlineEvent(who), who.ID)
}

// UserOffline announces that a user went offline to every connection
// except the user's own.
func (b *Broadcaster) UserOffline(who models.Identity) {
	b.deliver(b.registry.All(), userOfflineEvent(who), who.ID)
}

// RoomUserCount recomputes the distinct online users subscribed to a room
// and announces the count to all its current members.
func (b *Broadcaster) RoomUserCount(roomID int64) {
	members := b.membership.MembersOf(roomID)

	seen := make(map[int64]struct{}, len(members))
	for _, c := range members {
		seen[c.User.ID] = struct{}{}
	}
	b.deliver(members, roomUserCountEvent(roomID, len(seen)), 0)
}

// Typing announces a typing flag change to the room's members, excluding
// the typist's own connections.
func (b *Broadcaster) Typing(roomID int64, who models.Identity, isTyping bool) {
	b.deliver(b.membership.MembersOf(roomID), userTypingEvent(roomID, who, isTyping), who.ID)
}
