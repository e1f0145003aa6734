package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatwire/chatwire/internal/auth"
	"github.com/chatwire/chatwire/internal/metrics"
	"github.com/chatwire/chatwire/internal/models"
	"github.com/chatwire/chatwire/internal/store"
)

// Gateway owns the lifecycle of every realtime connection: handshake,
// registration, event dispatch, and teardown. All inbound events for one
// connection arrive on that connection's read loop, so per-connection
// handling is serialized; the registry, membership, and typing tables
// are the shared structures and carry their own locks.
type Gateway struct {
	verifier   auth.Verifier
	store      store.ChatStore
	registry   *Registry
	membership *Membership
	typing     *TypingState
	caster     *Broadcaster
	fanout     *FanoutEngine
	logger     zerolog.Logger

	handshakeTimeout time.Duration
	storageTimeout   time.Duration
}

// NewGateway wires the realtime core together.
func NewGateway(verifier auth.Verifier, st store.ChatStore, logger zerolog.Logger, handshakeTimeout time.Duration) *Gateway {
	registry := NewRegistry()
	membership := NewMembership()
	return &Gateway{
		verifier:         verifier,
		store:            st,
		registry:         registry,
		membership:       membership,
		typing:           NewTypingState(),
		caster:           NewBroadcaster(registry, membership, logger),
		fanout:           NewFanoutEngine(st, membership, logger),
		logger:           logger.With().Str("component", "gateway").Logger(),
		handshakeTimeout: handshakeTimeout,
		storageTimeout:   10 * time.Second,
	}
}

// Registry exposes the connection registry for presence queries.
func (g *Gateway) Registry() *Registry { return g.registry }

// Membership exposes the room membership table for presence queries.
func (g *Gateway) Membership() *Membership { return g.membership }

// Fanout exposes the fanout engine so HTTP handlers can announce
// side effects (e.g. a message deleted over the REST API).
func (g *Gateway) Fanout() *FanoutEngine { return g.fanout }

// Authenticate validates the handshake credential within the gateway's
// bounded timeout and returns the identity it carries. On failure the
// caller rejects the connection outright; nothing is registered.
func (g *Gateway) Authenticate(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, g.handshakeTimeout)
	defer cancel()

	type result struct {
		id  *models.Identity
		err error
	}
	ch := make(chan result, 1)
	go func() {
		id, err := g.verifier.Verify(token)
		ch <- result{id: id, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: handshake timed out", ErrUnauthenticated)
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, res.err)
		}
		return res.id, nil
	}
}

// Register moves an authenticated connection to Active: records it in the
// registry, flips the user online on the first connection, and auto-joins
// the rooms the user is a known member of. A user with no membership rows
// joins no rooms. Returns the joined room ids for the ready event.
func (g *Gateway) Register(ctx context.Context, c *Conn) ([]int64, error) {
	first := g.registry.Add(c)
	c.transition(StateActive)

	if first {
		g.setUserOnline(c.User.ID, true)
		g.caster.UserOnline(c.User)
	}

	roomIDs, err := g.store.ListRoomsForUser(ctx, c.User.ID)
	if err != nil {
		// The connection stays usable; the client can still join rooms
		// explicitly. Membership rows are re-read on reconnect.
		g.logger.Error().Err(err).Int64("user_id", c.User.ID).Msg("room auto-join query failed")
		roomIDs = nil
	}

	joined := make([]int64, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		if _, err := g.membership.Join(c, roomID); err != nil {
			break // connection began teardown mid-registration
		}
		joined = append(joined, roomID)
		g.caster.RoomUserCount(roomID)
	}

	metrics.ActiveConnections.Inc()
	metrics.TotalConnections.Inc()
	g.logger.Info().
		Str("conn_id", c.ID.String()).
		Int64("user_id", c.User.ID).
		Str("username", c.User.Username).
		Int("rooms", len(joined)).
		Bool("first_conn", first).
		Msg("connection registered")

	return joined, nil
}

// Dispatch routes one inbound event to the component that handles it.
// Errors are reported to the originating connection only and never change
// the connection's state.
func (g *Gateway) Dispatch(ctx context.Context, c *Conn, ev InboundEvent) {
	metrics.EventsReceived.WithLabelValues(ev.Type).Inc()

	switch ev.Type {
	case EventJoinRoom:
		var p JoinRoomPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			c.Deliver(messageErrorEvent("malformed joinRoom payload"))
			return
		}
		g.JoinRoom(ctx, c, p.RoomID)

	case EventLeaveRoom:
		var p JoinRoomPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			c.Deliver(messageErrorEvent("malformed leaveRoom payload"))
			return
		}
		g.LeaveRoom(c, p.RoomID)

	case EventTyping:
		var p TypingPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			c.Deliver(messageErrorEvent("malformed typing payload"))
			return
		}
		g.Typing(c, p)

	case EventSendMessage:
		var p SendMessagePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			c.Deliver(messageErrorEvent("malformed sendMessage payload"))
			return
		}
		sctx, cancel := context.WithTimeout(ctx, g.storageTimeout)
		defer cancel()
		if err := g.fanout.SendMessage(sctx, c, p); err != nil {
			g.logger.Warn().Err(err).Str("conn_id", c.ID.String()).Msg("sendMessage rejected")
		}

	case EventDeleteMessage:
		var p DeleteMessagePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			c.Deliver(messageErrorEvent("malformed deleteMessage payload"))
			return
		}
		sctx, cancel := context.WithTimeout(ctx, g.storageTimeout)
		defer cancel()
		if err := g.fanout.DeleteMessage(sctx, c, p); err != nil {
			g.logger.Warn().Err(err).Str("conn_id", c.ID.String()).Msg("deleteMessage rejected")
		}

	default:
		c.Deliver(messageErrorEvent("unknown event type: " + ev.Type))
	}
}

// JoinRoom subscribes the connection to a room. Idempotent: re-joining is
// a no-op that still counts as success. The durable membership row is a
// best-effort side effect; its failure never blocks realtime delivery.
func (g *Gateway) JoinRoom(ctx context.Context, c *Conn, roomID int64) {
	joined, err := g.membership.Join(c, roomID)
	if err != nil {
		return // teardown in progress, nothing to roll back
	}
	if !joined {
		return
	}

	sctx, cancel := context.WithTimeout(ctx, g.storageTimeout)
	defer cancel()
	if err := g.store.UpsertRoomMembership(sctx, c.User.ID, roomID); err != nil {
		g.logger.Warn().Err(err).
			Int64("user_id", c.User.ID).
			Int64("room_id", roomID).
			Msg("membership upsert failed; in-memory membership remains authoritative")
	}

	g.caster.RoomUserCount(roomID)
}

// LeaveRoom unsubscribes the connection from a room. Idempotent. Clears
// the user's typing flag for the room so members never see a stuck
// indicator for someone who left.
func (g *Gateway) LeaveRoom(c *Conn, roomID int64) {
	if !g.membership.Leave(c, roomID) {
		return
	}
	if g.typing.IsTyping(c.User.ID, roomID) {
		g.typing.Set(c.User.ID, roomID, false)
		g.caster.Typing(roomID, c.User, false)
	}
	g.caster.RoomUserCount(roomID)
}

// Typing updates the user's typing flag for a room and announces it to
// the other members.
func (g *Gateway) Typing(c *Conn, p TypingPayload) {
	if !g.membership.IsMember(c, p.RoomID) {
		c.Deliver(messageErrorEvent("you are not a member of this room"))
		return
	}
	g.typing.Set(c.User.ID, p.RoomID, p.IsTyping)
	g.caster.Typing(p.RoomID, c.User, p.IsTyping)
}

// Disconnect tears a connection down: membership purge, typing clear with
// synthetic false broadcasts, registry removal, and an offline broadcast
// when this was the user's last connection. Safe to call more than once.
// A join racing with teardown is rejected by the membership table once
// the connection leaves Active, so no dangling entry can survive.
func (g *Gateway) Disconnect(c *Conn) {
	if !c.transition(StateClosing) {
		return
	}

	rooms := g.membership.RemoveConn(c)
	for _, roomID := range rooms {
		g.caster.RoomUserCount(roomID)
	}

	// Synthetic typing=false for every room where the user's flag was
	// still set; the flag never expires on its own.
	for _, roomID := range g.typing.ClearUser(c.User.ID) {
		g.caster.Typing(roomID, c.User, false)
	}

	last := g.registry.Remove(c)
	if last {
		g.setUserOnline(c.User.ID, false)
		g.caster.UserOffline(c.User)
	}

	c.transition(StateClosed)
	metrics.ActiveConnections.Dec()
	g.logger.Info().
		Str("conn_id", c.ID.String()).
		Int64("user_id", c.User.ID).
		Int("rooms_left", len(rooms)).
		Bool("last_conn", last).
		Msg("connection closed")
}

// setUserOnline persists the online flag. Best-effort: a storage failure
// here is logged and ignored, presence stays correct in memory.
func (g *Gateway) setUserOnline(userID int64, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), g.storageTimeout)
	defer cancel()
	if err := g.store.SetUserOnline(ctx, userID, online); err != nil {
		g.logger.Warn().Err(err).
			Int64("user_id", userID).
			Bool("online", online).
			Msg("online flag persist failed")
	}
}
