package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatwire/chatwire/internal/models"
)

// State is the lifecycle state of a connection.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

const sendBufferSize = 64

// Conn is one live duplex channel belonging to one authenticated user.
// Outbound events are queued on a buffered channel drained by the
// transport's write pump; Deliver never blocks on a slow socket.
type Conn struct {
	ID        uuid.UUID
	User      models.Identity
	CreatedAt time.Time

	send chan Event

	mu    sync.Mutex
	state State
}

// NewConn creates a connection record for an authenticated user.
func NewConn(user models.Identity) *Conn {
	return &Conn{
		ID:        uuid.New(),
		User:      user,
		CreatedAt: time.Now(),
		send:      make(chan Event, sendBufferSize),
		state:     StateAuthenticated,
	}
}

// Events returns the channel the transport drains to write to the socket.
func (c *Conn) Events() <-chan Event {
	return c.send
}

// State returns the connection's current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Live reports whether the connection accepts events and membership changes.
func (c *Conn) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateActive
}

// transition moves the connection to the given state if the move is legal
// and reports whether it happened. States only move forward.
func (c *Conn) transition(to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if to <= c.state {
		return false
	}
	c.state = to
	if to == StateClosed {
		close(c.send)
	}
	return true
}

// Deliver queues an event for this connection. Returns false when the
// connection is not live or its buffer is full; delivery is best-effort
// and the caller skips the target.
func (c *Conn) Deliver(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive && c.state != StateAuthenticated {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}
