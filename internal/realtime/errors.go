package realtime

import "errors"

var (
	// ErrUnauthenticated means the handshake credential was rejected.
	// The connection is closed and never registered.
	ErrUnauthenticated = errors.New("realtime: unauthenticated")

	// ErrNotAMember means an action targeted a room the connection has not
	// joined. Reported to the sender; the connection stays alive.
	ErrNotAMember = errors.New("realtime: not a member of room")

	// ErrConnClosed means an event arrived for a connection that has
	// already begun teardown.
	ErrConnClosed = errors.New("realtime: connection closed")
)
