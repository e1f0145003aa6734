package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Registry maps user ids to their live connections. A user is online iff
// its connection set is non-empty; the registry reports the first-connection
// and last-connection transitions so the caller can broadcast them.
type Registry struct {
	mu    sync.RWMutex
	users map[int64]map[uuid.UUID]*Conn
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[int64]map[uuid.UUID]*Conn)}
}

// Add registers a connection under its user. Returns true when this is the
// user's first live connection (the offline→online transition).
func (r *Registry) Add(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[c.User.ID]
	if !ok {
		conns = make(map[uuid.UUID]*Conn)
		r.users[c.User.ID] = conns
	}
	first := len(conns) == 0
	conns[c.ID] = c
	return first
}

// Remove unregisters a connection. Returns true when this was the user's
// last live connection (the online→offline transition).
func (r *Registry) Remove(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[c.User.ID]
	if !ok {
		return false
	}
	if _, ok := conns[c.ID]; !ok {
		return false
	}
	delete(conns, c.ID)
	if len(conns) == 0 {
		delete(r.users, c.User.ID)
		return true
	}
	return false
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// ConnsOf returns a snapshot of the user's live connections.
func (r *Registry) ConnsOf(userID int64) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Conn, 0, len(r.users[userID]))
	for _, c := range r.users[userID] {
		conns = append(conns, c)
	}
	return conns
}

// All returns a snapshot of every live connection across all users.
func (r *Registry) All() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []*Conn
	for _, userConns := range r.users {
		for _, c := range userConns {
			conns = append(conns, c)
		}
	}
	return conns
}

// OnlineCount returns the number of distinct online users.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
