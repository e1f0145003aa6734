package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Membership tracks which connections are subscribed to which rooms.
// The in-memory state is authoritative for fanout; the durable
// user_rooms record is a best-effort side effect written by the gateway.
type Membership struct {
	mu     sync.RWMutex
	rooms  map[int64]map[uuid.UUID]*Conn
	byConn map[uuid.UUID]map[int64]struct{}
}

// NewMembership creates an empty membership table.
func NewMembership() *Membership {
	return &Membership{
		rooms:  make(map[int64]map[uuid.UUID]*Conn),
		byConn: make(map[uuid.UUID]map[int64]struct{}),
	}
}

// Join subscribes a connection to a room. Idempotent: joining a room the
// connection already joined reports false and changes nothing. A join for
// a connection that is no longer live is rejected so teardown can never
// leave a dangling entry behind.
func (m *Membership) Join(c *Conn, roomID int64) (joined bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !c.Live() {
		return false, ErrConnClosed
	}

	conns, ok := m.rooms[roomID]
	if !ok {
		conns = make(map[uuid.UUID]*Conn)
		m.rooms[roomID] = conns
	}
	if _, ok := conns[c.ID]; ok {
		return false, nil
	}
	conns[c.ID] = c

	roomSet, ok := m.byConn[c.ID]
	if !ok {
		roomSet = make(map[int64]struct{})
		m.byConn[c.ID] = roomSet
	}
	roomSet[roomID] = struct{}{}
	return true, nil
}

// Leave unsubscribes a connection from a room. Idempotent.
func (m *Membership) Leave(c *Conn, roomID int64) (left bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaveLocked(c.ID, roomID)
}

func (m *Membership) leaveLocked(connID uuid.UUID, roomID int64) bool {
	conns, ok := m.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := conns[connID]; !ok {
		return false
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(m.rooms, roomID)
	}
	if roomSet, ok := m.byConn[connID]; ok {
		delete(roomSet, roomID)
		if len(roomSet) == 0 {
			delete(m.byConn, connID)
		}
	}
	return true
}

// RemoveConn drops the connection from every room it had joined and
// returns those room ids, for teardown side effects.
func (m *Membership) RemoveConn(c *Conn) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	roomSet, ok := m.byConn[c.ID]
	if !ok {
		return nil
	}
	roomIDs := make([]int64, 0, len(roomSet))
	for roomID := range roomSet {
		roomIDs = append(roomIDs, roomID)
	}
	for _, roomID := range roomIDs {
		m.leaveLocked(c.ID, roomID)
	}
	return roomIDs
}

// MembersOf returns a snapshot of the connections currently subscribed to
// a room. Never a live view; callers iterate without holding the lock.
func (m *Membership) MembersOf(roomID int64) []*Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := make([]*Conn, 0, len(m.rooms[roomID]))
	for _, c := range m.rooms[roomID] {
		conns = append(conns, c)
	}
	return conns
}

// RoomsOf returns a snapshot of the room ids a connection has joined.
func (m *Membership) RoomsOf(c *Conn) []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	roomIDs := make([]int64, 0, len(m.byConn[c.ID]))
	for roomID := range m.byConn[c.ID] {
		roomIDs = append(roomIDs, roomID)
	}
	return roomIDs
}

// IsMember reports whether the connection is currently subscribed to the room.
func (m *Membership) IsMember(c *Conn, roomID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[roomID][c.ID]
	return ok
}
