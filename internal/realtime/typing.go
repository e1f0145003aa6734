package realtime

import (
	"sync"
	"time"
)

type typingKey struct {
	userID int64
	roomID int64
}

type typingRecord struct {
	isTyping    bool
	lastUpdated time.Time
}

// TypingState holds short-lived per-(user,room) typing flags. The server
// keeps a flag until an explicit false or disconnect; there is no expiry
// timer, the client re-arms its indicator. Updates for one user arrive on
// that user's own event loop, but the disconnect-triggered clear runs on
// another goroutine, so access stays synchronized.
type TypingState struct {
	mu      sync.Mutex
	records map[typingKey]typingRecord
}

// NewTypingState creates an empty typing table.
func NewTypingState() *TypingState {
	return &TypingState{records: make(map[typingKey]typingRecord)}
}

// Set overwrites the typing record for (userID, roomID).
func (t *TypingState) Set(userID, roomID int64, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := typingKey{userID: userID, roomID: roomID}
	if !isTyping {
		delete(t.records, key)
		return
	}
	t.records[key] = typingRecord{isTyping: true, lastUpdated: time.Now()}
}

// IsTyping reports the current flag for (userID, roomID).
func (t *TypingState) IsTyping(userID, roomID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.records[typingKey{userID: userID, roomID: roomID}].isTyping
}

// ClearUser removes every record for the user and returns the room ids
// that had an active flag, so teardown can emit synthetic false events.
func (t *TypingState) ClearUser(userID int64) []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var roomIDs []int64
	for key, rec := range t.records {
		if key.userID != userID {
			continue
		}
		if rec.isTyping {
			roomIDs = append(roomIDs, key.roomID)
		}
		delete(t.records, key)
	}
	return roomIDs
}
