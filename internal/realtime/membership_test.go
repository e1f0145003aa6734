package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembershipJoinIsIdempotent(t *testing.T) {
	m := NewMembership()
	c := activeConn(1, "alice")

	joined, err := m.Join(c, 5)
	require.NoError(t, err)
	assert.True(t, joined)

	joined, err = m.Join(c, 5)
	require.NoError(t, err)
	assert.False(t, joined, "re-join must be a no-op")

	assert.Len(t, m.MembersOf(5), 1)
	assert.True(t, m.IsMember(c, 5))
}

func TestMembershipJoinRejectsClosedConn(t *testing.T) {
	m := NewMembership()
	c := activeConn(1, "alice")
	c.transition(StateClosing)

	joined, err := m.Join(c, 5)
	assert.ErrorIs(t, err, ErrConnClosed)
	assert.False(t, joined)
	assert.Empty(t, m.MembersOf(5), "a non-live connection must never enter a room")
}

func TestMembershipLeaveIsIdempotent(t *testing.T) {
	m := NewMembership()
	c := activeConn(1, "alice")

	_, err := m.Join(c, 5)
	require.NoError(t, err)

	assert.True(t, m.Leave(c, 5))
	assert.False(t, m.Leave(c, 5))
	assert.False(t, m.IsMember(c, 5))
	assert.Empty(t, m.RoomsOf(c))
}

func TestMembershipRemoveConnPurgesEveryRoom(t *testing.T) {
	m := NewMembership()
	c := activeConn(1, "alice")
	other := activeConn(2, "bob")

	for _, roomID := range []int64{1, 2, 3} {
		_, err := m.Join(c, roomID)
		require.NoError(t, err)
	}
	_, err := m.Join(other, 2)
	require.NoError(t, err)

	rooms := m.RemoveConn(c)
	assert.ElementsMatch(t, []int64{1, 2, 3}, rooms)
	assert.Empty(t, m.RoomsOf(c))
	assert.False(t, m.IsMember(c, 2))
	assert.True(t, m.IsMember(other, 2), "other members are untouched")

	assert.Nil(t, m.RemoveConn(c), "second teardown finds nothing")
}

func TestMembershipMembersOfIsASnapshot(t *testing.T) {
	m := NewMembership()
	c := activeConn(1, "alice")

	_, err := m.Join(c, 9)
	require.NoError(t, err)

	snap := m.MembersOf(9)
	m.Leave(c, 9)

	assert.Len(t, snap, 1, "snapshot is unaffected by later membership changes")
	assert.Empty(t, m.MembersOf(9))
}
