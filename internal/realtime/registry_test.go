package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryFirstAndLastTransitions(t *testing.T) {
	r := NewRegistry()

	c1 := activeConn(1, "alice")
	c2 := activeConn(1, "alice")

	assert.True(t, r.Add(c1), "first connection should report the online transition")
	assert.False(t, r.Add(c2), "second connection should not")
	assert.True(t, r.IsOnline(1))
	assert.Equal(t, 1, r.OnlineCount())

	assert.False(t, r.Remove(c1), "a connection remains, user stays online")
	assert.True(t, r.IsOnline(1))
	assert.True(t, r.Remove(c2), "last connection should report the offline transition")
	assert.False(t, r.IsOnline(1))
	assert.Equal(t, 0, r.OnlineCount())
}

func TestRegistryRemoveUnknownConn(t *testing.T) {
	r := NewRegistry()
	c := activeConn(7, "bob")

	assert.False(t, r.Remove(c), "removing an unregistered connection is a no-op")

	r.Add(c)
	assert.True(t, r.Remove(c))
	assert.False(t, r.Remove(c), "double remove must not report a second offline transition")
}

func TestRegistryDistinctUsers(t *testing.T) {
	r := NewRegistry()
	a := activeConn(1, "alice")
	b := activeConn(2, "bob")

	r.Add(a)
	r.Add(b)

	assert.Equal(t, 2, r.OnlineCount())
	assert.Len(t, r.All(), 2)
	assert.Len(t, r.ConnsOf(1), 1)

	r.Remove(a)
	assert.False(t, r.IsOnline(1))
	assert.True(t, r.IsOnline(2))
}
