package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwire/chatwire/internal/models"
)

func TestSendMessageBroadcastsPersistedRow(t *testing.T) {
	st := newFakeStore()
	m := NewMembership()
	e := NewFanoutEngine(st, m, zerolog.Nop())

	alice := activeConn(1, "alice")
	bob := activeConn(2, "bob")
	for _, c := range []*Conn{alice, bob} {
		_, err := m.Join(c, 5)
		require.NoError(t, err)
	}

	err := e.SendMessage(context.Background(), alice, SendMessagePayload{RoomID: 5, Content: "hi"})
	require.NoError(t, err)

	for _, c := range []*Conn{alice, bob} {
		evs := eventsOfType(drainEvents(c), EventNewMessage)
		require.Len(t, evs, 1, "every member including the sender gets the message")

		msg, ok := evs[0].Data.(*models.Message)
		require.True(t, ok)
		assert.Equal(t, int64(1), msg.ID, "broadcast carries the storage-assigned id")
		assert.Equal(t, "hi", msg.Content)
		assert.Equal(t, models.MessageTypeText, msg.Type, "empty type defaults to text")
	}
}

func TestSendMessageRejectsNonMember(t *testing.T) {
	st := newFakeStore()
	m := NewMembership()
	e := NewFanoutEngine(st, m, zerolog.Nop())

	alice := activeConn(1, "alice")
	bob := activeConn(2, "bob")
	_, err := m.Join(bob, 5)
	require.NoError(t, err)

	err = e.SendMessage(context.Background(), alice, SendMessagePayload{RoomID: 5, Content: "hi"})
	assert.ErrorIs(t, err, ErrNotAMember)

	assert.Len(t, eventsOfType(drainEvents(alice), EventMessageError), 1)
	assert.Empty(t, drainEvents(bob), "members see nothing from a rejected send")
	assert.Empty(t, st.messages, "nothing persisted")
}

func TestSendMessagePersistFailureNeverBroadcasts(t *testing.T) {
	st := newFakeStore()
	st.insertErr = errors.New("connection refused")
	m := NewMembership()
	e := NewFanoutEngine(st, m, zerolog.Nop())

	alice := activeConn(1, "alice")
	bob := activeConn(2, "bob")
	for _, c := range []*Conn{alice, bob} {
		_, err := m.Join(c, 5)
		require.NoError(t, err)
	}

	err := e.SendMessage(context.Background(), alice, SendMessagePayload{RoomID: 5, Content: "hi"})
	require.Error(t, err)

	aliceEvents := drainEvents(alice)
	assert.Len(t, eventsOfType(aliceEvents, EventMessageError), 1, "sender is told the send failed")
	assert.Empty(t, eventsOfType(aliceEvents, EventNewMessage))
	assert.Empty(t, drainEvents(bob), "an unpersisted message is never broadcast")
}

func TestSendMessageInvalidType(t *testing.T) {
	st := newFakeStore()
	m := NewMembership()
	e := NewFanoutEngine(st, m, zerolog.Nop())

	alice := activeConn(1, "alice")
	_, err := m.Join(alice, 5)
	require.NoError(t, err)

	err = e.SendMessage(context.Background(), alice, SendMessagePayload{RoomID: 5, Content: "x", Type: "video"})
	require.NoError(t, err)

	assert.Len(t, eventsOfType(drainEvents(alice), EventMessageError), 1)
	assert.Empty(t, st.messages)
}

func TestSendMessageCarriesAttachment(t *testing.T) {
	st := newFakeStore()
	m := NewMembership()
	e := NewFanoutEngine(st, m, zerolog.Nop())

	alice := activeConn(1, "alice")
	_, err := m.Join(alice, 5)
	require.NoError(t, err)

	err = e.SendMessage(context.Background(), alice, SendMessagePayload{
		RoomID:   5,
		Content:  "report",
		Type:     models.MessageTypeFile,
		FileURL:  "/uploads/abc.pdf",
		FileName: "report.pdf",
		FileSize: 1024,
	})
	require.NoError(t, err)

	evs := eventsOfType(drainEvents(alice), EventNewMessage)
	require.Len(t, evs, 1)
	msg := evs[0].Data.(*models.Message)
	require.NotNil(t, msg.File)
	assert.Equal(t, "/uploads/abc.pdf", msg.File.URL)
	assert.Equal(t, int64(1024), msg.File.Size)
}

func TestDeleteMessageByAuthorBroadcasts(t *testing.T) {
	st := newFakeStore()
	m := NewMembership()
	e := NewFanoutEngine(st, m, zerolog.Nop())

	alice := activeConn(1, "alice")
	bob := activeConn(2, "bob")
	for _, c := range []*Conn{alice, bob} {
		_, err := m.Join(c, 5)
		require.NoError(t, err)
	}

	msg, err := st.InsertMessage(context.Background(), 5, 1, "hi", models.MessageTypeText, nil)
	require.NoError(t, err)

	err = e.DeleteMessage(context.Background(), alice, DeleteMessagePayload{MessageID: msg.ID, RoomID: 5})
	require.NoError(t, err)

	evs := eventsOfType(drainEvents(bob), EventMsgDeleted)
	require.Len(t, evs, 1)
	assert.Equal(t, MessageDeletedPayload{MessageID: msg.ID}, evs[0].Data)
	assert.True(t, st.messages[msg.ID].IsDeleted)
}

func TestDeleteMessageByNonAuthorIsSilent(t *testing.T) {
	st := newFakeStore()
	m := NewMembership()
	e := NewFanoutEngine(st, m, zerolog.Nop())

	alice := activeConn(1, "alice")
	bob := activeConn(2, "bob")
	for _, c := range []*Conn{alice, bob} {
		_, err := m.Join(c, 5)
		require.NoError(t, err)
	}

	msg, err := st.InsertMessage(context.Background(), 5, 1, "hi", models.MessageTypeText, nil)
	require.NoError(t, err)

	err = e.DeleteMessage(context.Background(), bob, DeleteMessagePayload{MessageID: msg.ID, RoomID: 5})
	require.NoError(t, err)

	assert.Empty(t, eventsOfType(drainEvents(alice), EventMsgDeleted),
		"a delete that affected zero rows produces no broadcast")
	assert.False(t, st.messages[msg.ID].IsDeleted)
}

func TestDeleteMessageTwiceBroadcastsOnce(t *testing.T) {
	st := newFakeStore()
	m := NewMembership()
	e := NewFanoutEngine(st, m, zerolog.Nop())

	alice := activeConn(1, "alice")
	_, err := m.Join(alice, 5)
	require.NoError(t, err)

	msg, err := st.InsertMessage(context.Background(), 5, 1, "hi", models.MessageTypeText, nil)
	require.NoError(t, err)

	require.NoError(t, e.DeleteMessage(context.Background(), alice, DeleteMessagePayload{MessageID: msg.ID, RoomID: 5}))
	require.NoError(t, e.DeleteMessage(context.Background(), alice, DeleteMessagePayload{MessageID: msg.ID, RoomID: 5}))

	assert.Len(t, eventsOfType(drainEvents(alice), EventMsgDeleted), 1,
		"the already-deleted row affects zero rows on the second delete")
}

func TestBroadcastSkipsUndeliverableConn(t *testing.T) {
	st := newFakeStore()
	m := NewMembership()
	e := NewFanoutEngine(st, m, zerolog.Nop())

	alice := activeConn(1, "alice")
	bob := activeConn(2, "bob")
	for _, c := range []*Conn{alice, bob} {
		_, err := m.Join(c, 5)
		require.NoError(t, err)
	}

	// Fill bob's buffer so delivery to him fails.
	for i := 0; i < sendBufferSize; i++ {
		require.True(t, bob.Deliver(roomUserCountEvent(5, 1)))
	}

	err := e.SendMessage(context.Background(), alice, SendMessagePayload{RoomID: 5, Content: "hi"})
	require.NoError(t, err)

	assert.Len(t, eventsOfType(drainEvents(alice), EventNewMessage), 1,
		"a slow member never blocks delivery to the rest of the room")
}
