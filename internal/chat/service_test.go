// ABOUTME: Tests for the chat service: fan-out sends, ordering, edits, read state
// ABOUTME: Runs against the in-memory tree store with a fake clock

package chat

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wachichaw/allychat/internal/rtdb"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock hands out a fixed series of timestamps.
type fakeClock struct {
	now int64
}

func (c *fakeClock) next() int64 {
	c.now++
	return c.now
}

func newTestService(t *testing.T) (*Service, *rtdb.MemoryStore, *fakeClock) {
	t.Helper()
	store := rtdb.NewMemoryStore(testLogger())
	t.Cleanup(func() { store.Close() })

	svc := NewService(store, testLogger())
	clock := &fakeClock{now: 1000}
	svc.now = clock.next
	return svc, store, clock
}

func TestSendMessage_ReturnsCanonicalRoomKey(t *testing.T) {
	svc, _, _ := newTestService(t)

	res, err := svc.SendMessage(context.Background(), "u1", "u2", "Hello", "client")
	require.NoError(t, err)
	assert.Equal(t, "u1_u2", res.RoomKey)
	assert.NotEmpty(t, res.MessageID)
}

func TestSendMessage_WritesEveryFanOutLocation(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.SendMessage(ctx, "u2", "u1", "Hello", "lawyer")
	require.NoError(t, err)

	// Message log
	raw, err := store.Get(ctx, "messages/u1_u2/"+res.MessageID)
	require.NoError(t, err)
	msg := raw.(map[string]any)
	assert.Equal(t, "u2", msg["senderId"])
	assert.Equal(t, "u1", msg["receiverId"])
	assert.Equal(t, "Hello", msg["content"])
	assert.Equal(t, int64(1001), msg["timestamp"])
	assert.Equal(t, false, msg["isEdited"])
	assert.Equal(t, "lawyer", msg["senderRole"])

	// Room metadata
	v, err := store.Get(ctx, "chatrooms/u1_u2/lastMessage")
	require.NoError(t, err)
	assert.Equal(t, "Hello", v)
	v, err = store.Get(ctx, "chatrooms/u1_u2/lastMessageTimestamp")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), v)

	// Both participants registered
	for _, u := range []string{"u1", "u2"} {
		v, err = store.Get(ctx, "chatrooms/u1_u2/participants/"+u)
		require.NoError(t, err)
		assert.Equal(t, true, v)
	}

	// Directory index for both sides
	for _, u := range []string{"u1", "u2"} {
		v, err = store.Get(ctx, "userChatrooms/"+u+"/u1_u2")
		require.NoError(t, err)
		assert.Equal(t, true, v)
	}

	// Sender's read marker equals the send timestamp; receiver has none.
	v, err = store.Get(ctx, "chatrooms/u1_u2/participantDetails/u2/lastRead")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), v)
	v, err = store.Get(ctx, "chatrooms/u1_u2/participantDetails/u2/role")
	require.NoError(t, err)
	assert.Equal(t, "lawyer", v)
	_, err = store.Get(ctx, "chatrooms/u1_u2/participantDetails/u1")
	assert.ErrorIs(t, err, rtdb.ErrNotFound)
}

func TestSendMessage_InvalidParticipants(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, "", "u2", "hi", "client")
	assert.ErrorIs(t, err, ErrInvalidParticipant)

	_, err = svc.SendMessage(ctx, "u1", "u1", "hi", "client")
	assert.ErrorIs(t, err, ErrInvalidParticipant)
}

func TestMessages_OrderedByTimestamp(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, "u1", "u2", "A", "client")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, "u2", "u1", "B", "lawyer")
	require.NoError(t, err)

	// A later send carrying an earlier timestamp still sorts first:
	// ordering follows timestamps, not call order.
	clock.now = 500
	_, err = svc.SendMessage(ctx, "u1", "u2", "earliest", "client")
	require.NoError(t, err)

	msgs, err := svc.Messages(ctx, "u1_u2")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"earliest", "A", "B"},
		[]string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
	for i := 1; i < len(msgs); i++ {
		assert.LessOrEqual(t, msgs[i-1].Timestamp, msgs[i].Timestamp)
	}
}

func TestMessages_TimestampTieBrokenByKey(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	// Freeze the clock so both messages share one timestamp.
	clock.now = 2000
	first, err := svc.SendMessage(ctx, "u1", "u2", "first", "client")
	require.NoError(t, err)
	clock.now = 2000
	second, err := svc.SendMessage(ctx, "u1", "u2", "second", "client")
	require.NoError(t, err)

	// Push keys are generated in order, so the tie-break is deterministic.
	require.Less(t, first.MessageID, second.MessageID)

	msgs, err := svc.Messages(ctx, "u1_u2")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.MessageID, msgs[0].ID)
	assert.Equal(t, second.MessageID, msgs[1].ID)
}

func TestMessages_EmptyRoom(t *testing.T) {
	svc, _, _ := newTestService(t)

	msgs, err := svc.Messages(context.Background(), "u1_u2")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestEditMessage(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.SendMessage(ctx, "u1", "u2", "typo", "client")
	require.NoError(t, err)

	require.NoError(t, svc.EditMessage(ctx, res.RoomKey, res.MessageID, "fixed"))

	msgs, err := svc.Messages(ctx, res.RoomKey)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	m := msgs[0]
	assert.Equal(t, res.MessageID, m.ID)
	assert.Equal(t, "u1", m.SenderID)
	assert.Equal(t, int64(1001), m.Timestamp, "edit must preserve the original timestamp")
	assert.Equal(t, "fixed", m.Content)
	assert.True(t, m.IsEdited)
	assert.Equal(t, int64(1002), m.EditedAt)
}

func TestEditMessage_Missing(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.EditMessage(context.Background(), "u1_u2", "no-such-id", "x")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestDeleteMessage_Idempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.SendMessage(ctx, "u1", "u2", "gone soon", "client")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMessage(ctx, res.RoomKey, res.MessageID))
	msgs, err := svc.Messages(ctx, res.RoomKey)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	// Second delete of the same message is a no-op, not an error.
	require.NoError(t, svc.DeleteMessage(ctx, res.RoomKey, res.MessageID))
}

func TestMarkRead_FlipsIsRead(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.SendMessage(ctx, "u1", "u2", "unread for u2", "client")
	require.NoError(t, err)

	room, err := svc.Room(ctx, res.RoomKey)
	require.NoError(t, err)
	assert.True(t, room.IsRead("u1"), "sender reads their own message")
	assert.False(t, room.IsRead("u2"))

	require.NoError(t, svc.MarkRead(ctx, res.RoomKey, "u2"))
	room, err = svc.Room(ctx, res.RoomKey)
	require.NoError(t, err)
	assert.True(t, room.IsRead("u2"))

	// A further message makes it unread again.
	_, err = svc.SendMessage(ctx, "u1", "u2", "another", "client")
	require.NoError(t, err)
	room, err = svc.Room(ctx, res.RoomKey)
	require.NoError(t, err)
	assert.False(t, room.IsRead("u2"))
}

func TestRooms_EmptyDirectory(t *testing.T) {
	svc, _, _ := newTestService(t)

	rooms, err := svc.Rooms(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestRooms_ListsAllConversations(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, "u1", "u2", "hi", "client")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, "u1", "u3", "hi", "client")
	require.NoError(t, err)

	rooms, err := svc.Rooms(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1_u2", "u1_u3"}, rooms)
}

func TestRoom_Missing(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Room(context.Background(), "u8_u9")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoom_Other(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.SendMessage(ctx, "u1", "u2", "hi", "client")
	require.NoError(t, err)

	room, err := svc.Room(ctx, res.RoomKey)
	require.NoError(t, err)

	other, ok := room.Other("u1")
	require.True(t, ok)
	assert.Equal(t, "u2", other)
}

func TestMessages_SkipsMalformedNode(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, "u1", "u2", "good", "client")
	require.NoError(t, err)

	// A node missing required fields must not poison the listing.
	require.NoError(t, store.Apply(ctx, rtdb.Update{
		"messages/u1_u2/zzz-broken/content": "orphan",
	}))

	msgs, err := svc.Messages(ctx, "u1_u2")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "good", msgs[0].Content)
}
