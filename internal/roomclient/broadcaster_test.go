package roomclient

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyroom-backend/internal/model"
)

var alice = model.Member{UserID: 7, DisplayName: "alice"}

func TestBroadcasterSendChat(t *testing.T) {
	ch := &fakeBroadcast{}
	b := NewBroadcaster(ch, alice, 10)
	defer b.Close()

	msg, err := b.SendChat(context.Background(), "  hello world, this is long  ")
	require.NoError(t, err)
	assert.Equal(t, "hello worl", msg.Text)
	assert.Equal(t, "alice", msg.SenderName)
	require.Len(t, ch.chats, 1)
	assert.Equal(t, msg, ch.chats[0])

	_, err = b.SendChat(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Len(t, ch.chats, 1)
}

func TestBroadcasterSendFailureKeepsLocalCopy(t *testing.T) {
	ch := &fakeBroadcast{fail: errOffline}
	b := NewBroadcaster(ch, alice, 0)
	defer b.Close()

	_, err := b.SendChat(context.Background(), "hi")
	require.NoError(t, err)
	assert.Len(t, b.Messages(), 1)
}

func TestBroadcasterReceive(t *testing.T) {
	ch := &fakeBroadcast{}
	b := NewBroadcaster(ch, alice, 0)
	defer b.Close()

	var heard []string
	b.OnChatReceived(func(m model.ChatMessage) { heard = append(heard, m.Text) })

	mine, err := b.SendChat(context.Background(), "mine")
	require.NoError(t, err)
	ch.onChat(mine)
	ch.onChat(model.ChatMessage{ID: "m-2", SenderID: 8, SenderName: "bob", Text: "theirs"})

	assert.Equal(t, []string{"theirs"}, heard)
	assert.Len(t, b.Messages(), 2)
}

func TestBroadcasterEmotes(t *testing.T) {
	ch := &fakeBroadcast{}
	b := NewBroadcaster(ch, alice, 0)
	defer b.Close()
	b.lifetime = 20 * time.Millisecond
	b.rand = func() float64 { return 0.999 }

	active, err := b.SendEmote(context.Background(), "🎉")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, active.X, 0.05)
	assert.Less(t, active.X, 0.95)
	require.Len(t, ch.emotes, 1)

	ch.onEmo(model.EmoteEvent{ID: "e-2", Emoji: "👍", SenderID: 8})
	ch.onEmo(model.EmoteEvent{ID: "e-2", Emoji: "👍", SenderID: 8})
	assert.Len(t, b.ActiveEmotes(), 3, "every receipt floats its own emoji")

	assert.Eventually(t, func() bool {
		return len(b.ActiveEmotes()) == 0
	}, time.Second, 5*time.Millisecond)

	_, err = b.SendEmote(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, err = b.SendEmote(context.Background(), strings.Repeat("a", 40))
	require.NoError(t, err)
	assert.Len(t, ch.emotes[len(ch.emotes)-1].Emoji, model.MaxEmojiLength)
}

func TestBroadcasterClose(t *testing.T) {
	ch := &fakeBroadcast{}
	b := NewBroadcaster(ch, alice, 0)

	_, err := b.SendEmote(context.Background(), "🔥")
	require.NoError(t, err)
	b.Close()
	b.Close()

	assert.Empty(t, b.ActiveEmotes())
	assert.Nil(t, ch.onChat)
	assert.Nil(t, ch.onEmo)
}
