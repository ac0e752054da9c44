package roomclient

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"studyroom-backend/internal/model"
)

const emoteLifetime = 3 * time.Second

var ErrEmptyMessage = errors.New("message is empty")

// ActiveEmote an emoji floating over the room. X is a fraction of the width in [0.05, 0.95).
type ActiveEmote struct {
	ID       string
	Emoji    string
	SenderID int64
	X        float64
}

// Broadcaster ephemeral chat and emotes. Nothing is persisted.
type Broadcaster struct {
	ch       BroadcastChannel
	self     model.Member
	maxLen   int
	lifetime time.Duration
	rand     func() float64
	now      func() time.Time

	mu       sync.Mutex
	messages []model.ChatMessage
	seen     map[string]struct{}
	emotes   []ActiveEmote
	timers   map[string]*time.Timer
	onChat   []func(model.ChatMessage)
	closed   bool
	unsubs   []func()
}

func NewBroadcaster(ch BroadcastChannel, self model.Member, maxLen int) *Broadcaster {
	if maxLen <= 0 {
		maxLen = model.DefaultChatMaxLength
	}
	b := &Broadcaster{
		ch:       ch,
		self:     self,
		maxLen:   maxLen,
		lifetime: emoteLifetime,
		rand:     rand.Float64,
		now:      time.Now,
		seen:     make(map[string]struct{}),
		timers:   make(map[string]*time.Timer),
	}
	b.unsubs = append(b.unsubs, ch.OnChat(b.receiveChat), ch.OnEmote(b.receiveEmote))
	return b
}

// SendChat shows the message locally, then broadcasts it. Delivery is best effort.
func (b *Broadcaster) SendChat(ctx context.Context, text string) (model.ChatMessage, error) {
	text = model.ClampText(text, b.maxLen)
	if text == "" {
		return model.ChatMessage{}, ErrEmptyMessage
	}

	msg := model.ChatMessage{
		ID:         uuid.NewString(),
		SenderID:   b.self.UserID,
		SenderName: b.self.DisplayName,
		Text:       text,
		SentAt:     b.now().UTC(),
	}

	b.mu.Lock()
	b.messages = append(b.messages, msg)
	b.seen[msg.ID] = struct{}{}
	b.mu.Unlock()

	if err := b.ch.SendChat(ctx, msg); err != nil {
		log.Debug().Err(err).Msg("chat send failed")
	}
	return msg, nil
}

// OnChatReceived fn fires for messages from other members only
func (b *Broadcaster) OnChatReceived(fn func(model.ChatMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChat = append(b.onChat, fn)
}

// SendEmote floats an emoji locally and broadcasts it
func (b *Broadcaster) SendEmote(ctx context.Context, emoji string) (ActiveEmote, error) {
	emoji = model.ClampText(emoji, model.MaxEmojiLength)
	if emoji == "" {
		return ActiveEmote{}, ErrEmptyMessage
	}

	ev := model.EmoteEvent{ID: uuid.NewString(), Emoji: emoji, SenderID: b.self.UserID}
	active := b.show(ev)

	if err := b.ch.SendEmote(ctx, ev); err != nil {
		log.Debug().Err(err).Msg("emote send failed")
	}
	return active, nil
}

// Messages chat history of this session
func (b *Broadcaster) Messages() []model.ChatMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.ChatMessage, len(b.messages))
	copy(out, b.messages)
	return out
}

// ActiveEmotes emotes still on screen
func (b *Broadcaster) ActiveEmotes() []ActiveEmote {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ActiveEmote, len(b.emotes))
	copy(out, b.emotes)
	return out
}

// Close stops listening and cancels pending emote timers
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
	b.emotes = nil
	unsubs := b.unsubs
	b.unsubs = nil
	b.mu.Unlock()

	for _, off := range unsubs {
		off()
	}
}

func (b *Broadcaster) receiveChat(msg model.ChatMessage) {
	b.mu.Lock()
	if _, dup := b.seen[msg.ID]; dup && msg.SenderID == b.self.UserID {
		b.mu.Unlock()
		return
	}
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.seen[msg.ID] = struct{}{}
	b.messages = append(b.messages, msg)
	fns := make([]func(model.ChatMessage), len(b.onChat))
	copy(fns, b.onChat)
	b.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
}

func (b *Broadcaster) receiveEmote(ev model.EmoteEvent) {
	b.show(ev)
}

// show adds an active emote with its own removal timer. Each receipt gets a fresh entry.
func (b *Broadcaster) show(ev model.EmoteEvent) ActiveEmote {
	active := ActiveEmote{
		ID:       uuid.NewString(),
		Emoji:    ev.Emoji,
		SenderID: ev.SenderID,
		X:        0.05 + b.rand()*0.9,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return active
	}
	b.emotes = append(b.emotes, active)
	b.timers[active.ID] = time.AfterFunc(b.lifetime, func() { b.expire(active.ID) })
	return active
}

func (b *Broadcaster) expire(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.timers, id)
	for i := range b.emotes {
		if b.emotes[i].ID == id {
			b.emotes = append(b.emotes[:i], b.emotes[i+1:]...)
			return
		}
	}
}
