// Package channel implements the realtime room group: presence plus broadcast events,
// fanned out through a Relay so several server instances can share a room.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"studyroom-backend/internal/presence"
	"studyroom-backend/internal/protocol"
)

// Subscriber one connected socket
type Subscriber interface {
	ID() string
	UserID() int64
	Nickname() string
	// Send queues a frame without blocking. False means the frame was dropped.
	Send(frame []byte) bool
}

// Options hub tuning
type Options struct {
	PresenceTTL     time.Duration
	JanitorInterval time.Duration
}

// Hub all groups with local subscribers on this instance
type Hub struct {
	groups map[string]*Group
	mu     sync.RWMutex
	relay  Relay
	store  presence.Store
	opts   Options
	now    func() time.Time
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub subscribes to the relay before returning
func NewHub(ctx context.Context, relay Relay, store presence.Store, opts Options) (*Hub, error) {
	if opts.PresenceTTL <= 0 {
		opts.PresenceTTL = 60 * time.Second
	}
	if opts.JanitorInterval <= 0 {
		opts.JanitorInterval = opts.PresenceTTL / 2
	}

	hctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		groups: make(map[string]*Group),
		relay:  relay,
		store:  store,
		opts:   opts,
		now:    time.Now,
		ctx:    hctx,
		cancel: cancel,
	}

	if err := relay.Subscribe(ctx, h.deliver); err != nil {
		cancel()
		return nil, err
	}
	return h, nil
}

// Join adds the subscriber to the room's group, creating the group if needed
func (h *Hub) Join(roomID string, sub Subscriber) *Group {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.groups[roomID]
	if !ok {
		g = newGroup(h, roomID)
		h.groups[roomID] = g
		go g.runJanitor()
		log.Debug().Str("room", roomID).Msg("group created")
	}
	g.add(sub)
	return g
}

// Leave removes the subscriber, untracking its presence. Empty groups are dropped.
func (h *Hub) Leave(ctx context.Context, roomID string, sub Subscriber) {
	h.mu.RLock()
	g, ok := h.groups[roomID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	if err := g.Untrack(ctx, sub); err != nil {
		log.Warn().Err(err).Str("room", roomID).Str("conn", sub.ID()).Msg("untrack on leave failed")
	}

	h.mu.Lock()
	g.remove(sub)
	if g.Size() == 0 {
		g.shutdown()
		delete(h.groups, roomID)
		log.Debug().Str("room", roomID).Msg("group removed")
	}
	h.mu.Unlock()
}

// Group returns the local group for a room, or nil
func (h *Hub) Group(roomID string) *Group {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.groups[roomID]
}

// GroupCount number of rooms with local subscribers
func (h *Hub) GroupCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups)
}

// Broadcast encodes a frame and publishes it to the room on every instance
func (h *Hub) Broadcast(ctx context.Context, roomID, origin string, scope Scope, typ string, payload interface{}) error {
	frame, err := protocol.Encode(typ, "", payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}
	return h.relay.Publish(ctx, Event{RoomID: roomID, Origin: origin, Scope: scope, Frame: json.RawMessage(frame)})
}

// Emit sends a room-wide event to everyone, the author included
func (h *Hub) Emit(ctx context.Context, roomID, typ string, payload interface{}) error {
	return h.Broadcast(ctx, roomID, "", ScopeAll, typ, payload)
}

// EmitWhiteboard sends to whiteboard subscribers except the origin connection
func (h *Hub) EmitWhiteboard(ctx context.Context, roomID, origin, typ string, payload interface{}) error {
	return h.Broadcast(ctx, roomID, origin, ScopeWhiteboard, typ, payload)
}

// Close stops every janitor and the relay
func (h *Hub) Close() error {
	h.cancel()

	h.mu.Lock()
	for id, g := range h.groups {
		g.shutdown()
		delete(h.groups, id)
	}
	h.mu.Unlock()

	return h.relay.Close()
}

func (h *Hub) deliver(ev Event) {
	h.mu.RLock()
	g, ok := h.groups[ev.RoomID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	g.deliver(ev)
}
