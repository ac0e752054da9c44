package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"studyroom-backend/internal/model"
	"studyroom-backend/internal/protocol"
)

var (
	ErrInvalidStatus = errors.New("invalid presence status")
	ErrNotInGroup    = errors.New("connection is not in the room")
)

type member struct {
	sub        Subscriber
	tracked    bool
	whiteboard bool
}

// Group local view of one room
type Group struct {
	RoomID  string
	hub     *Hub
	members map[string]*member
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func newGroup(h *Hub, roomID string) *Group {
	ctx, cancel := context.WithCancel(h.ctx)
	return &Group{
		RoomID:  roomID,
		hub:     h,
		members: make(map[string]*member),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (g *Group) add(sub Subscriber) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[sub.ID()] = &member{sub: sub}
}

func (g *Group) remove(sub Subscriber) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.members, sub.ID())
}

// Size number of local subscribers
func (g *Group) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

// Track announces the subscriber's presence and syncs everyone, the announcer included.
// Identity comes from the subscriber, never from the client payload.
func (g *Group) Track(ctx context.Context, sub Subscriber, status model.PresenceStatus) (model.PresenceRecord, error) {
	if !status.Valid() {
		return model.PresenceRecord{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	g.mu.Lock()
	m, ok := g.members[sub.ID()]
	if ok {
		m.tracked = true
	}
	g.mu.Unlock()
	if !ok {
		return model.PresenceRecord{}, fmt.Errorf("%w: %s", ErrNotInGroup, sub.ID())
	}

	rec := model.PresenceRecord{
		RoomID:      g.RoomID,
		UserID:      sub.UserID(),
		DisplayName: sub.Nickname(),
		Status:      status,
		LastSeen:    g.hub.now(),
	}
	if err := g.hub.store.Set(ctx, rec); err != nil {
		return model.PresenceRecord{}, fmt.Errorf("store presence: %w", err)
	}
	return rec, g.sync(ctx)
}

// Untrack withdraws the subscriber's presence. Another tab of the same user keeps the record alive.
func (g *Group) Untrack(ctx context.Context, sub Subscriber) error {
	g.mu.Lock()
	m, ok := g.members[sub.ID()]
	if !ok || !m.tracked {
		g.mu.Unlock()
		return nil
	}
	m.tracked = false
	for id, other := range g.members {
		if id != sub.ID() && other.tracked && other.sub.UserID() == sub.UserID() {
			g.mu.Unlock()
			return nil
		}
	}
	g.mu.Unlock()

	if err := g.hub.store.Remove(ctx, g.RoomID, sub.UserID()); err != nil {
		return fmt.Errorf("remove presence: %w", err)
	}
	return g.sync(ctx)
}

// Heartbeat refreshes the subscriber's last seen time
func (g *Group) Heartbeat(ctx context.Context, sub Subscriber) error {
	g.mu.RLock()
	m, ok := g.members[sub.ID()]
	tracked := ok && m.tracked
	g.mu.RUnlock()
	if !tracked {
		return nil
	}
	return g.hub.store.Touch(ctx, g.RoomID, sub.UserID(), g.hub.now())
}

// SetWhiteboard opts the subscriber in or out of live strokes
func (g *Group) SetWhiteboard(sub Subscriber, on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.members[sub.ID()]; ok {
		m.whiteboard = on
	}
}

// Members live presence list
func (g *Group) Members(ctx context.Context) ([]model.PresenceRecord, error) {
	return g.hub.store.List(ctx, g.RoomID)
}

func (g *Group) sync(ctx context.Context) error {
	recs, err := g.hub.store.List(ctx, g.RoomID)
	if err != nil {
		return fmt.Errorf("list presence: %w", err)
	}
	return g.hub.Emit(ctx, g.RoomID, protocol.TypePresenceSync, recs)
}

func (g *Group) deliver(ev Event) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for id, m := range g.members {
		if id == ev.Origin {
			continue
		}
		if ev.Scope == ScopeWhiteboard && !m.whiteboard {
			continue
		}
		if !m.sub.Send(ev.Frame) {
			log.Warn().Str("room", g.RoomID).Str("conn", id).Msg("send buffer full, dropping frame")
		}
	}
}

// runJanitor evicts members whose heartbeat stopped
func (g *Group) runJanitor() {
	ticker := time.NewTicker(g.hub.opts.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.ctx.Done():
			return
		case <-ticker.C:
			g.prune()
		}
	}
}

func (g *Group) prune() {
	ctx, cancel := context.WithTimeout(g.ctx, 5*time.Second)
	defer cancel()

	n, err := g.hub.store.Prune(ctx, g.RoomID, g.hub.now().Add(-g.hub.opts.PresenceTTL))
	if err != nil {
		log.Warn().Err(err).Str("room", g.RoomID).Msg("presence prune failed")
		return
	}
	if n == 0 {
		return
	}
	log.Info().Str("room", g.RoomID).Int("evicted", n).Msg("evicted stale members")
	if err := g.sync(ctx); err != nil {
		log.Warn().Err(err).Str("room", g.RoomID).Msg("presence sync failed")
	}
}

func (g *Group) shutdown() {
	g.cancel()
}
