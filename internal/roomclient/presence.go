package roomclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"studyroom-backend/internal/model"
)

var ErrNotInRoom = errors.New("not in a room")

// Presence tracks this member in a room and mirrors everyone else's status
type Presence struct {
	ch  PresenceChannel
	now func() time.Time

	mu      sync.Mutex
	self    model.PresenceRecord
	joined  bool
	members []model.PresenceRecord
	onSync  []func([]model.PresenceRecord)
	unsub   func()
}

func NewPresence(ch PresenceChannel) *Presence {
	return &Presence{ch: ch, now: time.Now}
}

// Join subscribes to membership updates, then announces the member as idle
func (p *Presence) Join(ctx context.Context, roomID string, member model.Member) error {
	p.mu.Lock()
	if p.joined {
		p.mu.Unlock()
		return nil
	}
	p.unsub = p.ch.OnSync(p.applySync)
	p.self = model.PresenceRecord{
		RoomID:      roomID,
		UserID:      member.UserID,
		DisplayName: member.DisplayName,
		Status:      model.StatusIdle,
		LastSeen:    p.now(),
	}
	rec := p.self
	p.joined = true
	p.mu.Unlock()

	if err := p.ch.Track(ctx, rec); err != nil {
		p.mu.Lock()
		p.joined = false
		p.unsub()
		p.unsub = nil
		p.mu.Unlock()
		return fmt.Errorf("track presence: %w", err)
	}
	return nil
}

// UpdateStatus re-announces the full record with a new status
func (p *Presence) UpdateStatus(ctx context.Context, status model.PresenceStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}

	p.mu.Lock()
	if !p.joined {
		p.mu.Unlock()
		return ErrNotInRoom
	}
	prev := p.self
	p.self.Status = status
	p.self.LastSeen = p.now()
	rec := p.self
	p.mu.Unlock()

	if err := p.ch.Track(ctx, rec); err != nil {
		p.mu.Lock()
		p.self = prev
		p.mu.Unlock()
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// OnSync fn receives the complete membership list on every change
func (p *Presence) OnSync(fn func([]model.PresenceRecord)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onSync = append(p.onSync, fn)
}

// Members last synced membership
func (p *Presence) Members() []model.PresenceRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.PresenceRecord, len(p.members))
	copy(out, p.members)
	return out
}

// Self the record this client last announced
func (p *Presence) Self() model.PresenceRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.self
}

// Leave untracks and drops the subscription. Safe to call twice.
func (p *Presence) Leave(ctx context.Context) error {
	p.mu.Lock()
	if !p.joined {
		p.mu.Unlock()
		return nil
	}
	p.joined = false
	unsub := p.unsub
	p.unsub = nil
	p.members = nil
	p.mu.Unlock()

	err := p.ch.Untrack(ctx)
	if unsub != nil {
		unsub()
	}
	return err
}

// RunHeartbeat pings until ctx ends so the server keeps the record alive
func (p *Presence) RunHeartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			joined := p.joined
			p.mu.Unlock()
			if !joined {
				continue
			}

			hctx, cancel := context.WithTimeout(ctx, interval)
			if err := p.ch.Heartbeat(hctx); err != nil {
				log.Debug().Err(err).Msg("presence heartbeat failed")
			}
			cancel()
		}
	}
}

func (p *Presence) applySync(recs []model.PresenceRecord) {
	p.mu.Lock()
	p.members = recs
	fns := make([]func([]model.PresenceRecord), len(p.onSync))
	copy(fns, p.onSync)
	p.mu.Unlock()

	for _, fn := range fns {
		fn(recs)
	}
}
