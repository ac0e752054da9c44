package channel

import (
	"context"
	"encoding/json"
	"sync"
)

// Scope selects which subscribers of a group receive an event
type Scope string

const (
	ScopeAll        Scope = "all"
	ScopeWhiteboard Scope = "whiteboard"
)

// Event one broadcast, already encoded as a socket frame
type Event struct {
	RoomID string          `json:"room_id"`
	Origin string          `json:"origin,omitempty"` // connection that caused it; never delivered back
	Scope  Scope           `json:"scope,omitempty"`
	Frame  json.RawMessage `json:"frame"`
}

// Relay carries events to every server instance, this one included
type Relay interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe registers the delivery callback. It returns once events will be delivered.
	Subscribe(ctx context.Context, deliver func(Event)) error
	Close() error
}

// LocalRelay in-process relay for a single instance
type LocalRelay struct {
	mu      sync.RWMutex
	deliver func(Event)
}

func NewLocalRelay() *LocalRelay {
	return &LocalRelay{}
}

func (r *LocalRelay) Publish(_ context.Context, ev Event) error {
	r.mu.RLock()
	deliver := r.deliver
	r.mu.RUnlock()

	if deliver != nil {
		deliver(ev)
	}
	return nil
}

func (r *LocalRelay) Subscribe(_ context.Context, deliver func(Event)) error {
	r.mu.Lock()
	r.deliver = deliver
	r.mu.Unlock()
	return nil
}

func (r *LocalRelay) Close() error {
	r.mu.Lock()
	r.deliver = nil
	r.mu.Unlock()
	return nil
}
