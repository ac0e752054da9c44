package roomclient

import (
	"context"

	"studyroom-backend/internal/model"
)

// PresenceChannel announces this member and reports the room's membership
type PresenceChannel interface {
	Track(ctx context.Context, rec model.PresenceRecord) error
	Untrack(ctx context.Context) error
	Heartbeat(ctx context.Context) error
	OnSync(fn func([]model.PresenceRecord)) (unsubscribe func())
}

// BroadcastChannel fire-and-forget room events. The server never echoes to the sender.
type BroadcastChannel interface {
	SendChat(ctx context.Context, msg model.ChatMessage) error
	SendEmote(ctx context.Context, ev model.EmoteEvent) error
	OnChat(fn func(model.ChatMessage)) (unsubscribe func())
	OnEmote(fn func(model.EmoteEvent)) (unsubscribe func())
}

// TaskChangeType row change kinds on the task feed
type TaskChangeType string

const (
	TaskInserted TaskChangeType = "insert"
	TaskUpdated  TaskChangeType = "update"
	TaskDeleted  TaskChangeType = "delete"
)

// TaskChange one event from the task feed. Task is zero for deletes.
type TaskChange struct {
	Type TaskChangeType
	Task model.Task
	ID   string
}

// TaskStore persistence and change feed for the room's tasks
type TaskStore interface {
	List(ctx context.Context) ([]model.Task, error)
	Insert(ctx context.Context, title string) (*model.Task, error)
	SetCompleted(ctx context.Context, id string, completed bool) (*model.Task, error)
	// Delete returns ErrTaskNotFound when the row is already gone
	Delete(ctx context.Context, id string) error
	SubscribeChanges(fn func(TaskChange)) (unsubscribe func())
}

// StrokeLog the room's whiteboard log plus its live feed
type StrokeLog interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Append(ctx context.Context, s model.Stroke) (*model.Stroke, error)
	Clear(ctx context.Context, id string) (*model.Stroke, error)
	Recent(ctx context.Context) ([]model.Stroke, error)
	Subscribe(fn func(model.Stroke)) (unsubscribe func())
}
