// Package whiteboard keeps the time-windowed stroke log of each room and relays
// new segments to whiteboard subscribers.
package whiteboard

import (
	"context"
	"time"

	"studyroom-backend/internal/model"
)

// StrokeLog append-only segment storage with a sliding read window
type StrokeLog interface {
	Append(ctx context.Context, s *model.Stroke) error
	// Recent returns at most limit records newer than since, oldest first.
	// When more exist, the newest ones win.
	Recent(ctx context.Context, roomID string, since time.Time, limit int) ([]model.Stroke, error)
	// DeleteRoomBefore drops a room's records older than before
	DeleteRoomBefore(ctx context.Context, roomID string, before time.Time) (int64, error)
	// Prune drops every room's records older than before
	Prune(ctx context.Context, before time.Time) (int64, error)
}

func reverse(strokes []model.Stroke) {
	for i, j := 0, len(strokes)-1; i < j; i, j = i+1, j-1 {
		strokes[i], strokes[j] = strokes[j], strokes[i]
	}
}
