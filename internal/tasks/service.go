// Package tasks owns the shared task list of a room. Every successful write is
// published to the room as a row change event.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"studyroom-backend/internal/model"
	"studyroom-backend/internal/protocol"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrInvalidTitle = errors.New("task title must be 1-200 characters")
)

// Feed publishes change events to a room
type Feed interface {
	Emit(ctx context.Context, roomID, eventType string, payload interface{}) error
}

// Service task rules plus change feed
type Service struct {
	repo Repository
	feed Feed
	now  func() time.Time
}

func NewService(repo Repository, feed Feed) *Service {
	return &Service{repo: repo, feed: feed, now: time.Now}
}

// NormalizeTitle trims and validates
func NormalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > model.MaxTaskTitleLength {
		return "", ErrInvalidTitle
	}
	return title, nil
}

// List all tasks of the room, oldest first
func (s *Service) List(ctx context.Context, roomID string) ([]model.Task, error) {
	return s.repo.ListByRoom(ctx, roomID)
}

// Create inserts and announces a task
func (s *Service) Create(ctx context.Context, roomID string, creatorID int64, title string) (*model.Task, error) {
	title, err := NormalizeTitle(title)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	task := &model.Task{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		CreatorID: creatorID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.publish(ctx, roomID, protocol.TypeTaskInsert, task)
	return task, nil
}

// SetCompleted writes an explicit completion state
func (s *Service) SetCompleted(ctx context.Context, roomID, id string, completed bool) (*model.Task, error) {
	task, err := s.repo.UpdateCompleted(ctx, roomID, id, completed)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, roomID, protocol.TypeTaskUpdate, task)
	return task, nil
}

// Toggle flips completion based on the stored row
func (s *Service) Toggle(ctx context.Context, roomID, id string) (*model.Task, error) {
	current, err := s.repo.Get(ctx, roomID, id)
	if err != nil {
		return nil, err
	}
	return s.SetCompleted(ctx, roomID, id, !current.Completed)
}

// Delete removes a task. Any member may delete any task.
func (s *Service) Delete(ctx context.Context, roomID, id string) error {
	if err := s.repo.Delete(ctx, roomID, id); err != nil {
		return err
	}

	s.publish(ctx, roomID, protocol.TypeTaskDeleted, protocol.TaskDeleted{ID: id})
	return nil
}

// publish failures leave the write in place; clients resync on their next fetch
func (s *Service) publish(ctx context.Context, roomID, typ string, payload interface{}) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Emit(ctx, roomID, typ, payload); err != nil {
		log.Warn().Err(err).Str("room", roomID).Str("event", typ).Msg("task change not published")
	}
}
