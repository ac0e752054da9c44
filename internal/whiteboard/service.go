package whiteboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"studyroom-backend/internal/model"
	"studyroom-backend/internal/protocol"
)

const (
	MinWidth = 1
	MaxWidth = 64
)

// stampIdle rooms without a stamp for this long are forgotten; a later
// wall-clock stamp already sorts after anything they issued
const stampIdle = time.Minute

var ErrInvalidStroke = errors.New("invalid stroke")

// Feed relays strokes to whiteboard subscribers, skipping the origin connection
type Feed interface {
	EmitWhiteboard(ctx context.Context, roomID, origin, eventType string, payload interface{}) error
}

// Options replay window
type Options struct {
	Window      time.Duration
	ReplayLimit int
}

// Service validates, stamps, stores and relays segments
type Service struct {
	log      StrokeLog
	feed     Feed
	opts     Options
	validate *validator.Validate
	now      func() time.Time

	mu    sync.Mutex
	stamp map[string]time.Time
	swept time.Time
}

func NewService(l StrokeLog, feed Feed, opts Options) *Service {
	if opts.Window <= 0 {
		opts.Window = 30 * time.Minute
	}
	if opts.ReplayLimit <= 0 {
		opts.ReplayLimit = 1000
	}
	return &Service{
		log:      l,
		feed:     feed,
		opts:     opts,
		validate: validator.New(),
		now:      time.Now,
		stamp:    make(map[string]time.Time),
	}
}

type segmentStyle struct {
	Color string  `validate:"required,hexcolor,len=7"`
	Width float64 `validate:"gte=1,lte=64"`
}

// Validate checks a draw segment
func (s *Service) Validate(in *model.Stroke) error {
	for _, v := range []float64{in.X0, in.Y0, in.X1, in.Y1} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: coordinates must be finite", ErrInvalidStroke)
		}
	}
	if err := s.validate.Struct(segmentStyle{Color: in.Color, Width: in.Width}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStroke, err)
	}
	return nil
}

// nextStamp server time, strictly increasing per room
func (s *Service) nextStamp(roomID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if now.Sub(s.swept) >= stampIdle {
		for id, last := range s.stamp {
			if now.Sub(last) >= stampIdle {
				delete(s.stamp, id)
			}
		}
		s.swept = now
	}

	t := now.Truncate(time.Millisecond)
	if last, ok := s.stamp[roomID]; ok && !t.After(last) {
		t = last.Add(time.Millisecond)
	}
	s.stamp[roomID] = t
	return t
}

func strokeID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewString()
}

// Draw stores one segment and relays it to everyone else watching the board
func (s *Service) Draw(ctx context.Context, roomID string, senderID int64, origin string, in model.Stroke) (*model.Stroke, error) {
	if err := s.Validate(&in); err != nil {
		return nil, err
	}

	stroke := &model.Stroke{
		ID:        strokeID(in.ID),
		RoomID:    roomID,
		SenderID:  senderID,
		Type:      model.StrokeDraw,
		X0:        in.X0,
		Y0:        in.Y0,
		X1:        in.X1,
		Y1:        in.Y1,
		Color:     in.Color,
		Width:     in.Width,
		CreatedAt: s.nextStamp(roomID),
	}
	if err := s.log.Append(ctx, stroke); err != nil {
		return nil, fmt.Errorf("append stroke: %w", err)
	}

	s.relay(ctx, roomID, origin, stroke)
	return stroke, nil
}

// Clear appends a clear marker and drops the room's older records
func (s *Service) Clear(ctx context.Context, roomID string, senderID int64, origin, id string) (*model.Stroke, error) {
	stroke := &model.Stroke{
		ID:        strokeID(id),
		RoomID:    roomID,
		SenderID:  senderID,
		Type:      model.StrokeClear,
		CreatedAt: s.nextStamp(roomID),
	}
	if err := s.log.Append(ctx, stroke); err != nil {
		return nil, fmt.Errorf("append clear: %w", err)
	}

	if n, err := s.log.DeleteRoomBefore(ctx, roomID, stroke.CreatedAt); err != nil {
		log.Warn().Err(err).Str("room", roomID).Msg("failed to drop cleared strokes")
	} else if n > 0 {
		log.Debug().Str("room", roomID).Int64("deleted", n).Msg("dropped cleared strokes")
	}

	s.relay(ctx, roomID, origin, stroke)
	return stroke, nil
}

// Recent replay window for a room
func (s *Service) Recent(ctx context.Context, roomID string) ([]model.Stroke, error) {
	return s.log.Recent(ctx, roomID, s.now().UTC().Add(-s.opts.Window), s.opts.ReplayLimit)
}

// Prune drops records that fell out of the window
func (s *Service) Prune(ctx context.Context) (int64, error) {
	return s.log.Prune(ctx, s.now().UTC().Add(-s.opts.Window))
}

func (s *Service) relay(ctx context.Context, roomID, origin string, stroke *model.Stroke) {
	if s.feed == nil {
		return
	}
	if err := s.feed.EmitWhiteboard(ctx, roomID, origin, protocol.TypeStroke, stroke); err != nil {
		log.Warn().Err(err).Str("room", roomID).Msg("stroke not relayed")
	}
}
