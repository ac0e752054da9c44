package roomclient

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"studyroom-backend/internal/model"
)

const (
	BackgroundColor = "#ffffff"
	EraserWidth     = 24

	DefaultPenColor = "#1f2937"
	DefaultPenWidth = 3
)

// Tool pen or eraser
type Tool int

const (
	ToolPen Tool = iota
	ToolEraser
)

// Whiteboard local drawing plus the room's shared log.
// Idle -> Drawing on StartStroke, back to Idle on EndStroke.
type Whiteboard struct {
	log    StrokeLog
	canvas Canvas
	self   int64

	mu        sync.Mutex
	drawing   bool
	last      Point
	tool      Tool
	color     string
	width     float64
	clearedAt time.Time
	seen      map[string]struct{}
	painted   []model.Stroke
	unsub     func()
}

func NewWhiteboard(l StrokeLog, canvas Canvas, selfID int64) *Whiteboard {
	return &Whiteboard{
		log:    l,
		canvas: canvas,
		self:   selfID,
		tool:   ToolPen,
		color:  DefaultPenColor,
		width:  DefaultPenWidth,
		seen:   make(map[string]struct{}),
	}
}

// SetPen switches to the pen with the given style
func (w *Whiteboard) SetPen(color string, width float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tool = ToolPen
	w.color = color
	w.width = width
}

// SetEraser paints in the background color
func (w *Whiteboard) SetEraser() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tool = ToolEraser
}

// Tool active tool
func (w *Whiteboard) Tool() Tool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tool
}

// Drawing whether a stroke is in progress
func (w *Whiteboard) Drawing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.drawing
}

func (w *Whiteboard) styleLocked() (string, float64) {
	if w.tool == ToolEraser {
		return BackgroundColor, EraserWidth
	}
	return w.color, w.width
}

// StartStroke begins a stroke at p
func (w *Whiteboard) StartStroke(p Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.drawing = true
	w.last = p
}

// ContinueStroke draws from the last point to p and sends the segment. No-op when idle.
// A failed send is not retried; the local canvas keeps the segment.
func (w *Whiteboard) ContinueStroke(ctx context.Context, p Point) error {
	w.mu.Lock()
	if !w.drawing {
		w.mu.Unlock()
		return nil
	}
	color, width := w.styleLocked()
	seg := model.Stroke{
		ID:       uuid.NewString(),
		SenderID: w.self,
		Type:     model.StrokeDraw,
		X0:       w.last.X,
		Y0:       w.last.Y,
		X1:       p.X,
		Y1:       p.Y,
		Color:    color,
		Width:    width,
	}
	w.last = p
	w.seen[seg.ID] = struct{}{}
	w.painted = append(w.painted, seg)
	w.mu.Unlock()

	w.canvas.DrawSegment(seg)

	stored, err := w.log.Append(ctx, seg)
	if err != nil {
		log.Debug().Err(err).Msg("stroke not persisted")
		return fmt.Errorf("send segment: %w", err)
	}

	w.mu.Lock()
	for i := range w.painted {
		if w.painted[i].ID == stored.ID {
			w.painted[i].CreatedAt = stored.CreatedAt
			break
		}
	}
	w.mu.Unlock()
	return nil
}

// EndStroke back to idle
func (w *Whiteboard) EndStroke() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.drawing = false
}

// ClearBoard wipes the canvas and records a clear for everyone
func (w *Whiteboard) ClearBoard(ctx context.Context) error {
	w.mu.Lock()
	w.painted = nil
	w.mu.Unlock()
	w.canvas.Clear()

	stored, err := w.log.Clear(ctx, uuid.NewString())
	if err != nil {
		return fmt.Errorf("clear board: %w", err)
	}
	w.mu.Lock()
	w.seen[stored.ID] = struct{}{}
	w.mu.Unlock()
	w.applyClear(stored.CreatedAt)
	return nil
}

// SubscribeRecent opts into live strokes, then replays the recent window
func (w *Whiteboard) SubscribeRecent(ctx context.Context) error {
	w.mu.Lock()
	if w.unsub == nil {
		w.unsub = w.log.Subscribe(w.receive)
	}
	w.mu.Unlock()

	if err := w.log.Open(ctx); err != nil {
		return fmt.Errorf("open whiteboard: %w", err)
	}

	batch, err := w.log.Recent(ctx)
	if err != nil {
		return fmt.Errorf("recent strokes: %w", err)
	}
	w.ApplyBatch(batch)
	return nil
}

// ApplyBatch replays records in time order. Only draws after the batch's last clear are painted.
func (w *Whiteboard) ApplyBatch(batch []model.Stroke) {
	sorted := append([]model.Stroke(nil), batch...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	start := 0
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].IsClear() {
			w.applyClear(sorted[i].CreatedAt)
			start = i + 1
			break
		}
	}
	for _, s := range sorted[start:] {
		if !s.IsClear() {
			w.applyDraw(s)
		}
	}
}

// Close detaches from live strokes. Presence, chat and tasks keep running.
func (w *Whiteboard) Close(ctx context.Context) error {
	w.mu.Lock()
	unsub := w.unsub
	w.unsub = nil
	w.drawing = false
	w.mu.Unlock()

	if unsub == nil {
		return nil
	}
	unsub()
	return w.log.Close(ctx)
}

func (w *Whiteboard) receive(s model.Stroke) {
	if s.IsClear() {
		w.applyClear(s.CreatedAt)
		return
	}
	if s.SenderID == w.self {
		return
	}
	w.applyDraw(s)
}

// applyDraw paints s unless it was already painted or a newer clear dominates it
func (w *Whiteboard) applyDraw(s model.Stroke) {
	w.mu.Lock()
	if _, ok := w.seen[s.ID]; ok {
		w.mu.Unlock()
		return
	}
	if !s.CreatedAt.After(w.clearedAt) {
		w.mu.Unlock()
		return
	}
	w.seen[s.ID] = struct{}{}
	w.painted = append(w.painted, s)
	w.mu.Unlock()

	w.canvas.DrawSegment(s)
}

// applyClear wipes everything at or before at and repaints what came after it
func (w *Whiteboard) applyClear(at time.Time) {
	w.mu.Lock()
	if !at.After(w.clearedAt) {
		w.mu.Unlock()
		return
	}
	w.clearedAt = at
	keep := w.painted[:0]
	for _, s := range w.painted {
		// unstamped segments are local ones still in flight, drawn after any clear we know of
		if s.CreatedAt.IsZero() || s.CreatedAt.After(at) {
			keep = append(keep, s)
		}
	}
	w.painted = keep
	repaint := append([]model.Stroke(nil), keep...)
	w.mu.Unlock()

	w.canvas.Clear()
	for _, s := range repaint {
		w.canvas.DrawSegment(s)
	}
}

// ClearedAt time of the latest clear applied
func (w *Whiteboard) ClearedAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.clearedAt
}
