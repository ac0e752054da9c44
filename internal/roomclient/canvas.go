package roomclient

import (
	"sync"

	"studyroom-backend/internal/model"
)

// Canvas where segments end up. Implementations must be safe for concurrent use.
type Canvas interface {
	DrawSegment(s model.Stroke)
	Clear()
}

// DisplayList in-memory canvas for headless clients
type DisplayList struct {
	mu       sync.Mutex
	segments []model.Stroke
	clears   int
}

func NewDisplayList() *DisplayList {
	return &DisplayList{}
}

func (d *DisplayList) DrawSegment(s model.Stroke) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.segments = append(d.segments, s)
}

func (d *DisplayList) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.segments = nil
	d.clears++
}

// Segments painted since the last clear, in paint order
func (d *DisplayList) Segments() []model.Stroke {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.Stroke, len(d.segments))
	copy(out, d.segments)
	return out
}

// Clears number of times the canvas was wiped
func (d *DisplayList) Clears() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clears
}

// Point canvas coordinates
type Point struct {
	X, Y float64
}

// Rect origin plus size
type Rect struct {
	X, Y, W, H float64
}

// Toolbar the floating palette over the canvas
type Toolbar struct {
	Pos    Point
	Width  float64
	Height float64
	Bounds Rect
}

// DragTo moves the palette towards p, keeping it fully inside Bounds
func (t *Toolbar) DragTo(p Point) Point {
	t.Pos = Point{
		X: clamp(p.X, t.Bounds.X, t.Bounds.X+t.Bounds.W-t.Width),
		Y: clamp(p.Y, t.Bounds.Y, t.Bounds.Y+t.Bounds.H-t.Height),
	}
	return t.Pos
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
