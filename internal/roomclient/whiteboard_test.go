package roomclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyroom-backend/internal/model"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func draw(id string, sender int64, at time.Duration) model.Stroke {
	return model.Stroke{
		ID: id, SenderID: sender, Type: model.StrokeDraw,
		X1: 10, Y1: 10, Color: "#000000", Width: 2,
		CreatedAt: t0.Add(at),
	}
}

func clearAt(id string, at time.Duration) model.Stroke {
	return model.Stroke{ID: id, Type: model.StrokeClear, CreatedAt: t0.Add(at)}
}

func ids(strokes []model.Stroke) []string {
	out := make([]string, 0, len(strokes))
	for _, s := range strokes {
		out = append(out, s.ID)
	}
	return out
}

func TestWhiteboardContinueWhileIdle(t *testing.T) {
	strokes := newFakeStrokes()
	canvas := NewDisplayList()
	w := NewWhiteboard(strokes, canvas, 7)

	require.NoError(t, w.ContinueStroke(context.Background(), Point{X: 5, Y: 5}))
	assert.Empty(t, canvas.Segments())
	assert.Zero(t, strokes.appends)
}

func TestWhiteboardDrawSegments(t *testing.T) {
	strokes := newFakeStrokes()
	canvas := NewDisplayList()
	w := NewWhiteboard(strokes, canvas, 7)
	ctx := context.Background()

	w.SetPen("#ff0000", 4)
	w.StartStroke(Point{X: 0, Y: 0})
	assert.True(t, w.Drawing())
	require.NoError(t, w.ContinueStroke(ctx, Point{X: 1, Y: 1}))
	require.NoError(t, w.ContinueStroke(ctx, Point{X: 2, Y: 3}))
	w.EndStroke()
	assert.False(t, w.Drawing())

	segs := canvas.Segments()
	require.Len(t, segs, 2)
	assert.Equal(t, Point{X: 1, Y: 1}, Point{X: segs[1].X0, Y: segs[1].Y0}, "segments chain")
	assert.Equal(t, "#ff0000", segs[0].Color)
	assert.Equal(t, float64(4), segs[0].Width)
	assert.Len(t, strokes.log, 2)

	w.SetEraser()
	assert.Equal(t, ToolEraser, w.Tool())
	w.StartStroke(Point{X: 2, Y: 3})
	require.NoError(t, w.ContinueStroke(ctx, Point{X: 4, Y: 4}))
	erased := canvas.Segments()[2]
	assert.Equal(t, BackgroundColor, erased.Color)
	assert.Equal(t, float64(EraserWidth), erased.Width)
}

func TestWhiteboardAppendFailureIsNotRetried(t *testing.T) {
	strokes := newFakeStrokes()
	strokes.fail = errOffline
	canvas := NewDisplayList()
	w := NewWhiteboard(strokes, canvas, 7)

	w.StartStroke(Point{})
	err := w.ContinueStroke(context.Background(), Point{X: 1, Y: 1})
	require.ErrorIs(t, err, errOffline)
	assert.Equal(t, 1, strokes.appends)
	assert.Len(t, canvas.Segments(), 1, "local segment stays")
}

func TestWhiteboardApplyBatchAfterLastClear(t *testing.T) {
	canvas := NewDisplayList()
	w := NewWhiteboard(newFakeStrokes(), canvas, 7)

	w.ApplyBatch([]model.Stroke{
		draw("d4", 8, 4*time.Second),
		draw("d1", 8, time.Second),
		clearAt("c1", 2*time.Second),
		draw("d2", 8, 3*time.Second),
		clearAt("c2", 3500*time.Millisecond),
	})

	assert.Equal(t, []string{"d4"}, ids(canvas.Segments()))
	assert.Equal(t, t0.Add(3500*time.Millisecond), w.ClearedAt())
}

func TestWhiteboardClearDominatesInAnyOrder(t *testing.T) {
	orders := map[string][]model.Stroke{
		"clear first": {clearAt("c", 2*time.Second), draw("old", 8, time.Second), draw("new", 8, 3*time.Second)},
		"clear last":  {draw("old", 8, time.Second), draw("new", 8, 3*time.Second), clearAt("c", 2*time.Second)},
		"clear mid":   {draw("new", 8, 3*time.Second), clearAt("c", 2*time.Second), draw("old", 8, time.Second)},
	}

	for name, events := range orders {
		t.Run(name, func(t *testing.T) {
			strokes := newFakeStrokes()
			canvas := NewDisplayList()
			w := NewWhiteboard(strokes, canvas, 7)
			require.NoError(t, w.SubscribeRecent(context.Background()))

			for _, ev := range events {
				strokes.push(ev)
			}
			assert.Equal(t, []string{"new"}, ids(canvas.Segments()))
		})
	}
}

func TestWhiteboardLive(t *testing.T) {
	strokes := newFakeStrokes()
	canvas := NewDisplayList()
	w := NewWhiteboard(strokes, canvas, 7)
	ctx := context.Background()

	require.NoError(t, w.SubscribeRecent(ctx))
	assert.True(t, strokes.opened)

	strokes.push(draw("mine", 7, time.Second))
	strokes.push(draw("theirs", 8, time.Second))
	strokes.push(draw("theirs", 8, time.Second))
	assert.Equal(t, []string{"theirs"}, ids(canvas.Segments()))

	require.NoError(t, w.Close(ctx))
	assert.False(t, strokes.opened)
	strokes.push(draw("late", 8, 2*time.Second))
	assert.Equal(t, []string{"theirs"}, ids(canvas.Segments()))
}

func TestWhiteboardClearBoard(t *testing.T) {
	strokes := newFakeStrokes()
	canvas := NewDisplayList()
	w := NewWhiteboard(strokes, canvas, 7)
	ctx := context.Background()
	require.NoError(t, w.SubscribeRecent(ctx))

	w.StartStroke(Point{})
	require.NoError(t, w.ContinueStroke(ctx, Point{X: 1, Y: 1}))
	require.NoError(t, w.ClearBoard(ctx))
	assert.Empty(t, canvas.Segments())
	assert.False(t, w.ClearedAt().IsZero())

	require.NoError(t, w.ContinueStroke(ctx, Point{X: 2, Y: 2}))
	assert.Len(t, canvas.Segments(), 1)

	// a fresh viewer replays only what came after the clear
	replay := NewDisplayList()
	viewer := NewWhiteboard(strokes, replay, 8)
	require.NoError(t, viewer.SubscribeRecent(ctx))
	assert.Len(t, replay.Segments(), 1)
}

func TestToolbarDragStaysInBounds(t *testing.T) {
	bar := Toolbar{Width: 40, Height: 200, Bounds: Rect{W: 800, H: 600}}

	assert.Equal(t, Point{X: 100, Y: 50}, bar.DragTo(Point{X: 100, Y: 50}))
	assert.Equal(t, Point{X: 0, Y: 0}, bar.DragTo(Point{X: -30, Y: -10}))
	assert.Equal(t, Point{X: 760, Y: 400}, bar.DragTo(Point{X: 900, Y: 900}))
	assert.Equal(t, Point{X: 760, Y: 400}, bar.Pos)

	tiny := Toolbar{Width: 100, Height: 100, Bounds: Rect{X: 10, Y: 10, W: 50, H: 50}}
	assert.Equal(t, Point{X: 10, Y: 10}, tiny.DragTo(Point{X: 30, Y: 30}))
}
