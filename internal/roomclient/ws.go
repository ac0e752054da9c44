package roomclient

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"studyroom-backend/internal/model"
	"studyroom-backend/internal/protocol"
)

// socket adapters: each port implemented over one room Conn

type wsPresence struct{ conn *Conn }

func (p wsPresence) Track(ctx context.Context, rec model.PresenceRecord) error {
	return p.conn.Request(ctx, protocol.TypePresenceTrack, protocol.TrackRequest{Status: rec.Status.String()}, nil)
}

func (p wsPresence) Untrack(ctx context.Context) error {
	return p.conn.Request(ctx, protocol.TypePresenceUntrack, nil, nil)
}

func (p wsPresence) Heartbeat(ctx context.Context) error {
	return p.conn.Request(ctx, protocol.TypePing, nil, nil)
}

func (p wsPresence) OnSync(fn func([]model.PresenceRecord)) func() {
	return p.conn.On(protocol.TypePresenceSync, func(env protocol.Envelope) {
		var recs []model.PresenceRecord
		if err := env.Decode(&recs); err != nil {
			log.Debug().Err(err).Msg("bad presence.sync payload")
			return
		}
		fn(recs)
	})
}

type wsBroadcast struct{ conn *Conn }

func (b wsBroadcast) SendChat(ctx context.Context, msg model.ChatMessage) error {
	return b.conn.Push(ctx, protocol.TypeChatSend, msg)
}

func (b wsBroadcast) SendEmote(ctx context.Context, ev model.EmoteEvent) error {
	return b.conn.Push(ctx, protocol.TypeEmoteSend, ev)
}

func (b wsBroadcast) OnChat(fn func(model.ChatMessage)) func() {
	return b.conn.On(protocol.TypeChat, func(env protocol.Envelope) {
		var msg model.ChatMessage
		if err := env.Decode(&msg); err == nil {
			fn(msg)
		}
	})
}

func (b wsBroadcast) OnEmote(fn func(model.EmoteEvent)) func() {
	return b.conn.On(protocol.TypeEmote, func(env protocol.Envelope) {
		var ev model.EmoteEvent
		if err := env.Decode(&ev); err == nil {
			fn(ev)
		}
	})
}

type wsTasks struct{ conn *Conn }

func (t wsTasks) List(ctx context.Context) ([]model.Task, error) {
	var out []model.Task
	err := t.conn.Request(ctx, protocol.TypeTaskList, nil, &out)
	return out, err
}

func (t wsTasks) Insert(ctx context.Context, title string) (*model.Task, error) {
	var out model.Task
	if err := t.conn.Request(ctx, protocol.TypeTaskAdd, protocol.TaskAddRequest{Title: title}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t wsTasks) SetCompleted(ctx context.Context, id string, completed bool) (*model.Task, error) {
	var out model.Task
	req := protocol.TaskRefRequest{ID: id, Completed: &completed}
	if err := t.conn.Request(ctx, protocol.TypeTaskToggle, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t wsTasks) Delete(ctx context.Context, id string) error {
	err := t.conn.Request(ctx, protocol.TypeTaskDelete, protocol.TaskRefRequest{ID: id}, nil)
	var remote *RemoteError
	if errors.As(err, &remote) && remote.Message == ErrTaskNotFound.Error() {
		return ErrTaskNotFound
	}
	return err
}

func (t wsTasks) SubscribeChanges(fn func(TaskChange)) func() {
	row := func(typ TaskChangeType) func(protocol.Envelope) {
		return func(env protocol.Envelope) {
			var task model.Task
			if err := env.Decode(&task); err == nil {
				fn(TaskChange{Type: typ, Task: task, ID: task.ID})
			}
		}
	}
	offInsert := t.conn.On(protocol.TypeTaskInsert, row(TaskInserted))
	offUpdate := t.conn.On(protocol.TypeTaskUpdate, row(TaskUpdated))
	offDelete := t.conn.On(protocol.TypeTaskDeleted, func(env protocol.Envelope) {
		var del protocol.TaskDeleted
		if err := env.Decode(&del); err == nil {
			fn(TaskChange{Type: TaskDeleted, ID: del.ID})
		}
	})
	return func() {
		offInsert()
		offUpdate()
		offDelete()
	}
}

type wsStrokes struct{ conn *Conn }

func (s wsStrokes) Open(ctx context.Context) error {
	return s.conn.Request(ctx, protocol.TypeWhiteboardOpen, nil, nil)
}

func (s wsStrokes) Close(ctx context.Context) error {
	return s.conn.Request(ctx, protocol.TypeWhiteboardClose, nil, nil)
}

func (s wsStrokes) Append(ctx context.Context, seg model.Stroke) (*model.Stroke, error) {
	var out model.Stroke
	if err := s.conn.Request(ctx, protocol.TypeStrokeDraw, seg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s wsStrokes) Clear(ctx context.Context, id string) (*model.Stroke, error) {
	var out model.Stroke
	if err := s.conn.Request(ctx, protocol.TypeStrokeClear, model.Stroke{ID: id, Type: model.StrokeClear}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s wsStrokes) Recent(ctx context.Context) ([]model.Stroke, error) {
	var out []model.Stroke
	err := s.conn.Request(ctx, protocol.TypeStrokeRecent, nil, &out)
	return out, err
}

func (s wsStrokes) Subscribe(fn func(model.Stroke)) func() {
	return s.conn.On(protocol.TypeStroke, func(env protocol.Envelope) {
		var seg model.Stroke
		if err := env.Decode(&seg); err == nil {
			fn(seg)
		}
	})
}
