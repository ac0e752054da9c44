package roomclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"studyroom-backend/internal/model"
)

var errOffline = errors.New("offline")

type fakePresence struct {
	mu       sync.Mutex
	tracked  []model.PresenceRecord
	untracks int
	pings    int
	fail     error
	sync     func([]model.PresenceRecord)
}

func (f *fakePresence) Track(_ context.Context, rec model.PresenceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.tracked = append(f.tracked, rec)
	return nil
}

func (f *fakePresence) Untrack(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.untracks++
	return nil
}

func (f *fakePresence) Heartbeat(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return nil
}

func (f *fakePresence) OnSync(fn func([]model.PresenceRecord)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sync = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.sync = nil
	}
}

func (f *fakePresence) emit(recs []model.PresenceRecord) {
	f.mu.Lock()
	fn := f.sync
	f.mu.Unlock()
	if fn != nil {
		fn(recs)
	}
}

type fakeBroadcast struct {
	mu     sync.Mutex
	chats  []model.ChatMessage
	emotes []model.EmoteEvent
	fail   error
	onChat func(model.ChatMessage)
	onEmo  func(model.EmoteEvent)
}

func (f *fakeBroadcast) SendChat(_ context.Context, msg model.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, msg)
	return f.fail
}

func (f *fakeBroadcast) SendEmote(_ context.Context, ev model.EmoteEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emotes = append(f.emotes, ev)
	return f.fail
}

func (f *fakeBroadcast) OnChat(fn func(model.ChatMessage)) func() {
	f.onChat = fn
	return func() { f.onChat = nil }
}

func (f *fakeBroadcast) OnEmote(fn func(model.EmoteEvent)) func() {
	f.onEmo = fn
	return func() { f.onEmo = nil }
}

// fakeTasks in-memory store. hook runs inside Insert before it returns, to simulate the feed racing the reply.
// onDelete runs at the start of Delete, to simulate another member's delete landing first.
type fakeTasks struct {
	mu       sync.Mutex
	rows     []model.Task
	fail     error
	feed     func(TaskChange)
	hook     func(model.Task)
	onDelete func(id string)
	creator  int64
}

func (f *fakeTasks) List(context.Context) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	return append([]model.Task(nil), f.rows...), nil
}

func (f *fakeTasks) Insert(_ context.Context, title string) (*model.Task, error) {
	f.mu.Lock()
	if f.fail != nil {
		f.mu.Unlock()
		return nil, f.fail
	}
	task := model.Task{ID: uuid.NewString(), CreatorID: f.creator, Title: title, CreatedAt: time.Now().UTC()}
	f.rows = append(f.rows, task)
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook(task)
	}
	return &task, nil
}

func (f *fakeTasks) SetCompleted(_ context.Context, id string, completed bool) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].Completed = completed
			row := f.rows[i]
			return &row, nil
		}
	}
	return nil, ErrTaskNotFound
}

func (f *fakeTasks) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	onDelete := f.onDelete
	f.mu.Unlock()
	if onDelete != nil {
		onDelete(id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return ErrTaskNotFound
}

func (f *fakeTasks) SubscribeChanges(fn func(TaskChange)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feed = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.feed = nil
	}
}

func (f *fakeTasks) emit(ch TaskChange) {
	f.mu.Lock()
	fn := f.feed
	f.mu.Unlock()
	if fn != nil {
		fn(ch)
	}
}

type fakeStrokes struct {
	mu      sync.Mutex
	log     []model.Stroke
	appends int
	opened  bool
	fail    error
	live    func(model.Stroke)
	clock   time.Time
}

func newFakeStrokes() *fakeStrokes {
	return &fakeStrokes{clock: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeStrokes) stamp() time.Time {
	f.clock = f.clock.Add(time.Millisecond)
	return f.clock
}

func (f *fakeStrokes) Open(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = true
	return nil
}

func (f *fakeStrokes) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = false
	return nil
}

func (f *fakeStrokes) Append(_ context.Context, s model.Stroke) (*model.Stroke, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appends++
	if f.fail != nil {
		return nil, f.fail
	}
	s.CreatedAt = f.stamp()
	f.log = append(f.log, s)
	return &s, nil
}

func (f *fakeStrokes) Clear(_ context.Context, id string) (*model.Stroke, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	s := model.Stroke{ID: id, Type: model.StrokeClear, CreatedAt: f.stamp()}
	f.log = []model.Stroke{s}
	return &s, nil
}

func (f *fakeStrokes) Recent(context.Context) ([]model.Stroke, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Stroke(nil), f.log...), nil
}

func (f *fakeStrokes) Subscribe(fn func(model.Stroke)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.live = nil
	}
}

func (f *fakeStrokes) push(s model.Stroke) {
	f.mu.Lock()
	fn := f.live
	f.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}
