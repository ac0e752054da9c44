package roomclient

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"studyroom-backend/internal/model"
	"studyroom-backend/internal/optimistic"
)

// recentDeleteWindow ids deleted locally are not resurrected by feed events for this long,
// and ids deleted by the feed are not restored by a failed local delete
const recentDeleteWindow = 30 * time.Second

var (
	ErrInvalidTitle = errors.New("task title must be 1-200 characters")
	ErrUnknownTask  = errors.New("unknown task")
	ErrTaskPending  = errors.New("task is still being saved")
	ErrTaskNotFound = errors.New("task not found")
)

// Notice user-facing message about a rolled back action
type Notice struct {
	Action  string
	Message string
	Err     error
}

// Notifier shows notices to the user
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// TaskList the room's shared tasks with optimistic local edits
type TaskList struct {
	store  TaskStore
	self   int64
	notify Notifier
	now    func() time.Time

	mu       sync.Mutex
	tasks    []model.Task
	pending  map[string]string // temp id -> title
	deleted  map[string]time.Time
	gone     map[string]time.Time // deleted by the feed
	loaded   bool
	backlog  []TaskChange
	onChange []func([]model.Task)
	unsub    func()
}

func NewTaskList(store TaskStore, selfID int64, notify Notifier) *TaskList {
	if notify == nil {
		notify = NotifierFunc(func(Notice) {})
	}
	return &TaskList{
		store:   store,
		self:    selfID,
		notify:  notify,
		now:     time.Now,
		pending: make(map[string]string),
		deleted: make(map[string]time.Time),
		gone:    make(map[string]time.Time),
	}
}

// SubscribeChanges starts listening to the feed. Events that arrive before
// ListInitial completes are held and applied after it.
func (l *TaskList) SubscribeChanges() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unsub != nil {
		return
	}
	l.unsub = l.store.SubscribeChanges(l.apply)
}

// ListInitial loads the list once, oldest first
func (l *TaskList) ListInitial(ctx context.Context) error {
	l.mu.Lock()
	if l.loaded {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	rows, err := l.store.List(ctx)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.tasks = append(rows[:0:0], rows...)
	l.loaded = true
	backlog := l.backlog
	l.backlog = nil
	for _, ch := range backlog {
		l.applyLocked(ch)
	}
	l.mu.Unlock()

	l.changed()
	return nil
}

// OnChange fn receives a snapshot after every change
func (l *TaskList) OnChange(fn func([]model.Task)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Tasks snapshot
func (l *TaskList) Tasks() []model.Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// AddTask shows the task at once under a temporary id, then swaps in the stored row
func (l *TaskList) AddTask(ctx context.Context, title string) (*model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > model.MaxTaskTitleLength {
		return nil, ErrInvalidTitle
	}

	now := l.now().UTC()
	temp := model.Task{
		ID:        model.TempTaskPrefix + uuid.NewString(),
		CreatorID: l.self,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	task, err := optimistic.Do(ctx,
		func() {
			l.mu.Lock()
			l.tasks = append(l.tasks, temp)
			l.pending[temp.ID] = title
			l.mu.Unlock()
			l.changed()
		},
		func(ctx context.Context) (*model.Task, error) {
			return l.store.Insert(ctx, title)
		},
		func() {
			l.mu.Lock()
			l.removeLocked(temp.ID)
			delete(l.pending, temp.ID)
			l.mu.Unlock()
			l.changed()
		},
	)
	if err != nil {
		l.notify.Notify(Notice{Action: "add", Message: "could not add task", Err: err})
		return nil, err
	}

	l.mu.Lock()
	delete(l.pending, temp.ID)
	if l.indexLocked(task.ID) >= 0 {
		// the feed got here first
		l.removeLocked(temp.ID)
	} else if i := l.indexLocked(temp.ID); i >= 0 {
		l.tasks[i] = *task
	} else {
		l.tasks = append(l.tasks, *task)
	}
	l.mu.Unlock()
	l.changed()
	return task, nil
}

// ToggleTask flips completion locally and persists the new state
func (l *TaskList) ToggleTask(ctx context.Context, id string) (*model.Task, error) {
	if strings.HasPrefix(id, model.TempTaskPrefix) {
		return nil, ErrTaskPending
	}

	l.mu.Lock()
	i := l.indexLocked(id)
	if i < 0 {
		l.mu.Unlock()
		return nil, ErrUnknownTask
	}
	prev := l.tasks[i].Completed
	l.mu.Unlock()

	set := func(completed bool) func() {
		return func() {
			l.mu.Lock()
			if j := l.indexLocked(id); j >= 0 {
				l.tasks[j].Completed = completed
			}
			l.mu.Unlock()
			l.changed()
		}
	}

	task, err := optimistic.Do(ctx,
		set(!prev),
		func(ctx context.Context) (*model.Task, error) {
			return l.store.SetCompleted(ctx, id, !prev)
		},
		set(prev),
	)
	if err != nil {
		l.notify.Notify(Notice{Action: "toggle", Message: "could not update task", Err: err})
		return nil, err
	}

	l.mu.Lock()
	if j := l.indexLocked(id); j >= 0 {
		l.tasks[j] = *task
	}
	l.mu.Unlock()
	l.changed()
	return task, nil
}

// DeleteTask removes the row at once and puts it back where it was if the delete fails.
// A row that is already gone on the server counts as deleted.
func (l *TaskList) DeleteTask(ctx context.Context, id string) error {
	if strings.HasPrefix(id, model.TempTaskPrefix) {
		return ErrTaskPending
	}

	l.mu.Lock()
	idx := l.indexLocked(id)
	if idx < 0 {
		l.mu.Unlock()
		return ErrUnknownTask
	}
	row := l.tasks[idx]
	l.mu.Unlock()

	_, err := optimistic.Do(ctx,
		func() {
			l.mu.Lock()
			l.removeLocked(id)
			l.deleted[id] = l.now()
			l.mu.Unlock()
			l.changed()
		},
		func(ctx context.Context) (struct{}, error) {
			err := l.store.Delete(ctx, id)
			if errors.Is(err, ErrTaskNotFound) {
				return struct{}{}, nil
			}
			return struct{}{}, err
		},
		func() {
			l.mu.Lock()
			delete(l.deleted, id)
			if _, gone := l.gone[id]; !gone && l.indexLocked(id) < 0 {
				at := idx
				if at > len(l.tasks) {
					at = len(l.tasks)
				}
				l.tasks = append(l.tasks[:at], append([]model.Task{row}, l.tasks[at:]...)...)
			}
			l.mu.Unlock()
			l.changed()
		},
	)
	if err != nil {
		l.notify.Notify(Notice{Action: "delete", Message: "could not delete task", Err: err})
		return err
	}
	return nil
}

// Close stops listening to the feed
func (l *TaskList) Close() {
	l.mu.Lock()
	unsub := l.unsub
	l.unsub = nil
	l.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (l *TaskList) apply(ch TaskChange) {
	l.mu.Lock()
	if !l.loaded {
		l.backlog = append(l.backlog, ch)
		l.mu.Unlock()
		return
	}
	l.applyLocked(ch)
	l.mu.Unlock()
	l.changed()
}

// applyLocked feed fields win over local state
func (l *TaskList) applyLocked(ch TaskChange) {
	l.expireDeletedLocked()

	switch ch.Type {
	case TaskInserted, TaskUpdated:
		if _, gone := l.deleted[ch.Task.ID]; gone {
			return
		}
		if i := l.indexLocked(ch.Task.ID); i >= 0 {
			l.tasks[i] = ch.Task
			return
		}
		if ch.Type == TaskInserted && ch.Task.CreatorID == l.self {
			for tempID, title := range l.pending {
				if title != ch.Task.Title {
					continue
				}
				if i := l.indexLocked(tempID); i >= 0 {
					l.tasks[i] = ch.Task
					delete(l.pending, tempID)
					return
				}
			}
		}
		l.tasks = append(l.tasks, ch.Task)

	case TaskDeleted:
		l.removeLocked(ch.ID)
		l.gone[ch.ID] = l.now()
	}
}

func (l *TaskList) expireDeletedLocked() {
	cutoff := l.now().Add(-recentDeleteWindow)
	for id, at := range l.deleted {
		if at.Before(cutoff) {
			delete(l.deleted, id)
		}
	}
	for id, at := range l.gone {
		if at.Before(cutoff) {
			delete(l.gone, id)
		}
	}
}

func (l *TaskList) indexLocked(id string) int {
	for i := range l.tasks {
		if l.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *TaskList) removeLocked(id string) {
	if i := l.indexLocked(id); i >= 0 {
		l.tasks = append(l.tasks[:i], l.tasks[i+1:]...)
	}
}

func (l *TaskList) snapshotLocked() []model.Task {
	out := make([]model.Task, len(l.tasks))
	copy(out, l.tasks)
	return out
}

func (l *TaskList) changed() {
	l.mu.Lock()
	snap := l.snapshotLocked()
	fns := make([]func([]model.Task), len(l.onChange))
	copy(fns, l.onChange)
	l.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
