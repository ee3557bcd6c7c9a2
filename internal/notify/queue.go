// Package notify holds the transient feedback messages shown to the user
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/erauner12/condoboard/internal/cache"
)

// DefaultTTL is how long a notification stays visible
const DefaultTTL = 4 * time.Second

// Kind is the category of a notification
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Icon returns the icon name shown next to notifications of this kind
func (k Kind) Icon() string {
	switch k {
	case KindSuccess:
		return "circle-check"
	case KindError:
		return "circle-exclamation"
	default:
		return "circle-info"
	}
}

// Notification is one visible message
type Notification struct {
	ID        int64
	Kind      Kind
	Message   string
	Icon      string
	CreatedAt time.Time
}

// Queue keeps the visible notifications in arrival order. Each one is
// dismissed automatically after the TTL or earlier through Dismiss.
type Queue struct {
	ttl time.Duration

	mu        sync.Mutex
	nextID    int64
	items     []Notification
	timers    map[int64]*time.Timer
	listeners map[int]func([]Notification)
	nextSub   int
	closed    bool
}

// NewQueue creates a queue; ttl <= 0 uses DefaultTTL
func NewQueue(ttl time.Duration) *Queue {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Queue{
		ttl:       ttl,
		timers:    make(map[int64]*time.Timer),
		listeners: make(map[int]func([]Notification)),
	}
}

// Show adds a notification and returns its id
func (q *Queue) Show(kind Kind, message string) int64 {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0
	}
	q.nextID++
	n := Notification{
		ID:        q.nextID,
		Kind:      kind,
		Message:   message,
		Icon:      kind.Icon(),
		CreatedAt: time.Now(),
	}
	q.items = append(q.items, n)
	id := n.ID
	q.timers[id] = time.AfterFunc(q.ttl, func() { q.Dismiss(id) })
	snapshot, listeners := q.snapshotLocked()
	q.mu.Unlock()

	log.Debug().Str("kind", string(kind)).Str("message", message).Msg("notification shown")
	for _, fn := range listeners {
		fn(snapshot)
	}
	return id
}

// Success shows a success notification
func (q *Queue) Success(message string) int64 { return q.Show(KindSuccess, message) }

// Error shows an error notification
func (q *Queue) Error(message string) int64 { return q.Show(KindError, message) }

// Info shows an informational notification
func (q *Queue) Info(message string) int64 { return q.Show(KindInfo, message) }

// Dismiss removes a notification before its TTL. It reports whether the
// notification was still visible.
func (q *Queue) Dismiss(id int64) bool {
	q.mu.Lock()
	idx := -1
	for i, n := range q.items {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items[:idx:idx], q.items[idx+1:]...)
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
	snapshot, listeners := q.snapshotLocked()
	q.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return true
}

// Active returns the visible notifications, oldest first
func (q *Queue) Active() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Notification(nil), q.items...)
}

// Subscribe registers fn to receive the visible notifications after every
// change and returns a function that removes it
func (q *Queue) Subscribe(fn func([]Notification)) func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextSub
	q.nextSub++
	q.listeners[id] = fn
	return func() {
		q.mu.Lock()
		delete(q.listeners, id)
		q.mu.Unlock()
	}
}

// ReportFailure shows a failed cache mutation as an error notification
func (q *Queue) ReportFailure(f cache.Failure) {
	msg := f.Message
	if msg == "" && f.Err != nil {
		msg = f.Err.Error()
	}
	q.Error(msg)
}

// Close stops every pending timer and drops the visible notifications
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	q.items = nil
	q.listeners = make(map[int]func([]Notification))
}

func (q *Queue) snapshotLocked() ([]Notification, []func([]Notification)) {
	snapshot := append([]Notification(nil), q.items...)
	listeners := make([]func([]Notification), 0, len(q.listeners))
	for _, fn := range q.listeners {
		listeners = append(listeners, fn)
	}
	return snapshot, listeners
}
