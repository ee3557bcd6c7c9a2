// Package push subscribes to the backend's change stream and turns table
// change events into cache invalidations
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog/log"
	"gopkg.in/cenkalti/backoff.v1"
)

// Event kinds published by the backend
const (
	KindInsert = "insert"
	KindUpdate = "update"
	KindDelete = "delete"
	// Any matches every kind, and every table when used as a table name
	Any = "*"
)

// EventName is the SSE event type carrying table changes
const EventName = "change"

// DefaultStream is the stream id the backend publishes changes on
const DefaultStream = "changes"

// ErrMalformedEvent is returned for change events that cannot be decoded
var ErrMalformedEvent = errors.New("push: malformed change event")

// Change says that a table changed; no payload beyond that is guaranteed
type Change struct {
	Table string `json:"table"`
	Type  string `json:"type"`
}

// Handler reacts to a change. Delivery is at-least-once, so handlers must
// be idempotent.
type Handler func(Change)

type route struct {
	table   string
	kind    string
	handler Handler
}

func (r route) matches(c Change) bool {
	return (r.table == Any || r.table == c.Table) && (r.kind == Any || r.kind == c.Type)
}

// Options configures a Subscriber
type Options struct {
	// URL of the SSE endpoint, e.g. http://localhost:8081/realtime/v1/events
	URL    string
	Stream string
	// Headers are sent on every (re)connect
	Headers map[string]string
	// ReconnectInterval is the first reconnect delay
	ReconnectInterval time.Duration
	// MaxReconnectInterval caps the reconnect backoff
	MaxReconnectInterval time.Duration
}

// Subscriber routes change events to registered handlers
type Subscriber struct {
	opts Options

	mu     sync.RWMutex
	routes []route
}

// NewSubscriber creates a subscriber; call On to register handlers and Run
// to connect
func NewSubscriber(opts Options) *Subscriber {
	if opts.Stream == "" {
		opts.Stream = DefaultStream
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = backoff.DefaultInitialInterval
	}
	if opts.MaxReconnectInterval <= 0 {
		opts.MaxReconnectInterval = 30 * time.Second
	}
	return &Subscriber{opts: opts}
}

// On registers handler for changes of kind on table. Use Any for either
// to match everything.
func (s *Subscriber) On(table, kind string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = append(s.routes, route{table: table, kind: kind, handler: handler})
}

// Run connects to the change stream and dispatches events until ctx is
// done. Lost connections, including streams the server ends, are
// re-established with exponential backoff.
func (s *Subscriber) Run(ctx context.Context) error {
	client := sse.NewClient(s.opts.URL)
	for k, v := range s.opts.Headers {
		client.Headers[k] = v
	}
	client.ReconnectStrategy = backoff.WithContext(s.backoff(), ctx)
	client.ReconnectNotify = func(err error, next time.Duration) {
		log.Warn().Err(err).Dur("retryIn", next).Msg("change stream disconnected, reconnecting")
	}

	// RetryNotify only retries on errors; a stream the server closes
	// cleanly comes back as nil and is retried here.
	closed := s.backoff()
	for {
		var received atomic.Bool
		log.Debug().Str("url", s.opts.URL).Str("stream", s.opts.Stream).Msg("subscribing to change stream")
		err := client.SubscribeWithContext(ctx, s.opts.Stream, func(ev *sse.Event) {
			received.Store(true)
			if err := s.handle(ev); err != nil {
				log.Warn().Err(err).Msg("dropping change event")
			}
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("change stream: %w", err)
		}

		if received.Load() {
			closed.Reset()
		}
		next := closed.NextBackOff()
		log.Warn().Dur("retryIn", next).Msg("change stream closed by server, reconnecting")
		t := time.NewTimer(next)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (s *Subscriber) backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.ReconnectInterval
	b.MaxInterval = s.opts.MaxReconnectInterval
	b.MaxElapsedTime = 0 // until ctx is done
	b.Reset()
	return b
}

func (s *Subscriber) handle(ev *sse.Event) error {
	if len(ev.Event) > 0 && string(ev.Event) != EventName {
		return nil
	}
	if len(ev.Data) == 0 {
		return nil
	}
	return s.Dispatch(ev.Data)
}

// Dispatch decodes one change event and calls every matching handler
func (s *Subscriber) Dispatch(data []byte) error {
	var c Change
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if c.Table == "" || c.Type == "" {
		return fmt.Errorf("%w: %q", ErrMalformedEvent, data)
	}

	s.mu.RLock()
	var handlers []Handler
	for _, r := range s.routes {
		if r.matches(c) {
			handlers = append(handlers, r.handler)
		}
	}
	s.mu.RUnlock()

	log.Debug().Str("table", c.Table).Str("type", c.Type).Int("handlers", len(handlers)).Msg("change received")
	for _, h := range handlers {
		h(c)
	}
	return nil
}

// Invalidating is the part of the cache store the push channel drives
type Invalidating interface {
	Invalidate(collection string)
}

// Invalidator returns a handler that invalidates the changed table
func Invalidator(store Invalidating) Handler {
	return func(c Change) {
		store.Invalidate(c.Table)
	}
}
