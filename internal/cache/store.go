package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds every remote call issued by the store
const DefaultTimeout = 30 * time.Second

// Remote is the service the store synchronizes against
type Remote interface {
	List(ctx context.Context, collection string) ([]Record, error)
	Create(ctx context.Context, collection string, fields Record) (Record, error)
	Update(ctx context.Context, collection, id string, fields Record) (Record, error)
	Delete(ctx context.Context, collection, id string) error
}

// Failure describes a mutation the service rejected after it was rolled back
type Failure struct {
	Kind       Kind
	Collection string
	ID         string
	Err        error
	// Message is the user-facing text, filled by Options.Describe
	Message string
}

// Reporter receives every failed mutation exactly once
type Reporter interface {
	ReportFailure(f Failure)
}

// Position is where optimistic creates are inserted in a collection
type Position int

const (
	Head Position = iota
	Tail
)

// Options configures a Store
type Options struct {
	Reporter Reporter
	// Describe turns a failure into the message handed to the Reporter
	Describe func(Failure) string
	// Insert maps collections to their insert position (Head when absent)
	Insert  map[string]Position
	Timeout time.Duration
	// NewID generates temporary ids; must return ids with TempPrefix
	NewID func() string
}

// ViewState is the load state of a collection as seen by readers
type ViewState int

const (
	StateLoading ViewState = iota
	StateReady
	StateError
)

func (s ViewState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// View is a point-in-time copy of one collection. Records are copies and
// may be modified freely by the receiver.
type View struct {
	Collection string
	State      ViewState
	Records    []Record
	// Err is the last fetch error; Records still holds the last good data
	Err error
	// Stale is set when local state is known to diverge from the service
	Stale bool
	// Seq increases with every view the store produces
	Seq uint64
}

// Listener is called with a fresh View whenever a collection changes.
// Listeners run outside the store lock and may call back into the store.
type Listener func(v View)

type entry struct {
	records []Record
	err     error
	stale   bool
}

type notification struct {
	listeners []Listener
	view      View
}

// Store is the session-scoped cache of remote collections. It serves reads
// from memory, revalidates in the background, and applies writes
// optimistically before the service confirms them. A Store is safe for
// concurrent use.
type Store struct {
	remote   Remote
	reporter Reporter
	describe func(Failure) string
	insert   map[string]Position
	timeout  time.Duration
	newID    func() string

	mu        sync.Mutex
	closed    bool
	seq       uint64
	entries   map[string]*entry
	gens      map[string]uint64 // bumped by Invalidate
	writes    map[string]uint64 // bumped by every confirmed write
	inflight  map[string]uint64 // background fetch per collection, by generation
	listeners map[string]map[int]Listener
	nextID    int

	pending map[string][]*Op         // unresolved ops per collection, in issue order
	lanes   map[string]chan struct{} // tail of each record's lane
	aliases map[string]string        // "collection/temp-id" -> server id
	rev     uint64
	revs    map[string]uint64 // last local mutation per record

	wg sync.WaitGroup
}

// New creates a Store backed by remote
func New(remote Remote, opts Options) *Store {
	s := &Store{
		remote:    remote,
		reporter:  opts.Reporter,
		describe:  opts.Describe,
		insert:    opts.Insert,
		timeout:   opts.Timeout,
		newID:     opts.NewID,
		entries:   make(map[string]*entry),
		gens:      make(map[string]uint64),
		writes:    make(map[string]uint64),
		inflight:  make(map[string]uint64),
		listeners: make(map[string]map[int]Listener),
		pending:   make(map[string][]*Op),
		lanes:     make(map[string]chan struct{}),
		aliases:   make(map[string]string),
		revs:      make(map[string]uint64),
	}
	if s.describe == nil {
		s.describe = defaultDescribe
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.newID == nil {
		s.newID = func() string { return TempPrefix + uuid.New().String() }
	}
	return s
}

func defaultDescribe(f Failure) string {
	return fmt.Sprintf("Could not %s %s: %v", f.Kind, f.Collection, f.Err)
}

// Subscribe registers fn for changes of collection ("" for every
// collection) and returns a function that removes it
func (s *Store) Subscribe(collection string, fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	if s.listeners[collection] == nil {
		s.listeners[collection] = make(map[int]Listener)
	}
	s.listeners[collection][id] = fn

	return func() {
		s.mu.Lock()
		delete(s.listeners[collection], id)
		s.mu.Unlock()
	}
}

// ReadThrough returns the cached view of collection immediately and
// revalidates it in the background. Without a cached entry the view is
// loading and listeners are told so before the fetch starts.
func (s *Store) ReadThrough(collection string) (View, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return View{}, ErrClosed
	}

	v := s.viewLocked(collection)
	var notes []notification
	if s.entries[collection] == nil {
		notes = append(notes, s.notificationLocked(v))
	}
	s.startFetchLocked(collection)
	s.mu.Unlock()

	s.fire(notes)
	return v, nil
}

// Peek returns the cached view without touching the network
func (s *Store) Peek(collection string) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked(collection)
}

// Refresh fetches collection and waits for the result to be applied
func (s *Store) Refresh(ctx context.Context, collection string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	gen, writes := s.gens[collection], s.writes[collection]
	s.mu.Unlock()

	records, err := s.remote.List(ctx, collection)
	if err := s.apply(collection, gen, writes, false, records, err); err != nil {
		return fmt.Errorf("refresh %s: %w", collection, err)
	}
	return nil
}

// RefreshAll refreshes collections concurrently and returns every failure
func (s *Store) RefreshAll(ctx context.Context, collections ...string) error {
	var g multierror.Group
	for _, c := range collections {
		c := c
		g.Go(func() error {
			return s.Refresh(ctx, c)
		})
	}
	return g.Wait().ErrorOrNil()
}

// Invalidate drops the cached entry of collection so the next read fetches.
// Collections with listeners are refetched right away.
func (s *Store) Invalidate(collection string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	s.gens[collection]++
	delete(s.entries, collection)

	var notes []notification
	if s.hasListenersLocked(collection) {
		notes = append(notes, s.notificationLocked(s.viewLocked(collection)))
		s.startFetchLocked(collection)
	}
	s.mu.Unlock()

	log.Debug().Str("collection", collection).Msg("cache invalidated")
	s.fire(notes)
}

// Close clears every entry and waits for in-flight remote calls. Later
// calls fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.entries = make(map[string]*entry)
	s.listeners = make(map[string]map[int]Listener)
	s.mu.Unlock()

	s.wg.Wait()
	log.Debug().Msg("cache closed")
	return nil
}

// startFetchLocked issues a background list of collection unless one is
// already running for the current generation
func (s *Store) startFetchLocked(collection string) {
	gen := s.gens[collection]
	if running, ok := s.inflight[collection]; ok && running == gen {
		return
	}
	s.inflight[collection] = gen
	writes := s.writes[collection]

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		records, err := s.remote.List(ctx, collection)
		_ = s.apply(collection, gen, writes, true, records, err)
	}()
}

// apply installs a list result unless the collection was invalidated, or a
// write was confirmed, after the list was issued
func (s *Store) apply(collection string, gen, writes uint64, background bool, records []Record, fetchErr error) error {
	s.mu.Lock()
	if background {
		if running, ok := s.inflight[collection]; ok && running == gen {
			delete(s.inflight, collection)
		}
	}
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.gens[collection] != gen {
		s.mu.Unlock()
		log.Debug().Str("collection", collection).Msg("discarding fetch for invalidated collection")
		return nil
	}

	if fetchErr != nil {
		var v View
		if e := s.entries[collection]; e != nil {
			e.err = fetchErr
			v = s.viewLocked(collection)
		} else {
			s.seq++
			v = View{Collection: collection, State: StateError, Err: fetchErr, Seq: s.seq}
		}
		notes := []notification{s.notificationLocked(v)}
		s.mu.Unlock()

		log.Warn().Err(fetchErr).Str("collection", collection).Msg("fetch failed")
		s.fire(notes)
		return fetchErr
	}

	if s.writes[collection] != writes {
		s.startFetchLocked(collection)
		s.mu.Unlock()
		log.Debug().Str("collection", collection).Msg("write confirmed during fetch, refetching")
		return nil
	}

	s.entries[collection] = &entry{records: s.overlayLocked(collection, cloneAll(records))}
	notes := []notification{s.notificationLocked(s.viewLocked(collection))}
	s.mu.Unlock()

	log.Debug().Str("collection", collection).Int("records", len(records)).Msg("collection loaded")
	s.fire(notes)
	return nil
}

// overlayLocked reapplies unresolved local mutations on top of fetched records
func (s *Store) overlayLocked(collection string, records []Record) []Record {
	for _, op := range s.pending[collection] {
		switch op.Kind {
		case KindCreate:
			if indexOf(records, op.id) < 0 {
				records = insertAt(records, s.insertIndex(collection, len(records)), op.fields)
			}
		case KindUpdate:
			if i := indexOf(records, s.resolveLocked(collection, op.id)); i >= 0 {
				merge(records[i], op.fields)
			}
		case KindDelete:
			if i := indexOf(records, s.resolveLocked(collection, op.id)); i >= 0 {
				records = removeAt(records, i)
			}
		}
	}
	return records
}

func (s *Store) insertIndex(collection string, n int) int {
	if s.insert[collection] == Tail {
		return n
	}
	return 0
}

func (s *Store) viewLocked(collection string) View {
	s.seq++
	e := s.entries[collection]
	if e == nil {
		return View{Collection: collection, State: StateLoading, Seq: s.seq}
	}
	v := View{
		Collection: collection,
		State:      StateReady,
		Records:    cloneAll(e.records),
		Stale:      e.stale,
		Seq:        s.seq,
	}
	if e.err != nil {
		v.State = StateError
		v.Err = e.err
	}
	return v
}

func (s *Store) hasListenersLocked(collection string) bool {
	return len(s.listeners[collection]) > 0 || len(s.listeners[""]) > 0
}

func (s *Store) notificationLocked(v View) notification {
	n := notification{view: v}
	for _, fn := range s.listeners[v.Collection] {
		n.listeners = append(n.listeners, fn)
	}
	for _, fn := range s.listeners[""] {
		n.listeners = append(n.listeners, fn)
	}
	return n
}

func (s *Store) fire(notes []notification) {
	for _, n := range notes {
		for _, fn := range n.listeners {
			v := n.view
			if v.Records != nil {
				v.Records = cloneAll(v.Records)
			}
			fn(v)
		}
	}
}
