package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRemote = errors.New("remote unavailable")

// fakeRemote is an in-memory Remote whose calls can be held and failed
type fakeRemote struct {
	mu        sync.Mutex
	tables    map[string][]Record
	listErr   error
	writeErr  error
	failNext  int
	noRecord  bool
	nextID    int
	listCalls map[string]int
	calls     []string

	// hold, when set, blocks every write until it is closed
	hold chan struct{}
	// listHold, when set, blocks every list until it is closed
	listHold chan struct{}
	// replyHold, when set, delays a create's response after the row is stored
	replyHold chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		tables:    make(map[string][]Record),
		listCalls: make(map[string]int),
		nextID:    100,
	}
}

func (f *fakeRemote) seed(collection string, records ...Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[collection] = records
}

func (f *fakeRemote) wait(ctx context.Context, hold chan struct{}) {
	if hold == nil {
		return
	}
	select {
	case <-hold:
	case <-ctx.Done():
	}
}

func (f *fakeRemote) List(ctx context.Context, collection string) ([]Record, error) {
	f.mu.Lock()
	hold := f.listHold
	f.listCalls[collection]++
	f.mu.Unlock()

	f.wait(ctx, hold)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return cloneAll(f.tables[collection]), nil
}

func (f *fakeRemote) Create(ctx context.Context, collection string, fields Record) (Record, error) {
	f.mu.Lock()
	hold := f.hold
	f.mu.Unlock()
	f.wait(ctx, hold)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("create %s", collection))
	if err := f.failure(); err != nil {
		return nil, err
	}
	f.nextID++
	rec := Clone(fields)
	rec["id"] = fmt.Sprintf("%d", f.nextID)
	f.tables[collection] = append([]Record{rec}, f.tables[collection]...)
	if f.replyHold != nil {
		reply := f.replyHold
		f.mu.Unlock()
		f.wait(ctx, reply)
		f.mu.Lock()
	}
	if f.noRecord {
		return nil, nil
	}
	return Clone(rec), nil
}

func (f *fakeRemote) Update(ctx context.Context, collection, id string, fields Record) (Record, error) {
	f.mu.Lock()
	hold := f.hold
	f.mu.Unlock()
	f.wait(ctx, hold)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("update %s/%s", collection, id))
	if err := f.failure(); err != nil {
		return nil, err
	}
	for _, r := range f.tables[collection] {
		if IDOf(r) == id {
			merge(r, fields)
			r["updated"] = true
			return Clone(r), nil
		}
	}
	return nil, fmt.Errorf("no record %s", id)
}

func (f *fakeRemote) Delete(ctx context.Context, collection, id string) error {
	f.mu.Lock()
	hold := f.hold
	f.mu.Unlock()
	f.wait(ctx, hold)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("delete %s/%s", collection, id))
	if err := f.failure(); err != nil {
		return err
	}
	records := f.tables[collection]
	if i := indexOf(records, id); i >= 0 {
		f.tables[collection] = removeAt(records, i)
	}
	return nil
}

// failure returns the error the current write should fail with (caller holds mu)
func (f *fakeRemote) failure() error {
	if f.failNext > 0 {
		f.failNext--
		return errRemote
	}
	return f.writeErr
}

func (f *fakeRemote) setWriteErr(err error) {
	f.mu.Lock()
	f.writeErr = err
	f.mu.Unlock()
}

func (f *fakeRemote) rows(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[collection])
}

func (f *fakeRemote) listCount(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[collection]
}

func (f *fakeRemote) writeCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeReporter records every failure it is handed
type fakeReporter struct {
	mu       sync.Mutex
	failures []Failure
}

func (r *fakeReporter) ReportFailure(f Failure) {
	r.mu.Lock()
	r.failures = append(r.failures, f)
	r.mu.Unlock()
}

func (r *fakeReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}

func newTestStore(t *testing.T, remote Remote, reporter Reporter) *Store {
	t.Helper()
	opts := Options{
		Insert:  map[string]Position{"ledger": Tail},
		Timeout: 5 * time.Second,
	}
	if reporter != nil {
		opts.Reporter = reporter
	}
	s := New(remote, opts)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ids(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = IDOf(r)
	}
	return out
}

func TestReadThrough_LoadingThenReady(t *testing.T) {
	a := assert.New(t)
	remote := newFakeRemote()
	remote.seed("residents", Record{"id": "1", "name": "Ana"})
	s := newTestStore(t, remote, nil)

	views := make(chan View, 4)
	s.Subscribe("residents", func(v View) { views <- v })

	v, err := s.ReadThrough("residents")
	require.NoError(t, err)
	a.Equal(StateLoading, v.State)
	a.Empty(v.Records)

	first := <-views
	a.Equal(StateLoading, first.State)

	second := <-views
	a.Equal(StateReady, second.State)
	a.Equal([]string{"1"}, ids(second.Records))
}

func TestReadThrough_ServesCacheAndRevalidates(t *testing.T) {
	a := assert.New(t)
	remote := newFakeRemote()
	remote.seed("residents", Record{"id": "1", "name": "Ana"})
	s := newTestStore(t, remote, nil)

	require.NoError(t, s.Refresh(context.Background(), "residents"))
	remote.seed("residents", Record{"id": "2", "name": "Bia"}, Record{"id": "1", "name": "Ana"})

	views := make(chan View, 4)
	s.Subscribe("residents", func(v View) { views <- v })

	v, err := s.ReadThrough("residents")
	require.NoError(t, err)
	a.Equal(StateReady, v.State)
	a.Equal([]string{"1"}, ids(v.Records), "cached entry is returned without waiting")

	fresh := <-views
	a.Equal([]string{"2", "1"}, ids(fresh.Records))
	a.Equal(2, remote.listCount("residents"))
}

func TestReadThrough_FailedFetchKeepsEntry(t *testing.T) {
	a := assert.New(t)
	remote := newFakeRemote()
	remote.seed("incidents", Record{"id": "1", "title": "Leak"})
	s := newTestStore(t, remote, nil)
	require.NoError(t, s.Refresh(context.Background(), "incidents"))

	remote.mu.Lock()
	remote.listErr = errRemote
	remote.mu.Unlock()

	views := make(chan View, 4)
	s.Subscribe("incidents", func(v View) { views <- v })

	_, err := s.ReadThrough("incidents")
	require.NoError(t, err)

	v := <-views
	a.Equal(StateError, v.State)
	a.ErrorIs(v.Err, errRemote)
	a.Equal([]string{"1"}, ids(v.Records), "stale-but-valid data survives")
}

func TestInvalidate_NextReadFetches(t *testing.T) {
	a := assert.New(t)
	remote := newFakeRemote()
	remote.seed("reservations", Record{"id": "1"})
	s := newTestStore(t, remote, nil)
	require.NoError(t, s.Refresh(context.Background(), "reservations"))

	s.Invalidate("reservations")
	s.Invalidate("reservations")

	v, err := s.ReadThrough("reservations")
	require.NoError(t, err)
	a.Equal(StateLoading, v.State)
	require.Eventually(t, func() bool { return remote.listCount("reservations") == 2 }, time.Second, 5*time.Millisecond)

	// Invalidating a collection that was never loaded is harmless
	s.Invalidate("ledger")
	a.Equal(StateLoading, s.Peek("ledger").State)
}

func TestInvalidate_DiscardsFetchIssuedBefore(t *testing.T) {
	a := assert.New(t)
	remote := newFakeRemote()
	remote.seed("incidents", Record{"id": "old"})
	remote.listHold = make(chan struct{})
	s := newTestStore(t, remote, nil)

	_, err := s.ReadThrough("incidents")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return remote.listCount("incidents") == 1 }, time.Second, 5*time.Millisecond)

	s.Invalidate("incidents")
	close(remote.listHold)

	// The first fetch lands after the invalidation and must not populate
	time.Sleep(50 * time.Millisecond)
	a.Equal(StateLoading, s.Peek("incidents").State)
}

func TestRefreshAll_AggregatesErrors(t *testing.T) {
	remote := newFakeRemote()
	remote.listErr = errRemote
	s := newTestStore(t, remote, nil)

	err := s.RefreshAll(context.Background(), "residents", "ledger")
	require.Error(t, err)
	assert.ErrorIs(t, err, errRemote)
	assert.Contains(t, err.Error(), "refresh residents")
	assert.Contains(t, err.Error(), "refresh ledger")
}

func TestClose_RejectsLaterCalls(t *testing.T) {
	a := assert.New(t)
	remote := newFakeRemote()
	remote.seed("residents", Record{"id": "1"})
	s := New(remote, Options{})
	require.NoError(t, s.Refresh(context.Background(), "residents"))

	op, err := s.Update("residents", "1", Record{"name": "Ana"})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	a.NotEqual(StateApplied, op.State(), "close waits for in-flight writes")

	_, err = s.ReadThrough("residents")
	a.ErrorIs(err, ErrClosed)
	_, err = s.Create("residents", Record{"name": "Bia"})
	a.ErrorIs(err, ErrClosed)
	a.ErrorIs(s.Refresh(context.Background(), "residents"), ErrClosed)
	a.Equal(StateLoading, s.Peek("residents").State, "entries are cleared")
	a.NoError(s.Close())
}

func TestIDOf(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{"string", Record{"id": "abc"}, "abc"},
		{"json number", Record{"id": float64(42)}, "42"},
		{"int", Record{"id": 7}, "7"},
		{"missing", Record{"name": "x"}, ""},
		{"nil record", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IDOf(tt.rec))
		})
	}
}
