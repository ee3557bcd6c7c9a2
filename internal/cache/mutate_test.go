package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitOp(t *testing.T, op *Op) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	select {
	case <-op.Done():
		return op.Err()
	case <-ctx.Done():
		t.Fatalf("operation %s %s did not resolve", op.Kind, op.Collection)
		return nil
	}
}

func loaded(t *testing.T, remote *fakeRemote, reporter Reporter, collection string, records ...Record) *Store {
	t.Helper()
	remote.seed(collection, records...)
	s := newTestStore(t, remote, reporter)
	require.NoError(t, s.Refresh(context.Background(), collection))
	return s
}

func TestCreate_ConfirmReplacesTemporaryRecord(t *testing.T) {
	a := assert.New(t)
	remote := newFakeRemote()
	remote.hold = make(chan struct{})
	s := loaded(t, remote, nil, "reservations", Record{"id": "1", "area": "Gym"})

	op, err := s.Create("reservations", Record{"area": "Pool", "date": "2024-01-01"})
	require.NoError(t, err)
	a.Equal(StateApplied, op.State())
	a.True(IsTemp(op.ID()))

	v := s.Peek("reservations")
	require.Len(t, v.Records, 2)
	a.Equal(op.ID(), IDOf(v.Records[0]), "creates are inserted at the head")
	a.Equal("Pool", v.Records[0]["area"])

	close(remote.hold)
	require.NoError(t, waitOp(t, op))
	a.Equal(StateConfirmed, op.State())
	a.Equal("101", op.ID())

	v = s.Peek("reservations")
	a.Equal([]string{"101", "1"}, ids(v.Records))
	for _, r := range v.Records {
		a.False(IsTemp(IDOf(r)))
	}

	// After invalidation the authoritative record is read back
	s.Invalidate("reservations")
	require.NoError(t, s.Refresh(context.Background(), "reservations"))
	v = s.Peek("reservations")
	a.Equal([]string{"101", "1"}, ids(v.Records))
	a.Equal("Pool", v.Records[0]["area"])
}

func TestCreate_TailCollection(t *testing.T) {
	remote := newFakeRemote()
	remote.hold = make(chan struct{})
	s := loaded(t, remote, nil, "ledger", Record{"id": "1", "amount": 10.0})

	op, err := s.Create("ledger", Record{"amount": 5.0})
	require.NoError(t, err)

	v := s.Peek("ledger")
	require.Len(t, v.Records, 2)
	assert.Equal(t, op.ID(), IDOf(v.Records[1]))

	close(remote.hold)
	require.NoError(t, waitOp(t, op))
}

func TestCreate_FailureRemovesRecord(t *testing.T) {
	a := assert.New(t)
	remote := newFakeRemote()
	reporter := &fakeReporter{}
	s := loaded(t, remote, reporter, "incidents", Record{"id": "1"})
	remote.setWriteErr(errRemote)

	op, err := s.Create("incidents", Record{"title": "Broken gate"})
	require.NoError(t, err)

	a.ErrorIs(waitOp(t, op), errRemote)
	a.Equal(StateRolledBack, op.State())
	a.Equal([]string{"1"}, ids(s.Peek("incidents").Records))
	a.Equal(1, reporter.count())
	a.Equal(0, s.Pending("incidents"))
}

func TestCreate_NoRecordReturnedRefetches(t *testing.T) {
	a := assert.New(t)
	remote := newFakeRemote()
	s := loaded(t, remote, nil, "incidents", Record{"id": "1"})
	remote.mu.Lock()
	remote.noRecord = true
	remote.mu.Unlock()

	views := make(chan View, 8)
	s.Subscribe("incidents", func(v View) { views <- v })

	op, err := s.Create("incidents", Record{"title": "Noise"})
	require.NoError(t, err)
	require.NoError(t, waitOp(t, op))

	require.Eventually(t, func() bool {
		v := s.Peek("incidents")
		return v.State == StateReady && len(v.Records) == 2
	}, time.Second, 5*time.Millisecond)

	for _, r := range s.Peek("incidents").Records {
		a.False(IsTemp(IDOf(r)), "no temporary id survives resolution")
	}
}

func TestDelete_FailureRestoresRecord(t *testing.T) {
	a := assert.New(t)
	remote := newFakeRemote()
	reporter := &fakeReporter{}
	s := loaded(t, remote, reporter, "residents", Record{"id": "1", "status": "ok"})
	remote.setWriteErr(errRemote)

	op, err := s.Delete("residents", "1")
	require.NoError(t, err)
	a.Empty(s.Peek("residents").Records, "delete is visible before the service answers")

	a.ErrorIs(waitOp(t, op), errRemote)
	a.Equal([]Record{{"id": "1", "status": "ok"}}, s.Peek("residents").Records)
	require.Equal(t, 1, reporter.count())
	a.Equal(KindDelete, reporter.failures[0].Kind)
	a.NotEmpty(reporter.failures[0].Message)
}

func TestDelete_FailureRestoresPosition(t *testing.T) {
	remote := newFakeRemote()
	s := loaded(t, remote, nil, "residents", Record{"id": "3"}, Record{"id": "2"}, Record{"id": "1"})
	remote.setWriteErr(errRemote)

	op, err := s.Delete("residents", "2")
	require.NoError(t, err)
	assert.ErrorIs(t, waitOp(t, op), errRemote)
	assert.Equal(t, []string{"3", "2", "1"}, ids(s.Peek("residents").Records))
}

func TestDelete_Confirmed(t *testing.T) {
	remote := newFakeRemote()
	s := loaded(t, remote, nil, "residents", Record{"id": "2"}, Record{"id": "1"})

	op, err := s.Delete("residents", "1")
	require.NoError(t, err)
	require.NoError(t, waitOp(t, op))
	assert.Equal(t, []string{"2"}, ids(s.Peek("residents").Records))

	_, err = s.Delete("residents", "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_ConfirmMergesResponse(t *testing.T) {
	a := assert.New(t)
	remote := newFakeRemote()
	s := loaded(t, remote, nil, "residents", Record{"id": "1", "name": "Ana", "status": "ok"})

	op, err := s.Update("residents", "1", Record{"status": "late"})
	require.NoError(t, err)
	a.Equal("late", s.Peek("residents").Records[0]["status"])

	require.NoError(t, waitOp(t, op))
	rec := s.Peek("residents").Records[0]
	a.Equal("late", rec["status"])
	a.Equal("Ana", rec["name"])
	a.Equal(true, rec["updated"])
}

func TestUpdate_FailureRestoresSnapshot(t *testing.T) {
	a := assert.New(t)
	remote := newFakeRemote()
	reporter := &fakeReporter{}
	s := loaded(t, remote, reporter, "residents", Record{"id": "1", "name": "Ana", "status": "ok"})
	remote.setWriteErr(errRemote)

	op, err := s.Update("residents", "1", Record{"status": "late", "phone": "123"})
	require.NoError(t, err)

	a.ErrorIs(waitOp(t, op), errRemote)
	a.Equal([]Record{{"id": "1", "name": "Ana", "status": "ok"}}, s.Peek("residents").Records)
	a.Equal(1, reporter.count())
}

func TestUpdate_StaleFailureKeepsNewerEdit(t *testing.T) {
	a := assert.New(t)
	remote := newFakeRemote()
	remote.hold = make(chan struct{})
	remote.failNext = 1
	s := loaded(t, remote, nil, "residents", Record{"id": "1", "status": "ok"})

	first, err := s.Update("residents", "1", Record{"status": "late"})
	require.NoError(t, err)
	second, err := s.Update("residents", "1", Record{"name": "Ana"})
	require.NoError(t, err)

	// The first update fails while the second is queued behind it
	close(remote.hold)
	a.ErrorIs(waitOp(t, first), errRemote)
	a.Equal("Ana", s.Peek("residents").Records[0]["name"], "a stale failure does not roll back a newer edit")

	require.NoError(t, waitOp(t, second))
	require.Eventually(t, func() bool {
		v := s.Peek("residents")
		return !v.Stale && v.Records[0]["name"] == "Ana" && v.Records[0]["status"] == "ok"
	}, time.Second, 5*time.Millisecond)
	a.Equal([]string{"update residents/1", "update residents/1"}, remote.writeCalls())
}

func TestUpdate_AfterCreateUsesServerID(t *testing.T) {
	a := assert.New(t)
	remote := newFakeRemote()
	remote.hold = make(chan struct{})
	s := loaded(t, remote, nil, "reservations")

	create, err := s.Create("reservations", Record{"area": "Pool"})
	require.NoError(t, err)
	tempID := create.ID()

	update, err := s.Update("reservations", tempID, Record{"status": "confirmed"})
	require.NoError(t, err)
	a.Equal("confirmed", s.Peek("reservations").Records[0]["status"])

	close(remote.hold)
	require.NoError(t, waitOp(t, create))
	require.NoError(t, waitOp(t, update))

	a.Equal([]string{"create reservations", "update reservations/101"}, remote.writeCalls())
	v := s.Peek("reservations")
	a.Equal([]string{"101"}, ids(v.Records))
	a.Equal("confirmed", v.Records[0]["status"])
}

func TestUpdate_AfterFailedCreateIsNotSent(t *testing.T) {
	a := assert.New(t)
	remote := newFakeRemote()
	remote.hold = make(chan struct{})
	reporter := &fakeReporter{}
	s := loaded(t, remote, reporter, "reservations")
	remote.setWriteErr(errRemote)

	create, err := s.Create("reservations", Record{"area": "Pool"})
	require.NoError(t, err)
	del, err := s.Delete("reservations", create.ID())
	require.NoError(t, err)

	close(remote.hold)
	a.ErrorIs(waitOp(t, create), errRemote)
	a.ErrorIs(waitOp(t, del), ErrNotPersisted)

	a.Equal([]string{"create reservations"}, remote.writeCalls())
	a.Empty(s.Peek("reservations").Records)
	a.Equal(1, reporter.count(), "the failure is reported once")
}

func TestRefresh_KeepsPendingMutations(t *testing.T) {
	a := assert.New(t)
	remote := newFakeRemote()
	remote.hold = make(chan struct{})
	s := loaded(t, remote, nil, "residents", Record{"id": "2"}, Record{"id": "1"})

	create, err := s.Create("residents", Record{"name": "Bia"})
	require.NoError(t, err)
	del, err := s.Delete("residents", "1")
	require.NoError(t, err)

	require.NoError(t, s.Refresh(context.Background(), "residents"))
	a.Equal([]string{create.ID(), "2"}, ids(s.Peek("residents").Records))

	close(remote.hold)
	require.NoError(t, waitOp(t, create))
	require.NoError(t, waitOp(t, del))
}

func TestCreate_RefetchBeforeConfirmKeepsOneRecord(t *testing.T) {
	a := assert.New(t)
	remote := newFakeRemote()
	remote.replyHold = make(chan struct{})
	s := loaded(t, remote, nil, "incidents", Record{"id": "1", "title": "Leak"})

	op, err := s.Create("incidents", Record{"title": "Broken gate"})
	require.NoError(t, err)
	tempID := op.ID()

	// The row is stored on the server before the create response arrives
	require.Eventually(t, func() bool { return remote.rows("incidents") == 2 }, time.Second, 5*time.Millisecond)
	s.Invalidate("incidents")
	require.NoError(t, s.Refresh(context.Background(), "incidents"))
	a.Equal([]string{tempID, "101", "1"}, ids(s.Peek("incidents").Records))

	close(remote.replyHold)
	require.NoError(t, waitOp(t, op))
	a.Equal("101", op.ID())

	v := s.Peek("incidents")
	a.Equal([]string{"101", "1"}, ids(v.Records))
	a.Equal("Broken gate", v.Records[0]["title"])
}

func TestMutations_CustomRemote(t *testing.T) {
	a := assert.New(t)
	remote := newFakeRemote()
	s := loaded(t, remote, nil, "residents", Record{"id": "1", "email": "ana@example.com"})

	var mu sync.Mutex
	var got []string
	op, err := s.Delete("residents", "1", WithRemoteDelete(func(ctx context.Context, id string) error {
		mu.Lock()
		got = append(got, "rpc delete "+id)
		mu.Unlock()
		return nil
	}))
	require.NoError(t, err)
	require.NoError(t, waitOp(t, op))

	a.Equal([]string{"rpc delete 1"}, got)
	a.Empty(remote.writeCalls(), "the default remote is bypassed")
}

func TestMutations_PerRecordOrder(t *testing.T) {
	remote := newFakeRemote()
	s := loaded(t, remote, nil, "residents", Record{"id": "1", "n": 0})

	var ops []*Op
	for i := 1; i <= 5; i++ {
		op, err := s.Update("residents", "1", Record{"n": i})
		require.NoError(t, err)
		ops = append(ops, op)
	}
	for _, op := range ops {
		require.NoError(t, waitOp(t, op))
	}

	remote.mu.Lock()
	final := remote.tables["residents"][0]["n"]
	remote.mu.Unlock()
	assert.Equal(t, 5, final, "remote writes for one record run in issue order")
	assert.Equal(t, 5, s.Peek("residents").Records[0]["n"])
}
