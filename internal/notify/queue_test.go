package notify

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erauner12/condoboard/internal/cache"
)

// compile-time check that the queue can receive cache failures
var _ cache.Reporter = (*Queue)(nil)

func TestQueue_ShowAndDismiss(t *testing.T) {
	a := assert.New(t)
	q := NewQueue(time.Hour)
	defer q.Close()

	first := q.Success("Resident saved")
	second := q.Error("Could not delete")
	q.Info("Refreshing")

	active := q.Active()
	require.Len(t, active, 3)
	a.Equal(KindSuccess, active[0].Kind)
	a.Equal("circle-check", active[0].Icon)
	a.Equal(KindError, active[1].Kind)
	a.Equal("circle-exclamation", active[1].Icon)
	a.Equal("circle-info", active[2].Icon)

	a.True(q.Dismiss(second))
	a.False(q.Dismiss(second), "dismissing twice is a no-op")
	active = q.Active()
	require.Len(t, active, 2)
	a.Equal(first, active[0].ID)
}

func TestQueue_AutoDismiss(t *testing.T) {
	q := NewQueue(20 * time.Millisecond)
	defer q.Close()

	q.Info("short lived")
	require.Len(t, q.Active(), 1)
	assert.Eventually(t, func() bool { return len(q.Active()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestQueue_DefaultTTL(t *testing.T) {
	q := NewQueue(0)
	defer q.Close()
	assert.Equal(t, DefaultTTL, q.ttl)
}

func TestQueue_Listeners(t *testing.T) {
	q := NewQueue(time.Hour)
	defer q.Close()

	var mu sync.Mutex
	var sizes []int
	unsubscribe := q.Subscribe(func(items []Notification) {
		mu.Lock()
		sizes = append(sizes, len(items))
		mu.Unlock()
	})

	id := q.Success("one")
	q.Success("two")
	q.Dismiss(id)
	unsubscribe()
	q.Success("three")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 1}, sizes)
}

func TestQueue_ReportFailure(t *testing.T) {
	a := assert.New(t)
	q := NewQueue(time.Hour)
	defer q.Close()

	q.ReportFailure(cache.Failure{Kind: cache.KindDelete, Collection: "residents", Message: "Could not remove resident"})
	q.ReportFailure(cache.Failure{Kind: cache.KindCreate, Err: errors.New("timeout")})

	active := q.Active()
	require.Len(t, active, 2)
	a.Equal(KindError, active[0].Kind)
	a.Equal("Could not remove resident", active[0].Message)
	a.Equal("timeout", active[1].Message)
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue(time.Hour)
	q.Info("pending")
	q.Close()

	assert.Empty(t, q.Active())
	assert.Zero(t, q.Show(KindInfo, "after close"))
}
