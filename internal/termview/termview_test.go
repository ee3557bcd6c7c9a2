package termview

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/erauner12/condoboard/internal/cache"
	"github.com/erauner12/condoboard/internal/feed"
	"github.com/erauner12/condoboard/internal/notify"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestResidents(t *testing.T) {
	var buf bytes.Buffer
	err := Residents(&buf, cache.View{
		Collection: "residents",
		State:      cache.StateReady,
		Records: []cache.Record{
			{"id": "temp-1", "name": "Ana Maria Souza", "status": "ok", "unit": "101 - Block A"},
			{"id": float64(7), "name": "Olivia Owner", "role": "owner", "status": "late"},
		},
	})
	require.NoError(t, err)

	out := buf.String()
	a := assert.New(t)
	a.Contains(out, "Ana Souza …")
	a.Contains(out, "101 - Block A")
	a.Contains(out, "Paid up")
	a.Contains(out, "Overdue")
	a.Contains(out, "Manager")
}

func TestState(t *testing.T) {
	tests := []struct {
		view cache.View
		want string
	}{
		{cache.View{Collection: "ledger", State: cache.StateLoading}, "Loading ledger..."},
		{cache.View{Collection: "ledger", State: cache.StateError, Err: errors.New("boom")}, "Could not load ledger: boom"},
		{cache.View{Collection: "ledger", State: cache.StateReady}, "No ledger found."},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		require.NoError(t, Ledger(&buf, tt.view))
		assert.Contains(t, buf.String(), tt.want)
	}
}

func TestLedgerRunningBalance(t *testing.T) {
	var buf bytes.Buffer
	err := Ledger(&buf, cache.View{
		Collection: "ledger",
		State:      cache.StateReady,
		Records: []cache.Record{
			{"id": "a", "description": "Fees", "amount": 500.0, "kind": "income", "date": "2024-03-01"},
			{"id": "b", "description": "Cleaning", "amount": 120.5, "kind": "expense", "date": "2024-03-02"},
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "+500.00")
	assert.Contains(t, out, "-120.50")
	assert.Contains(t, out, "379.50")
}

func TestFeedAndNotices(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, Feed(&buf, []feed.Item{
		{Title: "Broken gate", Icon: "triangle-exclamation", ColorTag: "red", Timestamp: now.Add(-90 * time.Minute)},
		{Title: "Reservation: Pool", Icon: "calendar-check", ColorTag: "blue", Timestamp: now.Add(-72 * time.Hour)},
	}, now))
	assert.Contains(t, buf.String(), "1h ago")
	assert.Contains(t, buf.String(), "2024-04-28")

	buf.Reset()
	require.NoError(t, Feed(&buf, nil, now))
	assert.Contains(t, buf.String(), "No recent activity.")

	buf.Reset()
	Notices(&buf, []notify.Notification{{Kind: notify.KindError, Icon: "circle-exclamation", Message: "A resident with this email already exists"}})
	assert.Equal(t, "[circle-exclamation] A resident with this email already exists\n", buf.String())
}

func TestAgo(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "just now", Ago(now, now.Add(-10*time.Second)))
	assert.Equal(t, "5m ago", Ago(now, now.Add(-5*time.Minute)))
	assert.Equal(t, "-", Ago(now, time.Time{}))
}
