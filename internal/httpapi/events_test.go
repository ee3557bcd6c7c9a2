package httpapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erauner12/condoboard/internal/auth"
	"github.com/r3labs/sse/v2"
)

func TestEvents_WritesPublishChanges(t *testing.T) {
	_, router := newTestServer(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	token := login(t, router, ownerEmail, ownerPassword)

	client := sse.NewClient(ts.URL + "/realtime/v1/events")
	client.Headers[auth.APIKeyHeader] = testAPIKey

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Change, 100)
	go client.SubscribeWithContext(ctx, ChangeStream, func(ev *sse.Event) {
		if string(ev.Event) != ChangeEvent {
			return
		}
		var c Change
		if err := json.Unmarshal(ev.Data, &c); err == nil {
			changes <- c
		}
	})

	// Events published before the subscriber attaches are not replayed,
	// so keep writing until one comes through.
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(5 * time.Second)
	for {
		w := doRequest(t, router, "POST", "/rest/v1/incidents", map[string]any{"title": "Broken gate"}, token)
		if w.Code != 201 {
			t.Fatalf("Create failed: %d %s", w.Code, w.Body.String())
		}

		select {
		case c := <-changes:
			if c.Table != "incidents" || c.Type != ChangeInsert {
				t.Errorf("Unexpected change: %+v", c)
			}
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("Timed out waiting for change event")
		}
	}
}

func TestEvents_RequireAPIKey(t *testing.T) {
	_, router := newTestServer(t)

	w := doRequestWithoutKey(t, router, "GET", "/realtime/v1/events?stream="+ChangeStream)
	if w.Code != 401 {
		t.Errorf("Expected 401 without apikey, got %d", w.Code)
	}
}
