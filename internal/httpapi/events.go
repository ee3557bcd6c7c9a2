package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog/log"
)

// Change event kinds
const (
	ChangeInsert = "insert"
	ChangeUpdate = "update"
	ChangeDelete = "delete"
)

const (
	// ChangeStream is the SSE stream every table change is published on
	ChangeStream = "changes"
	// ChangeEvent is the SSE event type of table changes
	ChangeEvent = "change"
)

// Change is the payload of a change event: only which table changed and how
type Change struct {
	Table string `json:"table"`
	Type  string `json:"type"`
}

// EventHub fans table changes out to SSE subscribers
type EventHub struct {
	server *sse.Server
}

// NewEventHub creates a hub with the change stream already open
func NewEventHub() *EventHub {
	server := sse.New()
	server.AutoReplay = false
	server.CreateStream(ChangeStream)
	return &EventHub{server: server}
}

// Publish announces that table changed
func (h *EventHub) Publish(table, kind string) {
	data, err := json.Marshal(Change{Table: table, Type: kind})
	if err != nil {
		log.Error().Err(err).Msg("failed to encode change event")
		return
	}
	h.server.Publish(ChangeStream, &sse.Event{
		Event: []byte(ChangeEvent),
		Data:  data,
	})
	log.Debug().Str("table", table).Str("type", kind).Msg("change published")
}

// ServeHTTP handles GET /realtime/v1/events?stream=changes
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("stream") == "" {
		q := r.URL.Query()
		q.Set("stream", ChangeStream)
		r.URL.RawQuery = q.Encode()
	}
	log.Ctx(r.Context()).Info().Msg("change stream subscriber connected")
	h.server.ServeHTTP(w, r)
}

// Close disconnects every subscriber
func (h *EventHub) Close() {
	h.server.Close()
}
