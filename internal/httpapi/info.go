package httpapi

import (
	"net/http"
	"time"

	"github.com/erauner12/condoboard/internal/store"
)

// ServerInfo represents the server's capabilities and configuration
type ServerInfo struct {
	APIVersion  string                          `json:"apiVersion"`
	ServerTime  string                          `json:"serverTime"`
	Collections map[string]CollectionCapability `json:"collections"`
	Realtime    RealtimeCapability              `json:"realtime"`
	RateLimit   *RateLimitInfo                  `json:"rateLimit,omitempty"`
}

// RateLimitInfo describes the server's rate limiting policy
type RateLimitInfo struct {
	WindowSeconds int `json:"windowSeconds"` // e.g. 60
	MaxRequests   int `json:"maxRequests"`   // per window
	Burst         int `json:"burst"`         // token bucket size
}

// CollectionCapability describes one collection
type CollectionCapability struct {
	MaxLimit     int      `json:"maxLimit"`
	Required     []string `json:"required"`
	Unique       []string `json:"unique,omitempty"`
	DefaultOrder string   `json:"defaultOrder"`
}

// RealtimeCapability describes the change stream
type RealtimeCapability struct {
	Path   string `json:"path"`
	Stream string `json:"stream"`
	Event  string `json:"event"`
}

// Info handles GET /info
// Can be called without authentication to allow capability discovery
func (s *Server) Info(w http.ResponseWriter, r *http.Request) {
	collections := make(map[string]CollectionCapability, len(store.Collections))
	for _, name := range store.Names() {
		schema := store.Collections[name]
		collections[name] = CollectionCapability{
			MaxLimit:     maxListLimit,
			Required:     schema.Required,
			Unique:       schema.Unique,
			DefaultOrder: schema.DefaultOrder,
		}
	}

	writeJSON(w, http.StatusOK, ServerInfo{
		APIVersion:  "1.0",
		ServerTime:  time.Now().UTC().Format(time.RFC3339Nano),
		Collections: collections,
		Realtime: RealtimeCapability{
			Path:   "/realtime/v1/events",
			Stream: ChangeStream,
			Event:  ChangeEvent,
		},
		RateLimit: &s.RateLimitConfig,
	})
}
