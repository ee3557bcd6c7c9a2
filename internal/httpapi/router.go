package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/erauner12/condoboard/internal/auth"
	"github.com/erauner12/condoboard/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// Server holds dependencies for HTTP handlers
type Server struct {
	Store    store.Store
	Events   *EventHub
	Sessions *SessionStore

	JWT    auth.JWTCfg
	APIKey string

	RateLimitConfig RateLimitInfo
	// AllowedOrigins for browser clients; empty allows any origin
	AllowedOrigins []string
}

// NewServer wires a server around st with a fresh event hub and session store
func NewServer(st store.Store, jwt auth.JWTCfg, apiKey string) *Server {
	return &Server{
		Store:    st,
		Events:   NewEventHub(),
		Sessions: NewSessionStore(jwt.TTL),
		JWT:      jwt,
		APIKey:   apiKey,
		RateLimitConfig: RateLimitInfo{
			WindowSeconds: 60,
			MaxRequests:   600,
			Burst:         120,
		},
	}
}

// listResp is the response body for list endpoints
type listResp struct {
	Items []store.Record `json:"items"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

// parseLimit parses a limit query param with default and max
func parseLimit(q string, def, max int) int {
	if q == "" {
		return def
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// Routes creates the HTTP router with all endpoints
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CorrelationMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := s.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", auth.APIKeyHeader, CorrelationHeader},
		ExposedHeaders:   []string{CorrelationHeader, "Retry-After", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check (unauthenticated)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	})
	r.Get("/info", s.Info)

	r.Group(func(r chi.Router) {
		r.Use(auth.APIKeyMiddleware(s.APIKey))

		r.Post("/auth/v1/login", s.Login)
		r.Get("/realtime/v1/events", s.Events.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.JWT, s.Sessions))
			r.Use(RateLimitMiddleware(s.RateLimitConfig))

			r.Post("/auth/v1/logout", s.Logout)
			r.Get("/auth/v1/session", s.CurrentSession)

			r.Get("/rest/v1/{collection}", s.ListRecords)
			r.Post("/rest/v1/{collection}", s.CreateRecord)
			r.Get("/rest/v1/{collection}/{id}", s.GetRecord)
			r.Patch("/rest/v1/{collection}/{id}", s.UpdateRecord)
			r.Delete("/rest/v1/{collection}/{id}", s.DeleteRecord)

			r.Post("/rest/v1/rpc/{name}", s.CallRPC)
			r.Get("/rest/v1/aggregate/{name}", s.Aggregate)
		})
	})

	log.Info().Msg("HTTP routes registered")
	return r
}
