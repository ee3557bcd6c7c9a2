package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

// APIKeyHeader carries the project key on every request
const APIKeyHeader = "apikey"

var (
	ErrMissingAPIKey = errors.New("missing apikey header")
	ErrInvalidAPIKey = errors.New("invalid apikey")
)

// ValidateAPIKey checks the request's project key in constant time
func ValidateAPIKey(r *http.Request, key string) error {
	got := r.Header.Get(APIKeyHeader)
	if got == "" {
		got = r.URL.Query().Get(APIKeyHeader)
	}
	if got == "" {
		return ErrMissingAPIKey
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
		return ErrInvalidAPIKey
	}
	return nil
}

// APIKeyMiddleware rejects requests that do not carry the project key.
// An empty key disables the check.
func APIKeyMiddleware(key string) func(http.Handler) http.Handler {
	if key == "" {
		log.Warn().Msg("API key check disabled")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key != "" {
				if err := ValidateAPIKey(r, key); err != nil {
					log.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("api key rejected")
					unauthorized(w, err)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
