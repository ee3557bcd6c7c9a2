package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CorrelationHeader carries the request id from the dashboard client to
// the logs and error bodies of the backend
const CorrelationHeader = "X-Correlation-ID"

// maxCorrelationID bounds ids accepted from clients
const maxCorrelationID = 128

type ctxKey int

const correlationKey ctxKey = iota

// CorrelationMiddleware adopts the caller's correlation id, or assigns one,
// echoes it in the response and attaches a request logger to the context
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if !validCorrelationID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(CorrelationHeader, id)

		logger := log.With().
			Str("correlationId", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		ctx := context.WithValue(logger.WithContext(r.Context()), correlationKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validCorrelationID accepts short printable ids; anything else is replaced
// so it cannot forge log lines
func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationID {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}

// GetCorrelationID returns the correlation id of the request, if any
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey).(string)
	return id
}
