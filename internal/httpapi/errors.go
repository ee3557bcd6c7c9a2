package httpapi

import (
	"errors"
	"net/http"

	"github.com/erauner12/condoboard/internal/store"
	"github.com/jackc/pgerrcode"
	"github.com/rs/zerolog/log"
)

// Machine-readable codes carried in error bodies
const (
	codeNotFound     = "not_found"
	codeUnauthorized = "unauthorized"
	codeForbidden    = "forbidden"
	codeInvalidInput = "invalid_input"
	codeRateLimited  = "rate_limited"
	codeInternal     = "internal"
)

// errorBody is the wire shape of every error response
type errorBody struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// writeError writes {"code","message"} with the request's correlation id
func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorBody{
		Code:          code,
		Message:       msg,
		CorrelationID: GetCorrelationID(r.Context()),
	})
}

// writeStoreError maps a store error to its HTTP status and code
func writeStoreError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case store.IsUniqueViolation(err):
		writeError(w, r, http.StatusConflict, pgerrcode.UniqueViolation, err.Error())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrUnknownCollection):
		writeError(w, r, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidRecord):
		writeError(w, r, http.StatusBadRequest, codeInvalidInput, err.Error())
	default:
		log.Ctx(r.Context()).Error().Err(err).Str("op", op).Msg("store failure")
		writeError(w, r, http.StatusInternalServerError, codeInternal, "failed to "+op)
	}
}
