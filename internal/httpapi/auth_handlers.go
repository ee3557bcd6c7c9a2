package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/erauner12/condoboard/internal/auth"
	"github.com/erauner12/condoboard/internal/store"
	"github.com/rs/zerolog/log"
)

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type loginResp struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        sessionUser `json:"user"`
}

// Login handles POST /auth/v1/login
// Checks the password and issues a token bound to a new login session
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidInput, "invalid json body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, codeInvalidInput, "email and password are required")
		return
	}

	account, err := s.Store.AccountByEmail(ctx, email)
	if err == nil {
		err = auth.CheckPassword(account.PasswordHash, req.Password)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, auth.ErrBadCredentials) {
			logger.Warn().Str("email", email).Msg("login rejected")
			writeError(w, r, http.StatusUnauthorized, codeUnauthorized, auth.ErrBadCredentials.Error())
			return
		}
		logger.Error().Err(err).Msg("failed to load account")
		writeError(w, r, http.StatusInternalServerError, codeInternal, "failed to log in")
		return
	}

	session := s.Sessions.CreateSession(account.ID, account.Email)
	token, expiresAt, err := auth.IssueToken(s.JWT, account.ID, account.Email, session.ID)
	if err != nil {
		s.Sessions.DeleteSession(session.ID)
		logger.Error().Err(err).Msg("failed to issue token")
		writeError(w, r, http.StatusInternalServerError, codeInternal, "failed to log in")
		return
	}

	logger.Info().
		Str("userId", account.ID).
		Str("sessionId", session.ID).
		Time("expiresAt", expiresAt).
		Msg("login session created")

	writeJSON(w, http.StatusOK, loginResp{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        sessionUser{ID: account.ID, Email: account.Email},
	})
}

// Logout handles POST /auth/v1/logout
// Revokes the session the token belongs to
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := auth.SessionID(r.Context())
	s.Sessions.DeleteSession(sessionID)

	log.Ctx(r.Context()).Info().Str("sessionId", sessionID).Msg("login session ended")
	w.WriteHeader(http.StatusNoContent)
}

// CurrentSession handles GET /auth/v1/session
func (s *Server) CurrentSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, map[string]sessionUser{
		"user": {ID: auth.UserID(ctx), Email: auth.Email(ctx)},
	})
}
