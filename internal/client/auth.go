package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// SessionRefreshBuffer is the time before expiry to proactively re-authenticate
	SessionRefreshBuffer = 1 * time.Minute
)

// AuthClient manages the login session and acts as the TokenSource of the
// HTTP client. Credentials from the last successful Login are remembered so
// an expired session can be renewed without user interaction.
type AuthClient struct {
	mu   sync.RWMutex
	http *HTTPClient

	email    string
	password string

	cachedSession *Session
}

// NewAuthClient creates an auth client and attaches it as the token source
func NewAuthClient(httpClient *HTTPClient) *AuthClient {
	a := &AuthClient{http: httpClient}
	httpClient.SetTokenSource(a)
	return a
}

// Login authenticates with email and password and caches the session
func (a *AuthClient) Login(ctx context.Context, email, password string) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, err := a.login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	a.email = email
	a.password = password
	a.cachedSession = session
	return session, nil
}

// login performs the password grant (caller must hold the write lock)
func (a *AuthClient) login(ctx context.Context, email, password string) (*Session, error) {
	req, err := a.http.newJSONRequest(ctx, http.MethodPost, "/auth/v1/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	resp, err := a.http.DoAnonymous(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to log in: %w", err)
	}
	defer resp.Body.Close()

	var session Session
	if err := decodeResponse(resp, &session, http.StatusOK); err != nil {
		return nil, err
	}

	log.Info().
		Str("userId", session.User.ID).
		Time("expiresAt", session.ExpiresAt).
		Msg("logged in")

	return &session, nil
}

// Session returns a valid session, renewing it with remembered credentials
// when it is about to expire. Returns ErrNoSession when none can be produced.
func (a *AuthClient) Session(ctx context.Context) (*Session, error) {
	// Fast path: check if cached session is still valid (read lock only)
	a.mu.RLock()
	cached := a.cachedSession
	a.mu.RUnlock()

	if cached.Valid(SessionRefreshBuffer) {
		return cached, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check: another goroutine may have renewed while we waited for lock
	if a.cachedSession.Valid(SessionRefreshBuffer) {
		return a.cachedSession, nil
	}

	if a.email == "" || a.password == "" {
		return nil, ErrNoSession
	}

	log.Debug().Str("email", a.email).Msg("session expired, logging in again")
	session, err := a.login(ctx, a.email, a.password)
	if err != nil {
		return nil, err
	}
	a.cachedSession = session
	return session, nil
}

// Token implements TokenSource
func (a *AuthClient) Token(ctx context.Context) (string, error) {
	session, err := a.Session(ctx)
	if err != nil {
		return "", err
	}
	return session.AccessToken, nil
}

// Invalidate implements TokenSource: the next call to Session renews
func (a *AuthClient) Invalidate() {
	a.mu.Lock()
	a.cachedSession = nil
	a.mu.Unlock()

	log.Debug().Msg("invalidated cached session")
}

// CurrentUser asks the server who the current token belongs to
func (a *AuthClient) CurrentUser(ctx context.Context) (*User, error) {
	req, err := a.http.newJSONRequest(ctx, http.MethodGet, "/auth/v1/session", nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		User User `json:"user"`
	}
	if err := decodeResponse(resp, &body, http.StatusOK); err != nil {
		return nil, err
	}
	return &body.User, nil
}

// Logout revokes the session server-side and forgets credentials.
// The local state is cleared even when the server call fails.
func (a *AuthClient) Logout(ctx context.Context) error {
	a.mu.Lock()
	session := a.cachedSession
	a.cachedSession = nil
	a.email = ""
	a.password = ""
	a.mu.Unlock()

	if session == nil {
		return nil
	}

	req, err := a.http.newJSONRequest(ctx, http.MethodPost, "/auth/v1/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)

	// Anonymous: the token was already dropped from the cache
	resp, err := a.http.DoAnonymous(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	defer resp.Body.Close()

	if err := decodeResponse(resp, nil, http.StatusOK, http.StatusNoContent); err != nil {
		return err
	}

	log.Info().Str("userId", session.User.ID).Msg("logged out")
	return nil
}
