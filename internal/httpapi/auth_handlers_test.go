package httpapi

import (
	"net/http"
	"testing"
	"time"
)

func TestLogin_IssuesWorkingToken(t *testing.T) {
	_, router := newTestServer(t)

	token := login(t, router, ownerEmail, ownerPassword)

	w := doRequest(t, router, "GET", "/auth/v1/session", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody[map[string]sessionUser](t, w)
	if resp["user"].Email != ownerEmail || resp["user"].ID == "" {
		t.Errorf("Unexpected session user: %+v", resp["user"])
	}
}

func TestLogin_Rejections(t *testing.T) {
	_, router := newTestServer(t)

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{"wrong password", map[string]string{"email": ownerEmail, "password": "nope"}, http.StatusUnauthorized},
		{"unknown email", map[string]string{"email": "ghost@example.com", "password": "x"}, http.StatusUnauthorized},
		{"missing password", map[string]string{"email": ownerEmail}, http.StatusBadRequest},
		{"not json", "plain", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, "POST", "/auth/v1/login", tt.body, "")
			if w.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestLogin_EmailIsCaseInsensitive(t *testing.T) {
	_, router := newTestServer(t)

	login(t, router, "  OWNER@Example.com ", ownerPassword)
}

func TestLogout_RevokesToken(t *testing.T) {
	_, router := newTestServer(t)
	token := login(t, router, ownerEmail, ownerPassword)
	other := login(t, router, ownerEmail, ownerPassword)

	w := doRequest(t, router, "POST", "/auth/v1/logout", nil, token)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", w.Code)
	}

	w = doRequest(t, router, "GET", "/rest/v1/residents", nil, token)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected revoked token to get 401, got %d", w.Code)
	}

	// Other sessions of the same account stay valid
	w = doRequest(t, router, "GET", "/rest/v1/residents", nil, other)
	if w.Code != http.StatusOK {
		t.Errorf("Expected second session to remain valid, got %d", w.Code)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	_, router := newTestServer(t)

	w := doRequest(t, router, "GET", "/healthz", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("healthz should not need a key, got %d", w.Code)
	}

	req := doRequestWithoutKey(t, router, "POST", "/auth/v1/login")
	if req.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without apikey, got %d", req.Code)
	}
}

func TestSessionStore(t *testing.T) {
	s := NewSessionStore(0)

	a := s.CreateSession("user-1", "a@example.com")
	b := s.CreateSession("user-1", "a@example.com")
	c := s.CreateSession("user-2", "b@example.com")

	if !s.Active(a.ID) || !s.Active(c.ID) {
		t.Fatal("Expected new sessions to be active")
	}
	if n := s.DeleteUserSessions("user-1"); n != 2 {
		t.Errorf("Expected 2 sessions deleted, got %d", n)
	}
	if s.Active(a.ID) || s.Active(b.ID) {
		t.Error("Expected user-1 sessions to be revoked")
	}
	if !s.DeleteSession(c.ID) || s.DeleteSession(c.ID) {
		t.Error("DeleteSession should report whether the session existed")
	}
}

func TestSessionStore_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessionStore(time.Hour)
	s.now = func() time.Time { return now }

	old := s.CreateSession("user-1", "a@example.com")
	now = now.Add(2 * time.Hour)
	if s.Active(old.ID) {
		t.Fatal("Expected session to expire after its ttl")
	}

	fresh := s.CreateSession("user-1", "a@example.com")
	if !s.Active(fresh.ID) {
		t.Fatal("Expected new session to be active")
	}
	if n := s.DeleteUserSessions("user-1"); n != 1 {
		t.Errorf("Expected only the live session to remain, deleted %d", n)
	}
}
