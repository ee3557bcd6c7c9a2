package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erauner12/condoboard/internal/auth"
	"github.com/erauner12/condoboard/internal/store"
)

const (
	testAPIKey = "anon-key"
	testSecret = "test-secret"

	ownerEmail    = "owner@example.com"
	ownerPassword = "owner-pass"
	tenantEmail   = "tenant@example.com"
	tenantPass    = "tenant-pass"
)

// newTestServer returns a server over a memory store seeded with a manager
// and a regular resident, each with a login account
func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	st := store.NewMemory()
	ctx := context.Background()
	seed := []struct {
		email, password, name, role string
	}{
		{ownerEmail, ownerPassword, "Olivia Owner", "owner"},
		{tenantEmail, tenantPass, "Tom Tenant", "resident"},
	}
	for _, s := range seed {
		hash, err := auth.HashPassword(s.password)
		if err != nil {
			t.Fatalf("Failed to hash password: %v", err)
		}
		if _, err := st.CreateAccount(ctx, s.email, hash); err != nil {
			t.Fatalf("Failed to create account: %v", err)
		}
		if _, err := st.Insert(ctx, "residents", store.Record{"name": s.name, "email": s.email, "role": s.role}); err != nil {
			t.Fatalf("Failed to insert resident: %v", err)
		}
	}

	srv := NewServer(st, auth.JWTCfg{HS256Secret: testSecret, Issuer: "condoboard-test"}, testAPIKey)
	t.Cleanup(srv.Events.Close)
	return srv, srv.Routes()
}

// login logs in through the router and returns the access token
func login(t *testing.T, router http.Handler, email, password string) string {
	t.Helper()

	w := doRequest(t, router, "POST", "/auth/v1/login", map[string]string{"email": email, "password": password}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Login failed: got status %d, body: %s", w.Code, w.Body.String())
	}

	var resp loginResp
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode login response: %v", err)
	}
	return resp.AccessToken
}

// doRequest makes an HTTP request carrying the API key and, when token is
// set, a bearer token
func doRequest(t *testing.T, router http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var bodyReader *bytes.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	} else {
		bodyReader = bytes.NewReader([]byte{})
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.APIKeyHeader, testAPIKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v (body: %s)", err, w.Body.String())
	}
	return v
}

func doRequestWithoutKey(t *testing.T, router http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
