package client

import "time"

// Record is a single row of a collection, keyed by field name.
// The "id" field holds the row's stable identifier.
type Record = map[string]any

// User identifies the account behind a session
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an authenticated session issued by the auth endpoint
type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

// Valid reports whether the session is present and not within buffer of expiry
func (s *Session) Valid(buffer time.Duration) bool {
	return s != nil && s.AccessToken != "" && time.Now().Add(buffer).Before(s.ExpiresAt)
}

// ListOpts configures a collection list call
type ListOpts struct {
	// Order is "<field>.asc" or "<field>.desc"; empty uses the server default
	Order string
	Limit int
	// Eq filters rows by exact field equality
	Eq map[string]string
}

// listResponse is the wire shape of a list call
type listResponse struct {
	Items []Record `json:"items"`
}

// errorResponse is the wire shape of an error body
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
