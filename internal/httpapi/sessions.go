package httpapi

import (
	"sync"
	"time"

	"github.com/erauner12/condoboard/internal/auth"
	"github.com/google/uuid"
)

// Session is one login of an account. Its id is the jti of the token
// issued at login.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s Session) expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStore tracks login sessions so logout and account deletion can
// revoke tokens that have not expired yet. It implements auth.SessionChecker.
type SessionStore struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	byID   map[string]Session
	byUser map[string]map[string]struct{}
}

// NewSessionStore creates an empty store; sessions live for ttl
// (auth.DefaultTokenTTL when zero)
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = auth.DefaultTokenTTL
	}
	return &SessionStore{
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		byID:   make(map[string]Session),
		byUser: make(map[string]map[string]struct{}),
	}
}

// CreateSession opens a session for the account. Expired sessions of the
// same account are dropped on the way.
func (s *SessionStore) CreateSession(userID, email string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id := range s.byUser[userID] {
		if s.byID[id].expired(now) {
			s.removeLocked(id)
		}
	}

	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.byID[sess.ID] = sess
	if s.byUser[userID] == nil {
		s.byUser[userID] = make(map[string]struct{})
	}
	s.byUser[userID][sess.ID] = struct{}{}
	return sess
}

// GetSession returns a live session
func (s *SessionStore) GetSession(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return Session{}, false
	}
	if sess.expired(s.now()) {
		s.removeLocked(id)
		return Session{}, false
	}
	return sess, true
}

// Active reports whether the session is live
func (s *SessionStore) Active(id string) bool {
	_, ok := s.GetSession(id)
	return ok
}

// DeleteSession ends one session and reports whether it existed
func (s *SessionStore) DeleteSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

// DeleteUserSessions ends every session of the account and returns how
// many there were
func (s *SessionStore) DeleteUserSessions(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id := range s.byUser[userID] {
		if s.removeLocked(id) {
			n++
		}
	}
	return n
}

func (s *SessionStore) removeLocked(id string) bool {
	sess, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)
	if ids := s.byUser[sess.UserID]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byUser, sess.UserID)
		}
	}
	return true
}
