package admin

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionTTL is how long an admin login stays valid.
const SessionTTL = 24 * time.Hour

// Sessions is an in-memory admin session store. Sessions die with the
// process; admins simply log in again after a restart.
type Sessions struct {
	mu      sync.Mutex
	entries map[string]time.Time // token → expiry
}

func NewSessions() *Sessions {
	return &Sessions{entries: make(map[string]time.Time)}
}

// Create issues a new session token.
func (s *Sessions) Create() string {
	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	s.entries[token] = time.Now().Add(SessionTTL)
	return token
}

// Valid reports whether the token belongs to a live session.
func (s *Sessions) Valid(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.entries[token]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(s.entries, token)
		return false
	}
	return true
}

// Destroy ends a session. Unknown tokens are ignored.
func (s *Sessions) Destroy(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
}

// prune must be called with mu held.
func (s *Sessions) prune() {
	now := time.Now()
	for token, expiry := range s.entries {
		if now.After(expiry) {
			delete(s.entries, token)
		}
	}
}
