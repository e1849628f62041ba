package webui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultLoginSessionTTL is how long a login stays valid.
const DefaultLoginSessionTTL = 24 * time.Hour

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// LoginSession is one authenticated browser. It is unrelated to the
// webcam recording session.
type LoginSession struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s LoginSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SessionStore keeps login sessions in memory. Restarting the server logs
// everyone out. Thread-safe.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]LoginSession
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a store. ttl <= 0 selects DefaultLoginSessionTTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultLoginSessionTTL
	}
	return &SessionStore{
		sessions: make(map[string]LoginSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL returns the session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Create issues a new session with a random id.
func (s *SessionStore) Create() (LoginSession, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return LoginSession{}, fmt.Errorf("generate session id: %w", err)
	}

	now := s.now()
	session := LoginSession{ID: id.String(), CreatedAt: now, ExpiresAt: now.Add(s.ttl)}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session, nil
}

// Get returns the session, removing it if it has expired.
func (s *SessionStore) Get(sessionID string) (LoginSession, error) {
	s.mu.RLock()
	session, exists := s.sessions[sessionID]
	s.mu.RUnlock()

	if !exists {
		return LoginSession{}, ErrSessionNotFound
	}
	if session.Expired(s.now()) {
		s.Delete(sessionID)
		return LoginSession{}, ErrSessionExpired
	}
	return session, nil
}

// Delete removes a session. Unknown ids are ignored.
func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// Cleanup removes expired sessions and returns how many were dropped.
func (s *SessionStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartCleanupTicker runs Cleanup every interval until ctx is cancelled.
func (s *SessionStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}

// Count returns the number of stored sessions, expired ones included.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
