package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Apurer/dogwalk-api/internal/domains/identity/domain"
	"github.com/Apurer/dogwalk-api/internal/domains/identity/ports"
)

// SessionStore is an in-memory SessionStore implementation.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: map[string]domain.Session{}, now: time.Now}
}

// WithClock replaces time.Now for PurgeExpired.
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

func (s *SessionStore) Save(_ context.Context, session *domain.Session) error {
	if session == nil {
		return errors.New("session is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.TokenID] = *session
	return nil
}

func (s *SessionStore) Get(_ context.Context, tokenID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[tokenID]
	if !ok {
		return nil, ports.ErrSessionNotFound
	}
	return &session, nil
}

func (s *SessionStore) DeleteByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, id)
		}
	}
	return nil
}

func (s *SessionStore) PurgeExpired(_ context.Context) (int64, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			purged++
		}
	}
	return purged, nil
}

var _ ports.SessionStore = (*SessionStore)(nil)
