package memory

import (
	"sync"

	"wrongnote-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(memberID string, create func() *app.Session) (*app.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[memberID]; ok {
		return session, false
	}
	session := create()
	s.sessions[memberID] = session
	return session, true
}

func (s *SessionStore) Get(memberID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[memberID]
	return session, ok
}

func (s *SessionStore) DeleteIfEmpty(memberID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[memberID]
	if !ok || !session.IsEmpty() {
		return false
	}
	delete(s.sessions, memberID)
	return true
}
