package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"wrongnote-service/internal/app"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Notes:
//   - Sessions hold goroutines and subscriber channels, so they stay in a
//     local map.
//   - Redis marks which members currently have an open note session.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
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
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(memberID), "1", s.ttl).Err()
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
	_ = s.client.Del(context.Background(), s.key(memberID)).Err()
	return true
}

func (s *SessionStore) key(memberID string) string {
	return "note:session:" + memberID
}
