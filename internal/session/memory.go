package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process session store used in development and
// tests, when no REDIS_URL is configured. Sessions do not survive a
// restart and are not shared across instances.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	ttl      time.Duration
}

type memoryEntry struct {
	session Session
	expires time.Time
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
	}
}

// Get loads a session by token. Unknown or expired tokens yield (nil, nil).
func (s *MemoryStore) Get(ctx context.Context, token string) (*Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok || time.Now().After(entry.expires) {
		return nil, nil
	}

	sess := entry.session
	sess.Token = token
	return &sess, nil
}

// Put stores a session and refreshes its TTL.
func (s *MemoryStore) Put(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	s.sessions[sess.Token] = memoryEntry{
		session: *sess,
		expires: time.Now().Add(s.ttl),
	}
	s.mu.Unlock()
	return nil
}

// Delete removes a session.
func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close releases the store.
func (s *MemoryStore) Close() error {
	return nil
}
