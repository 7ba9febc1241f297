package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Sentinel errors for session lookup. Check with errors.Is().
var (
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
)

// Store is an in-memory session registry keyed by session ID.
// Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	defaults Settings
	sessions map[uuid.UUID]*Session
}

// NewStore creates an empty Store whose sessions start with the package
// default settings.
func NewStore() *Store {
	return NewStoreWith(DefaultSettings())
}

// NewStoreWith creates an empty Store whose sessions start with the given
// settings. Invalid fields are normalized the same way UpdateSettings
// normalizes them.
func NewStoreWith(defaults Settings) *Store {
	return &Store{defaults: defaults, sessions: make(map[uuid.UUID]*Session)}
}

// Create registers a new session seeded with the store defaults.
func (s *Store) Create() *Session {
	sess := New()
	sess.UpdateSettings(s.defaults)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return sess
}

// Get returns the session with the given ID.
func (s *Store) Get(id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// GetByString parses a textual session ID and looks it up. A malformed
// ID reports ErrSessionNotFound, the same as an unknown one.
func (s *Store) GetByString(id string) (*Session, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	return s.Get(parsed)
}

// Delete removes a session. Deleting an unknown ID is a no-op.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
