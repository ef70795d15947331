// Package sessionstore provides the process-local session registry.
// Adapter implementing ports.SessionStore.
package sessionstore

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

var _ ports.SessionStore = (*MemoryStore)(nil)

// MemoryStore keeps sessions in insertion order behind a mutex.
// Without options it never evicts; growth is bounded only by Clear.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*entities.Session
	order    []string // ids, oldest first
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithCapacity keeps at most n sessions, evicting the oldest. n <= 0 means unbounded.
func WithCapacity(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithTTL hides and prunes sessions older than d. d <= 0 means no expiry.
func WithTTL(d time.Duration) Option {
	return func(s *MemoryStore) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*entities.Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a new session under a fresh random id.
func (s *MemoryStore) Create(chunks []entities.Chunk, index entities.SearchIndex, filename string) (*entities.Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &entities.Session{
		ID:        id.String(),
		Filename:  filename,
		Chunks:    chunks,
		Index:     index,
		CreatedAt: s.now(),
	}
	s.sessions[sess.ID] = sess
	s.order = append(s.order, sess.ID)

	s.pruneLocked()
	return sess, nil
}

// Get returns the session with the given id.
func (s *MemoryStore) Get(id string) (*entities.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || s.expired(sess) {
		return nil, entities.ErrSessionNotFound
	}
	return sess, nil
}

// Latest returns the most recently inserted live session.
func (s *MemoryStore) Latest() (*entities.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.order) - 1; i >= 0; i-- {
		sess := s.sessions[s.order[i]]
		if !s.expired(sess) {
			return sess, nil
		}
	}
	return nil, entities.ErrNoSession
}

// Clear removes every session.
func (s *MemoryStore) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.order)
	s.sessions = make(map[string]*entities.Session)
	s.order = nil
	return n
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, id := range s.order {
		if !s.expired(s.sessions[id]) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) expired(sess *entities.Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.CreatedAt) > s.ttl
}

// pruneLocked drops expired sessions and enforces capacity. Caller holds mu.
func (s *MemoryStore) pruneLocked() {
	kept := s.order[:0]
	for _, id := range s.order {
		if s.expired(s.sessions[id]) {
			delete(s.sessions, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept

	if s.capacity > 0 {
		for len(s.order) > s.capacity {
			delete(s.sessions, s.order[0])
			s.order = s.order[1:]
		}
	}
}
