// Package memory keeps sessions in process memory.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bobmcallan/dodgy-dave/internal/interfaces"
	"github.com/bobmcallan/dodgy-dave/internal/models"
)

// entry wraps a stored session with insertion order tracking.
type entry struct {
	session   *models.Session
	insertIdx int64
}

// SessionStorage implements interfaces.SessionStorage in memory.
// When full, the least recently saved session is evicted.
// Thread-safe with sync.RWMutex.
type SessionStorage struct {
	mu         sync.RWMutex
	items      map[string]entry
	maxEntries int
	nextIdx    int64
	now        func() time.Time
}

// NewSessionStorage creates storage holding at most maxEntries sessions.
func NewSessionStorage(maxEntries int) *SessionStorage {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &SessionStorage{
		items:      make(map[string]entry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns a copy of the session if found and not expired.
func (s *SessionStorage) Get(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	e, ok := s.items[id]
	s.mu.RUnlock()

	if !ok {
		return nil, models.ErrSessionNotFound
	}

	if e.session.IsExpired(s.now()) {
		// Expired: remove lazily
		s.mu.Lock()
		if e2, ok2 := s.items[id]; ok2 && e2.session.IsExpired(s.now()) {
			delete(s.items, id)
		}
		s.mu.Unlock()
		return nil, models.ErrSessionNotFound
	}

	return e.session.Clone(), nil
}

// Save stores a copy of the session. Evicts the oldest entry if at capacity.
func (s *SessionStorage) Save(_ context.Context, sess *models.Session) error {
	if sess.ID == "" {
		return errors.New("session id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{
		session:   sess.Clone(),
		insertIdx: s.nextIdx,
	}
	s.nextIdx++

	if _, exists := s.items[sess.ID]; exists {
		s.items[sess.ID] = e
		return nil
	}

	if len(s.items) >= s.maxEntries {
		s.evictOldest()
	}

	s.items[sess.ID] = e
	return nil
}

// Delete removes a session.
func (s *SessionStorage) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, id)
	return nil
}

// DeleteExpired removes every session that expired before now.
func (s *SessionStorage) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.items {
		if e.session.IsExpired(now) {
			delete(s.items, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions, expired or not.
func (s *SessionStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// evictOldest removes the entry with the lowest insertIdx. Must be called with mu held.
func (s *SessionStorage) evictOldest() {
	var oldestID string
	var oldestIdx int64 = -1

	for id, e := range s.items {
		if oldestIdx == -1 || e.insertIdx < oldestIdx {
			oldestIdx = e.insertIdx
			oldestID = id
		}
	}

	if oldestID != "" {
		delete(s.items, oldestID)
	}
}

// Manager implements interfaces.StorageManager for in-memory storage.
type Manager struct {
	sessions *SessionStorage
}

// NewManager creates an in-memory storage manager.
func NewManager(maxEntries int) *Manager {
	return &Manager{sessions: NewSessionStorage(maxEntries)}
}

// SessionStorage returns the session storage.
func (m *Manager) SessionStorage() interfaces.SessionStorage {
	return m.sessions
}

// Close is a no-op.
func (m *Manager) Close() error {
	return nil
}
