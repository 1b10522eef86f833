package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/dodgy-dave/internal/common"
	"github.com/bobmcallan/dodgy-dave/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SessionStorage implements interfaces.SessionStorage on BadgerDB.
// Sessions are keyed by ID and survive a restart until they expire.
type SessionStorage struct {
	db     *BadgerDB
	logger *common.Logger
	now    func() time.Time
}

// NewSessionStorage creates session storage backed by db.
func NewSessionStorage(db *BadgerDB, logger *common.Logger) *SessionStorage {
	return &SessionStorage{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Get loads a session. Expired sessions are reported as not found and left
// for DeleteExpired.
func (s *SessionStorage) Get(_ context.Context, id string) (*models.Session, error) {
	var sess models.Session
	if err := s.db.Store().Get(id, &sess); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, models.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	if sess.IsExpired(s.now()) {
		return nil, models.ErrSessionNotFound
	}
	sess.ID = id
	return &sess, nil
}

// Save inserts or replaces the session.
func (s *SessionStorage) Save(_ context.Context, sess *models.Session) error {
	if sess.ID == "" {
		return errors.New("session id is required")
	}
	if err := s.db.Store().Upsert(sess.ID, sess); err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	return nil
}

// Delete removes a session. Unknown IDs are not an error.
func (s *SessionStorage) Delete(_ context.Context, id string) error {
	err := s.db.Store().Delete(id, models.Session{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// DeleteExpired removes every session whose expiry is before now.
func (s *SessionStorage) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	query := badgerhold.Where("ExpiresAt").Lt(now)

	count, err := s.db.Store().Count(&models.Session{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count expired sessions: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.db.Store().DeleteMatching(&models.Session{}, query); err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return int(count), nil
}
