package badger

import (
	"github.com/bobmcallan/dodgy-dave/internal/common"
	"github.com/bobmcallan/dodgy-dave/internal/config"
	"github.com/bobmcallan/dodgy-dave/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger.
type Manager struct {
	db       *BadgerDB
	sessions *SessionStorage
	logger   *common.Logger
}

// NewManager opens the database and wires its storage.
func NewManager(logger *common.Logger, cfg *config.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, cfg)
	if err != nil {
		return nil, err
	}

	logger.Debug().Str("path", cfg.Path).Msg("badger storage manager initialized")

	return &Manager{
		db:       db,
		sessions: NewSessionStorage(db, logger),
		logger:   logger,
	}, nil
}

// SessionStorage returns the session storage.
func (m *Manager) SessionStorage() interfaces.SessionStorage {
	return m.sessions
}

// Close closes the database connection.
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
