package storage

import (
	"fmt"

	"github.com/bobmcallan/dodgy-dave/internal/common"
	"github.com/bobmcallan/dodgy-dave/internal/config"
	"github.com/bobmcallan/dodgy-dave/internal/interfaces"
	"github.com/bobmcallan/dodgy-dave/internal/storage/badger"
	"github.com/bobmcallan/dodgy-dave/internal/storage/memory"
)

// NewStorageManager creates a storage manager for the configured session backend.
func NewStorageManager(logger *common.Logger, cfg *config.Config) (interfaces.StorageManager, error) {
	switch cfg.Session.Backend {
	case "", "memory":
		return memory.NewManager(cfg.Session.MaxEntries), nil
	case "badger":
		m, err := badger.NewManager(logger, &cfg.Storage.Badger)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}
