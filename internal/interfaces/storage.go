package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/dodgy-dave/internal/models"
)

// StorageManager provides access to domain-specific storage interfaces.
// Implementations can be swapped (in-memory or BadgerDB).
type StorageManager interface {
	SessionStorage() SessionStorage
	Close() error
}

// SessionStorage persists browser sessions. Get returns
// models.ErrSessionNotFound for unknown and expired IDs.
// Implementations store copies; callers own the sessions they get back.
type SessionStorage interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
