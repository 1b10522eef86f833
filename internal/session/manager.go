// Package session owns per-browser workflow sessions: creation, locked
// read-modify-write updates and the expiry sweep.
package session

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/bobmcallan/dodgy-dave/internal/common"
	"github.com/bobmcallan/dodgy-dave/internal/interfaces"
	"github.com/bobmcallan/dodgy-dave/internal/models"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const lockStripes = 64

// Manager serializes changes to a session and persists them.
type Manager struct {
	store         interfaces.SessionStorage
	historyPrompt string
	ttl           time.Duration
	logger        *common.Logger
	now           func() time.Time

	locks [lockStripes]sync.Mutex

	cronMu sync.Mutex
	cron   *cron.Cron
}

// NewManager creates a session manager over store. New sessions start their
// conversation with historyPrompt and live for ttl.
func NewManager(store interfaces.SessionStorage, historyPrompt string, ttl time.Duration, logger *common.Logger) *Manager {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Manager{
		store:         store,
		historyPrompt: historyPrompt,
		ttl:           ttl,
		logger:        logger,
		now:           time.Now,
	}
}

func (m *Manager) lock(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &m.locks[h.Sum32()%lockStripes]
}

// Create starts a new idle session and stores it.
func (m *Manager) Create(ctx context.Context) (*models.Session, error) {
	s := models.NewSession(uuid.New().String(), m.historyPrompt, m.now(), m.ttl)
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	m.logger.Debug().Str("session_id", s.ID).Msg("session created")
	return s, nil
}

// Get returns a snapshot of the session.
func (m *Manager) Get(ctx context.Context, id string) (*models.Session, error) {
	if id == "" {
		return nil, models.ErrSessionNotFound
	}
	return m.store.Get(ctx, id)
}

// Load returns the session for id, creating a fresh one when id is empty,
// unknown or expired. created reports whether a new session was made.
func (m *Manager) Load(ctx context.Context, id string) (s *models.Session, created bool, err error) {
	s, err = m.Get(ctx, id)
	if err == nil {
		return s, false, nil
	}
	if !errors.Is(err, models.ErrSessionNotFound) {
		return nil, false, err
	}
	s, err = m.Create(ctx)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// Update loads the session under its lock, applies fn and saves the result.
// The session is saved even when fn returns an error, since validation
// failures still change what the page shows. fn's error is returned.
func (m *Manager) Update(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, error) {
	mu := m.lock(id)
	mu.Lock()
	defer mu.Unlock()

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fnErr := fn(s)

	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session %s: %w", id, err)
	}
	return s, fnErr
}

// Delete removes a session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	mu := m.lock(id)
	mu.Lock()
	defer mu.Unlock()
	return m.store.Delete(ctx, id)
}

// Sweep removes expired sessions and returns how many were removed.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	n, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info().Int("removed", n).Msg("expired sessions swept")
	}
	return n, nil
}

// StartSweeper runs Sweep on the given cron schedule (e.g. "@every 5m")
// until StopSweeper is called.
func (m *Manager) StartSweeper(schedule string) error {
	m.cronMu.Lock()
	defer m.cronMu.Unlock()

	if m.cron != nil {
		return errors.New("session sweeper already running")
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := m.Sweep(context.Background()); err != nil {
			m.logger.Warn().Err(err).Msg("session sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	c.Start()
	m.cron = c
	m.logger.Debug().Str("schedule", schedule).Msg("session sweeper started")
	return nil
}

// StopSweeper stops the sweeper and waits for a running sweep to finish.
func (m *Manager) StopSweeper() {
	m.cronMu.Lock()
	c := m.cron
	m.cron = nil
	m.cronMu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
