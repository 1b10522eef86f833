package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/dodgy-dave/internal/common"
	"github.com/bobmcallan/dodgy-dave/internal/completion"
	"github.com/bobmcallan/dodgy-dave/internal/config"
	"github.com/bobmcallan/dodgy-dave/internal/handlers"
	"github.com/bobmcallan/dodgy-dave/internal/interfaces"
	"github.com/bobmcallan/dodgy-dave/internal/marketdata"
	"github.com/bobmcallan/dodgy-dave/internal/session"
	"github.com/bobmcallan/dodgy-dave/internal/storage"
	"github.com/bobmcallan/dodgy-dave/internal/workflow"
)

// staleGrace pads the stale-loading window past both upstream timeouts.
const staleGrace = 30 * time.Second

// App holds all application components and dependencies.
type App struct {
	Config *config.Config
	Logger *common.Logger

	Storage  interfaces.StorageManager
	Sessions *session.Manager
	Workflow *workflow.Workflow

	// HTTP handlers
	PageHandler    *handlers.PageHandler
	ReportHandler  *handlers.ReportHandler
	HealthHandler  *handlers.HealthHandler
	VersionHandler *handlers.VersionHandler
}

// New initializes the application with all dependencies.
func New(cfg *config.Config, logger *common.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	// Validate environment setting
	env := strings.ToLower(strings.TrimSpace(cfg.Environment))
	if cfg.IsDevMode() {
		logger.Warn().Msg("RUNNING IN DEV MODE: HTTP shutdown endpoint enabled")
	} else if env != "prod" && env != "" {
		logger.Warn().
			Str("environment", cfg.Environment).
			Msg("unrecognized environment value, defaulting to prod behavior")
	}

	wf, err := NewWorkflow(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Workflow = wf

	if err := a.initSessions(); err != nil {
		return nil, err
	}

	a.initHandlers()

	logger.Info().
		Str("session_backend", cfg.Session.Backend).
		Str("completion_provider", cfg.Completion.Provider).
		Msg("application initialization complete")

	return a, nil
}

// NewWorkflow builds the report workflow from config. The CLI uses it
// without the HTTP layer.
func NewWorkflow(cfg *config.Config, logger *common.Logger) (*workflow.Workflow, error) {
	fetcher := marketdata.NewClient(cfg.MarketData.URL,
		marketdata.WithTimeout(cfg.MarketDataTimeout()),
		marketdata.WithRateLimit(cfg.MarketData.RateLimit),
		marketdata.WithLogger(logger.WithComponent("marketdata")),
	)

	requester, err := completion.New(cfg.Completion, cfg.CompletionTimeout(), logger.WithComponent("completion"))
	if err != nil {
		return nil, fmt.Errorf("failed to create completion requester: %w", err)
	}

	return workflow.New(fetcher, requester, cfg.Report.SystemPrompt,
		workflow.WithFormatter(workflow.NewFormatter(cfg.Report.DateLayout, cfg.Location())),
		workflow.WithLogger(logger.WithComponent("workflow")),
		workflow.WithStaleAfter(cfg.MarketDataTimeout()+cfg.CompletionTimeout()+staleGrace),
	), nil
}

// initSessions opens session storage and starts the expiry sweep.
func (a *App) initSessions() error {
	store, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to open session storage: %w", err)
	}
	a.Storage = store

	a.Sessions = session.NewManager(store.SessionStorage(), a.Config.Report.HistoryPrompt, a.Config.SessionTTL(), a.Logger)

	if schedule := a.Config.Session.SweepSchedule; schedule != "" {
		if err := a.Sessions.StartSweeper(schedule); err != nil {
			store.Close()
			return err
		}
	}
	return nil
}

// initHandlers initializes all HTTP handlers.
func (a *App) initHandlers() {
	a.PageHandler = handlers.NewPageHandler(a.Logger, a.Config.IsDevMode())
	a.ReportHandler = handlers.NewReportHandler(a.Logger, a.PageHandler, a.Sessions, a.Workflow, a.Config.IsDevMode())
	a.HealthHandler = handlers.NewHealthHandler(a.Logger, a.Config.Session.Backend)
	a.VersionHandler = handlers.NewVersionHandler(a.Logger)

	a.Logger.Debug().Msg("HTTP handlers initialized")
}

// Close waits for in-flight reports, stops the sweeper and closes storage.
func (a *App) Close() error {
	var errs []error

	if a.ReportHandler != nil {
		a.ReportHandler.Wait()
	}
	if a.Sessions != nil {
		a.Sessions.StopSweeper()
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
