package handlers

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/bobmcallan/dodgy-dave/internal/common"
	"github.com/bobmcallan/dodgy-dave/internal/config"
	"github.com/bobmcallan/dodgy-dave/internal/models"
	"github.com/bobmcallan/dodgy-dave/internal/session"
	"github.com/bobmcallan/dodgy-dave/internal/workflow"
)

// SessionCookieName identifies the browser's workflow session.
const SessionCookieName = "dodgy_session"

// ReportHandler serves the single report page and its form actions.
// Form posts redirect back to / so a reload never resubmits.
type ReportHandler struct {
	logger       *common.Logger
	pages        *PageHandler
	sessions     *session.Manager
	workflow     *workflow.Workflow
	devMode      bool
	secureCookie bool

	inflight sync.WaitGroup
}

// NewReportHandler creates the report page handler.
func NewReportHandler(logger *common.Logger, pages *PageHandler, sessions *session.Manager, wf *workflow.Workflow, devMode bool) *ReportHandler {
	return &ReportHandler{
		logger:   logger,
		pages:    pages,
		sessions: sessions,
		workflow: wf,
		devMode:  devMode,
	}
}

// SetSecureCookie marks the session cookie Secure (for HTTPS deployments).
func (h *ReportHandler) SetSecureCookie(secure bool) {
	h.secureCookie = secure
}

type reportPageData struct {
	Page        string
	DevMode     bool
	Version     string
	State       string
	Tickers     []string
	Input       string
	Error       string
	CanGenerate bool
	MaxTickers  int
	ReportHTML  template.HTML
	CSRFToken   string
	Refresh     bool
}

// ServePage handles GET /: the idle form, the loading panel or the report.
func (h *ReportHandler) ServePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	s, err := h.loadSession(w, r)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load session")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if h.workflow.IsStale(s) {
		s, err = h.sessions.Update(r.Context(), s.ID, func(s *models.Session) error {
			h.workflow.Expire(s)
			return nil
		})
		if err != nil {
			h.logger.Error().Err(err).Msg("failed to expire stale session")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}

	state := s.State()
	h.pages.Render(w, "report.html", reportPageData{
		Page:        "report",
		DevMode:     h.devMode,
		Version:     config.Version,
		State:       string(state),
		Tickers:     s.Tickers,
		Input:       s.Input,
		Error:       s.Error,
		CanGenerate: s.CanGenerate(),
		MaxTickers:  models.MaxTickers,
		ReportHTML:  renderReport(s.Report),
		CSRFToken:   CSRFToken(r),
		Refresh:     state == models.StateLoading,
	})
}

// HandleTickers handles POST /tickers with form field "ticker".
func (h *ReportHandler) HandleTickers(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	s, err := h.loadSession(w, r)
	if err != nil {
		h.fail(w, err, "failed to load session")
		return
	}

	raw := r.FormValue("ticker")
	_, err = h.sessions.Update(r.Context(), s.ID, func(s *models.Session) error {
		if s.State() != models.StateIdle {
			return workflow.ErrNotIdle
		}
		return workflow.SubmitTicker(s, raw)
	})
	if err != nil && models.KindOf(err) == "" && !errors.Is(err, workflow.ErrNotIdle) {
		h.fail(w, err, "failed to add ticker")
		return
	}
	if err != nil {
		h.logger.Debug().Str("session_id", s.ID).Str("reason", err.Error()).Msg("ticker rejected")
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleGenerate handles POST /generate. The session moves to Loading before
// the redirect; the report is produced in the background and the loading
// page refreshes until it lands.
func (h *ReportHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	s, err := h.loadSession(w, r)
	if err != nil {
		h.fail(w, err, "failed to load session")
		return
	}

	var job workflow.Job
	_, err = h.sessions.Update(r.Context(), s.ID, func(s *models.Session) error {
		var err error
		job, err = h.workflow.Begin(s)
		return err
	})
	switch {
	case errors.Is(err, workflow.ErrNoTickers), errors.Is(err, workflow.ErrNotIdle):
		h.logger.Debug().Str("session_id", s.ID).Str("reason", err.Error()).Msg("generate ignored")
	case err != nil:
		h.fail(w, err, "failed to start report")
		return
	default:
		h.inflight.Add(1)
		go h.produce(job)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// produce runs detached from the request that started it.
func (h *ReportHandler) produce(job workflow.Job) {
	defer h.inflight.Done()

	ctx := context.Background()
	out := h.workflow.Produce(ctx, job)

	_, err := h.sessions.Update(ctx, job.SessionID, func(s *models.Session) error {
		h.workflow.Finish(s, out)
		return nil
	})
	if err != nil {
		h.logger.Warn().Str("session_id", job.SessionID).Err(err).Msg("could not store report outcome")
	}
}

// HandleReset handles POST /reset.
func (h *ReportHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	s, err := h.loadSession(w, r)
	if err != nil {
		h.fail(w, err, "failed to load session")
		return
	}

	_, err = h.sessions.Update(r.Context(), s.ID, h.workflow.Reset)
	if err != nil && !errors.Is(err, workflow.ErrBusy) {
		h.fail(w, err, "failed to reset session")
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type sessionView struct {
	ID          string           `json:"id"`
	State       string           `json:"state"`
	Tickers     []string         `json:"tickers"`
	Error       string           `json:"error,omitempty"`
	Report      string           `json:"report,omitempty"`
	Dates       models.DateRange `json:"dates"`
	CreatedAt   time.Time        `json:"created_at"`
	ExpiresAt   time.Time        `json:"expires_at"`
	GeneratedAt *time.Time       `json:"generated_at,omitempty"`
}

// HandleSessionAPI handles GET /api/session for the caller's session.
func (h *ReportHandler) HandleSessionAPI(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		WriteError(w, http.StatusNotFound, "no session")
		return
	}

	s, err := h.sessions.Get(r.Context(), cookie.Value)
	if errors.Is(err, models.ErrSessionNotFound) {
		WriteError(w, http.StatusNotFound, "no session")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read session")
		WriteError(w, http.StatusInternalServerError, "failed to read session")
		return
	}

	view := sessionView{
		ID:        s.ID,
		State:     string(s.State()),
		Tickers:   s.Tickers,
		Error:     s.Error,
		Report:    s.Report,
		Dates:     s.Dates,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
	if !s.GeneratedAt.IsZero() {
		view.GeneratedAt = &s.GeneratedAt
	}
	WriteJSON(w, http.StatusOK, view)
}

// Wait blocks until background report generations have finished.
func (h *ReportHandler) Wait() {
	h.inflight.Wait()
}

// loadSession resolves the session cookie, issuing a new session when the
// cookie is missing or stale.
func (h *ReportHandler) loadSession(w http.ResponseWriter, r *http.Request) (*models.Session, error) {
	var id string
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		id = cookie.Value
	}

	s, created, err := h.sessions.Load(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookieName,
			Value:    s.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s, nil
}

func (h *ReportHandler) fail(w http.ResponseWriter, err error, msg string) {
	h.logger.Error().Err(err).Msg(msg)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
