// Package workflow drives one report generation for a session:
// tickers are collected, fetched, formatted and sent for completion.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/bobmcallan/dodgy-dave/internal/common"
	"github.com/bobmcallan/dodgy-dave/internal/completion"
	"github.com/bobmcallan/dodgy-dave/internal/models"
)

var (
	// ErrNoTickers is returned by Begin when the ticker list is empty.
	ErrNoTickers = errors.New("no tickers to report on")

	// ErrNotIdle is returned when a transition is attempted outside the idle panel.
	ErrNotIdle = errors.New("session is not idle")

	// ErrBusy is returned by Reset while a generation is in flight.
	ErrBusy = errors.New("report generation in progress")
)

// Fetcher returns one raw market-data body per ticker, in ticker order.
type Fetcher interface {
	FetchAll(ctx context.Context, tickers []string, dates models.DateRange) ([]string, error)
}

// Job is the snapshot of session input that Produce works from.
type Job struct {
	SessionID string
	Tickers   []string
	Dates     models.DateRange
}

// Outcome is the result of Produce, applied to the session by Finish.
// UserMessage is set once formatting succeeded, even if completion failed.
type Outcome struct {
	UserMessage *models.ConversationMessage
	Report      string
	Err         error
}

// Workflow holds the collaborators of a report generation.
type Workflow struct {
	fetcher      Fetcher
	requester    completion.Requester
	formatter    *Formatter
	systemPrompt string
	logger       *common.Logger
	now          func() time.Time
	staleAfter   time.Duration
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithFormatter overrides the default formatter.
func WithFormatter(f *Formatter) Option {
	return func(w *Workflow) {
		if f != nil {
			w.formatter = f
		}
	}
}

// WithLogger sets a logger.
func WithLogger(logger *common.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		w.now = now
	}
}

// WithStaleAfter sets how long a session may stay Loading before the
// generation is treated as abandoned. Zero disables the check.
func WithStaleAfter(d time.Duration) Option {
	return func(w *Workflow) {
		w.staleAfter = d
	}
}

// New creates a workflow. systemPrompt is the instruction sent with every request.
func New(fetcher Fetcher, requester completion.Requester, systemPrompt string, opts ...Option) *Workflow {
	w := &Workflow{
		fetcher:      fetcher,
		requester:    requester,
		formatter:    NewFormatter("", nil),
		systemPrompt: systemPrompt,
		logger:       common.NewSilentLogger(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Begin moves an idle session with tickers into Loading and returns the job to run.
func (w *Workflow) Begin(s *models.Session) (Job, error) {
	w.Expire(s)
	if s.State() != models.StateIdle {
		return Job{}, ErrNotIdle
	}
	if len(s.Tickers) == 0 {
		return Job{}, ErrNoTickers
	}

	s.Loading = true
	s.LoadingSince = w.now()
	s.Error = ""
	s.LastErrorKind = ""

	return Job{
		SessionID: s.ID,
		Tickers:   append([]string(nil), s.Tickers...),
		Dates:     s.Dates,
	}, nil
}

// Produce runs fetch, parse, format and completion for job. It does not touch
// any session.
func (w *Workflow) Produce(ctx context.Context, job Job) Outcome {
	start := w.now()

	bodies, err := w.fetcher.FetchAll(ctx, job.Tickers, job.Dates)
	if err != nil {
		return Outcome{Err: err}
	}

	quotes, err := ParseQuotes(bodies)
	if err != nil {
		return Outcome{Err: err}
	}

	content, err := w.formatter.Format(quotes)
	if err != nil {
		return Outcome{Err: err}
	}
	user := models.UserMessage(content)

	report, err := w.requester.RequestReport(ctx, models.SystemMessage(w.systemPrompt), user)
	if err != nil {
		return Outcome{UserMessage: &user, Err: err}
	}

	w.logger.Info().
		Str("session_id", job.SessionID).
		Strs("tickers", job.Tickers).
		Int("report_length", len(report)).
		Dur("duration", w.now().Sub(start)).
		Msg("report generated")

	return Outcome{UserMessage: &user, Report: report}
}

// Finish applies an outcome to the session. Success shows the report; any
// failure returns to the idle form with the generic message and no report.
func (w *Workflow) Finish(s *models.Session, out Outcome) {
	if out.UserMessage != nil {
		s.Messages = append(s.Messages, *out.UserMessage)
	}
	s.Loading = false
	s.LoadingSince = time.Time{}

	if out.Err != nil {
		kind := models.KindOf(out.Err)
		if kind == "" {
			kind = models.KindFetchFailed
		}
		s.Report = ""
		s.Error = models.GenerationFailedMessage
		s.LastErrorKind = kind

		w.logger.Warn().
			Str("session_id", s.ID).
			Str("kind", string(kind)).
			Err(out.Err).
			Msg("report generation failed")
		return
	}

	s.Report = out.Report
	s.Error = ""
	s.GeneratedAt = w.now()
}

// Generate runs Begin, Produce and Finish in sequence. The returned error is
// the internal cause of a failed generation; the session already carries the
// user-facing message.
func (w *Workflow) Generate(ctx context.Context, s *models.Session) error {
	job, err := w.Begin(s)
	if err != nil {
		return err
	}
	out := w.Produce(ctx, job)
	w.Finish(s, out)
	return out.Err
}

// Reset clears the collected tickers, any error and the report so a new
// report can be built. The conversation and date window are kept.
func (w *Workflow) Reset(s *models.Session) error {
	w.Expire(s)
	if s.Loading {
		return ErrBusy
	}
	s.Tickers = []string{}
	s.Input = ""
	s.Error = ""
	s.Report = ""
	s.LastErrorKind = ""
	s.GeneratedAt = time.Time{}
	return nil
}

// IsStale reports whether s has been Loading for longer than the stale
// window. Sessions stored before LoadingSince existed count from CreatedAt.
func (w *Workflow) IsStale(s *models.Session) bool {
	if !s.Loading || w.staleAfter <= 0 {
		return false
	}
	since := s.LoadingSince
	if since.IsZero() {
		since = s.CreatedAt
	}
	return w.now().Sub(since) > w.staleAfter
}

// Expire returns a stale Loading session to the idle form with the generic
// error, as if the generation had failed. It reports whether s changed.
func (w *Workflow) Expire(s *models.Session) bool {
	if !w.IsStale(s) {
		return false
	}
	w.Finish(s, Outcome{Err: models.NewError(models.KindAbandoned, "", nil, "no result after %s", w.staleAfter)})
	return true
}
