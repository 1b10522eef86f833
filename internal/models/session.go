package models

import (
	"errors"
	"time"
)

// ErrSessionNotFound is returned by session storage for unknown or expired IDs.
var ErrSessionNotFound = errors.New("session not found")

// MaxTickers is the most tickers a session may collect.
const MaxTickers = 3

// WorkflowState is the panel the page shows. It is derived from the
// session flags and never stored.
type WorkflowState string

const (
	StateIdle    WorkflowState = "idle"
	StateLoading WorkflowState = "loading"
	StateReport  WorkflowState = "report"
)

// Session is the per-browser state of the report workflow. Only the workflow
// package mutates it, and only at its transition points.
type Session struct {
	ID            string                `json:"id" badgerhold:"key"`
	Tickers       []string              `json:"tickers"`
	Input         string                `json:"input,omitempty"`
	Error         string                `json:"error,omitempty"`
	Loading       bool                  `json:"loading"`
	LoadingSince  time.Time             `json:"loading_since,omitempty"`
	Report        string                `json:"report,omitempty"`
	Messages      []ConversationMessage `json:"messages"`
	Dates         DateRange             `json:"dates"`
	CreatedAt     time.Time             `json:"created_at"`
	ExpiresAt     time.Time             `json:"expires_at"`
	GeneratedAt   time.Time             `json:"generated_at,omitempty"`
	LastErrorKind ErrorKind             `json:"last_error_kind,omitempty"`
}

// NewSession creates an idle session whose conversation starts with the
// history system message and whose date window is fixed at creation.
func NewSession(id, historyPrompt string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:        id,
		Tickers:   []string{},
		Messages:  []ConversationMessage{SystemMessage(historyPrompt)},
		Dates:     TrailingRange(now),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// State derives the visible panel. Loading wins over a report, and an error
// only ever accompanies the idle form.
func (s *Session) State() WorkflowState {
	switch {
	case s.Loading:
		return StateLoading
	case s.Report != "":
		return StateReport
	default:
		return StateIdle
	}
}

// CanGenerate reports whether the Generate Report action is enabled.
func (s *Session) CanGenerate() bool {
	return s.State() == StateIdle && len(s.Tickers) > 0
}

// IsExpired returns true if the session has expired at now.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Clone returns a deep copy so stores never share slices with callers.
func (s *Session) Clone() *Session {
	c := *s
	c.Tickers = append([]string(nil), s.Tickers...)
	c.Messages = append([]ConversationMessage(nil), s.Messages...)
	return &c
}
