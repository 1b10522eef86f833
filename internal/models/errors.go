package models

import (
	"errors"
	"fmt"
)

// ErrorKind tags where a report generation or ticker submission failed.
type ErrorKind string

const (
	KindTooShort          ErrorKind = "too_short"
	KindListFull          ErrorKind = "list_full"
	KindFetchFailed       ErrorKind = "fetch_failed"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindNoData            ErrorKind = "no_data"
	KindCompletionError   ErrorKind = "completion_error"

	// KindAbandoned marks a generation whose result never arrived, e.g. after a restart.
	KindAbandoned ErrorKind = "abandoned"
)

// User-facing messages. Every generation failure is shown as GenerationFailedMessage.
const (
	TooShortMessage         = "You must add at least one ticker. A ticker is a 3 letter or more code for a stock. E.g TSLA for Tesla."
	ListFullMessage         = "Maximum 3 tickers allowed"
	GenerationFailedMessage = "There was an error fetching stock data."
)

// WorkflowError is the structured error kept internally for every failure kind.
type WorkflowError struct {
	Kind   ErrorKind
	Ticker string
	Detail string
	Err    error
}

func (e *WorkflowError) Error() string {
	msg := string(e.Kind)
	if e.Ticker != "" {
		msg += " [" + e.Ticker + "]"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *WorkflowError) Unwrap() error { return e.Err }

// UserMessage returns the text shown to the user for this error.
func (e *WorkflowError) UserMessage() string {
	switch e.Kind {
	case KindTooShort:
		return TooShortMessage
	case KindListFull:
		return ListFullMessage
	default:
		return GenerationFailedMessage
	}
}

// NewError builds a WorkflowError with a formatted detail.
func NewError(kind ErrorKind, ticker string, err error, format string, args ...any) *WorkflowError {
	return &WorkflowError{Kind: kind, Ticker: ticker, Detail: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first WorkflowError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Kind
	}
	return ""
}

// IsKind reports whether err carries a WorkflowError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
