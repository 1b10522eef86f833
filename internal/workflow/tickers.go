package workflow

import (
	"strings"
	"unicode/utf8"

	"github.com/bobmcallan/dodgy-dave/internal/models"
)

// MinTickerLength is the shortest accepted ticker, counted in runes after trimming.
const MinTickerLength = 3

// SubmitTicker validates raw input and appends it to the session's ticker list.
// On failure the list is untouched, the input is kept for redisplay and the
// error text is set. On success the input and error text are cleared.
func SubmitTicker(s *models.Session, raw string) error {
	trimmed := strings.TrimSpace(raw)

	if utf8.RuneCountInString(trimmed) < MinTickerLength {
		return reject(s, raw, models.NewError(models.KindTooShort, "", nil, "ticker %q shorter than %d characters", trimmed, MinTickerLength))
	}
	if len(s.Tickers) >= models.MaxTickers {
		return reject(s, raw, models.NewError(models.KindListFull, "", nil, "already holding %d tickers", len(s.Tickers)))
	}

	s.Tickers = append(s.Tickers, strings.ToUpper(trimmed))
	s.Input = ""
	s.Error = ""
	return nil
}

func reject(s *models.Session, raw string, err *models.WorkflowError) error {
	s.Input = raw
	s.Error = err.UserMessage()
	return err
}
