package workflow

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/dodgy-dave/internal/models"
)

// DefaultDateLayout renders bar dates as a US short date, e.g. 1/2/2024.
const DefaultDateLayout = "1/2/2006"

// ParseQuotes decodes raw market-data bodies. The provider's request_id is
// dropped before the quote is built.
func ParseQuotes(bodies []string) ([]models.TickerQuote, error) {
	quotes := make([]models.TickerQuote, 0, len(bodies))
	for i, body := range bodies {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(body), &fields); err != nil {
			return nil, models.NewError(models.KindMalformedResponse, "", err, "body %d is not a JSON object", i)
		}
		delete(fields, "request_id")

		stripped, err := json.Marshal(fields)
		if err != nil {
			return nil, models.NewError(models.KindMalformedResponse, "", err, "re-encode body %d", i)
		}

		var q models.TickerQuote
		if err := json.Unmarshal(stripped, &q); err != nil {
			return nil, models.NewError(models.KindMalformedResponse, "", err, "body %d does not match the quote shape", i)
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// Formatter renders quotes as the user message sent for completion.
type Formatter struct {
	layout string
	loc    *time.Location
}

// NewFormatter creates a formatter. Empty layout and nil loc fall back to
// DefaultDateLayout and the server's local zone.
func NewFormatter(layout string, loc *time.Location) *Formatter {
	if layout == "" {
		layout = DefaultDateLayout
	}
	if loc == nil {
		loc = time.Local
	}
	return &Formatter{layout: layout, loc: loc}
}

// FormatQuotes renders quotes with the default formatter.
func FormatQuotes(quotes []models.TickerQuote) (string, error) {
	return NewFormatter("", nil).Format(quotes)
}

// Format renders one block per quote from its most recent bar, joined by a
// blank line. A quote without bars fails with KindNoData.
func (f *Formatter) Format(quotes []models.TickerQuote) (string, error) {
	blocks := make([]string, 0, len(quotes))
	for _, q := range quotes {
		bar, ok := q.Latest()
		if !ok {
			return "", models.NewError(models.KindNoData, q.Ticker, nil, "no price bars returned")
		}
		blocks = append(blocks, f.block(q.Ticker, bar))
	}
	return strings.Join(blocks, "\n\n"), nil
}

func (f *Formatter) block(ticker string, bar models.PriceBar) string {
	var b strings.Builder
	b.WriteString("\nStock: " + ticker + "\n")
	b.WriteString("Latest Trading Data:\n")
	b.WriteString("- Opening Price: $" + number(bar.Open) + "\n")
	b.WriteString("- Closing Price: $" + number(bar.Close) + "\n")
	b.WriteString("- Highest Price: $" + number(bar.High) + "\n")
	b.WriteString("- Lowest Price: $" + number(bar.Low) + "\n")
	b.WriteString("- Volume: " + number(bar.Volume) + "\n")
	b.WriteString("- Volume Weighted Average Price: $" + number(bar.VWAP) + "\n")
	b.WriteString("- Number of Transactions: " + strconv.FormatInt(bar.Transactions, 10) + "\n")
	b.WriteString("- Timestamp: " + bar.Time(f.loc).Format(f.layout))
	return b.String()
}

// number prints the shortest decimal that round-trips: 100, 102.5.
func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
