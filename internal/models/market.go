package models

import "time"

// DateLayout is the calendar-date format the market-data proxy expects.
const DateLayout = "2006-01-02"

// PriceBar is one trading-period aggregate exactly as the provider sends it.
type PriceBar struct {
	Volume          float64 `json:"v"`
	VWAP            float64 `json:"vw"`
	Open            float64 `json:"o"`
	Close           float64 `json:"c"`
	High            float64 `json:"h"`
	Low             float64 `json:"l"`
	TimestampMillis int64   `json:"t"`
	Transactions    int64   `json:"n"`
}

// Time returns the bar's timestamp in loc.
func (b PriceBar) Time(loc *time.Location) time.Time {
	return time.UnixMilli(b.TimestampMillis).In(loc)
}

// TickerQuote is a parsed market-data response with the request identifier removed.
// Bars are chronological, so the last element is the most recent.
type TickerQuote struct {
	Ticker      string     `json:"ticker"`
	Bars        []PriceBar `json:"results"`
	Status      string     `json:"status"`
	ResultCount int        `json:"count"`
}

// Latest returns the most recent bar and false when there are none.
func (q TickerQuote) Latest() (PriceBar, bool) {
	if len(q.Bars) == 0 {
		return PriceBar{}, false
	}
	return q.Bars[len(q.Bars)-1], true
}

// DateRange is an inclusive window of calendar dates, formatted as YYYY-MM-DD.
type DateRange struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// TrailingRange returns the window from three days before now to the day
// before now. Today is never included.
func TrailingRange(now time.Time) DateRange {
	return DateRange{
		StartDate: now.AddDate(0, 0, -3).Format(DateLayout),
		EndDate:   now.AddDate(0, 0, -1).Format(DateLayout),
	}
}
