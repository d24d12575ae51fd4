package model

import (
	"strings"
	"time"
)

// PriceRow is one trading day's OHLCV for one (symbol, market).
// (Symbol, Market, Date) is the primary key.
type PriceRow struct {
	Symbol string    `json:"symbol"`
	Market Market    `json:"market"`
	Date   time.Time `json:"-"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Bar is the normalized daily record returned by a remote fetcher.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// LiveQuote is a snapshot of the current trading day at fetch time.
type LiveQuote struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// NormalizeSymbol uppercases and trims a caller-supplied ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// RowFromBar builds a fully-formed PriceRow for the given key from a fetched bar.
func RowFromBar(symbol string, market Market, b Bar) PriceRow {
	return PriceRow{
		Symbol: NormalizeSymbol(symbol),
		Market: market,
		Date:   Date(b.Date),
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
	}
}

// FetchMark records the window and time of the last successful remote fetch for a key.
type FetchMark struct {
	Symbol    string
	Market    Market
	Start     time.Time
	End       time.Time
	FetchedAt time.Time
}

// Covers reports whether the mark's window contains [start, end].
func (m FetchMark) Covers(start, end time.Time) bool {
	return !m.Start.After(start) && !m.End.Before(end)
}
