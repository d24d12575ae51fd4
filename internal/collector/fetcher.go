package collector

import (
	"context"
	"errors"
	"time"

	"StockPilot/internal/model"
)

// ErrNoQuote means the provider had no live quote for the symbol.
var ErrNoQuote = errors.New("no live quote available")

// Fetcher retrieves market data for provider-facing symbols (see MapSymbol).
type Fetcher interface {
	// FetchDailySeries returns daily bars with start <= date < end.
	// An empty result with a nil error means the provider has nothing in range.
	FetchDailySeries(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error)
	// FetchLiveQuote returns today's running OHLCV, or ErrNoQuote.
	FetchLiveQuote(ctx context.Context, symbol string) (*model.LiveQuote, error)
	// FetchNews returns up to limit recent headlines.
	FetchNews(ctx context.Context, symbol string, limit int) ([]model.Headline, error)
	Name() string
}
