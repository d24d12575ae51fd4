// Package store persists daily price rows, news headlines and fetch marks.
package store

import (
	"context"
	"time"

	"StockPilot/internal/model"
)

// Store is the durable keyed table of price rows and news items.
type Store interface {
	// UpsertPrices replaces every row sharing a primary key with the given row,
	// inserting it otherwise. One call is one transaction.
	UpsertPrices(ctx context.Context, rows []model.PriceRow) error
	// LoadPrices returns rows with start <= date <= end.
	LoadPrices(ctx context.Context, symbol string, market model.Market, start, end time.Time) ([]model.PriceRow, error)
	// LoadPrice returns the row for one date, if present.
	LoadPrice(ctx context.Context, symbol string, market model.Market, date time.Time) (model.PriceRow, bool, error)

	// AddNewsItems inserts items whose key is new and prunes the key to the
	// model.MaxNewsPerKey most recent.
	AddNewsItems(ctx context.Context, symbol string, market model.Market, items []model.NewsItem) error
	// LoadNews returns the stored items, most recent first.
	LoadNews(ctx context.Context, symbol string, market model.Market) ([]model.NewsItem, error)

	MarkFetched(ctx context.Context, mark model.FetchMark) error
	LoadFetchMark(ctx context.Context, symbol string, market model.Market) (model.FetchMark, bool, error)

	Close() error
}
