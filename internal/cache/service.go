// Package cache serves daily price history and news from the local store,
// filling it from a remote provider on demand and keeping today's row in step
// with the live quote while the market is open.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"StockPilot/internal/collector"
	"StockPilot/internal/keylock"
	"StockPilot/internal/model"
	"StockPilot/internal/session"
	"StockPilot/internal/store"
)

// ErrRemote wraps every failure of the remote provider returned by GetPriceData.
// Local failures (store, lock, context) are not wrapped with it.
var ErrRemote = errors.New("fetch remote series")

// Clock returns the current instant.
type Clock func() time.Time

// Service resolves price and news requests against the store and a remote fetcher.
type Service struct {
	store    store.Store
	fetcher  collector.Fetcher
	locker   keylock.Locker
	freshFor time.Duration
	now      Clock
	logger   zerolog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(c Clock) Option {
	return func(s *Service) { s.now = c }
}

// WithLocker sets the per-key lock. The default is an in-process keylock.Local.
func WithLocker(l keylock.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithFreshFor enables skip-if-fresh: a remote fetch is skipped when the last
// fetch for the key covered the requested window and is younger than d. Zero
// disables it.
func WithFreshFor(d time.Duration) Option {
	return func(s *Service) { s.freshFor = d }
}

func NewService(st store.Store, f collector.Fetcher, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:   st,
		fetcher: f,
		locker:  keylock.NewLocal(),
		now:     time.Now,
		logger:  logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func lockKey(symbol string, market model.Market) string {
	return symbol + "/" + string(market)
}

// GetPriceData returns stored rows for start <= date <= end in ascending date
// order after writing through whatever the remote provider has for the window.
// Remote failures are returned; a provider with nothing for the window and an
// empty store yield an empty result and no error.
func (s *Service) GetPriceData(ctx context.Context, symbol string, market model.Market, start, end time.Time) ([]model.PriceRow, error) {
	symbol = model.NormalizeSymbol(symbol)
	start, end = model.Date(start), model.Date(end)
	log := s.logger.With().Str("symbol", symbol).Str("market", string(market)).Logger()

	unlock, err := s.locker.Lock(ctx, lockKey(symbol, market))
	if err != nil {
		return nil, fmt.Errorf("lock %s/%s: %w", symbol, market, err)
	}
	defer unlock()

	cached, err := s.store.LoadPrices(ctx, symbol, market, start, end)
	if err != nil {
		return nil, fmt.Errorf("load cached prices: %w", err)
	}
	if s.isFresh(ctx, symbol, market, start, end) {
		log.Debug().Int("rows", len(cached)).Msg("window fresh, skipping remote fetch")
		return cached, nil
	}

	stored, err := s.refresh(ctx, symbol, market, start, end)
	if err != nil {
		return nil, err
	}
	if stored == 0 {
		return cached, nil
	}

	rows, err := s.store.LoadPrices(ctx, symbol, market, start, end)
	if err != nil {
		return nil, fmt.Errorf("reload cached prices: %w", err)
	}
	return rows, nil
}

// isFresh reports whether the previous fetch for the key makes another one
// pointless. Store errors count as not fresh.
func (s *Service) isFresh(ctx context.Context, symbol string, market model.Market, start, end time.Time) bool {
	if s.freshFor <= 0 {
		return false
	}
	mark, ok, err := s.store.LoadFetchMark(ctx, symbol, market)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("load fetch mark")
		return false
	}
	if !ok || !mark.Covers(start, end) {
		return false
	}

	now := s.now()
	today := session.TradingDate(market, now)
	// A window that ended before the mark's trading day cannot change anymore.
	if end.Before(today) && session.TradingDate(market, mark.FetchedAt).After(end) {
		return true
	}
	return now.Sub(mark.FetchedAt) < s.freshFor
}

// refresh writes the remote series for [start, end] through to the store and
// reports how many rows it stored.
func (s *Service) refresh(ctx context.Context, symbol string, market model.Market, start, end time.Time) (int, error) {
	bars, err := s.fetcher.FetchDailySeries(ctx, collector.MapSymbol(symbol, market), start, end.AddDate(0, 0, 1))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRemote, err)
	}

	byDate := make(map[time.Time]model.PriceRow, len(bars))
	for _, b := range bars {
		r := model.RowFromBar(symbol, market, collector.NormalizeBar(b))
		byDate[r.Date] = r
	}
	rows := make([]model.PriceRow, 0, len(byDate))
	for _, r := range byDate {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	if err := s.store.UpsertPrices(ctx, rows); err != nil {
		return 0, fmt.Errorf("store remote series: %w", err)
	}
	s.logger.Debug().Str("symbol", symbol).Str("market", string(market)).
		Int("rows", len(rows)).Str("provider", s.fetcher.Name()).Msg("remote series stored")

	if s.freshFor > 0 {
		mark := model.FetchMark{Symbol: symbol, Market: market, Start: start, End: end, FetchedAt: s.now()}
		if err := s.store.MarkFetched(ctx, mark); err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("record fetch mark")
		}
	}
	return len(rows), nil
}
