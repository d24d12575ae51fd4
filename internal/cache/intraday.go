package cache

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"

	"StockPilot/internal/collector"
	"StockPilot/internal/model"
	"StockPilot/internal/session"
)

// ReconcileIntraday brings today's stored row in line with the market.
//
// While the session is open the live quote is merged into the row: high and
// low only widen, close follows the quote, open keeps the first non-zero value
// and volume keeps the latest non-zero value. Once the session has closed and
// no row exists for today, the finished daily bar is fetched and stored.
// Before the open nothing happens.
//
// It returns the stored row and true when something was written. Provider and
// storage failures are logged and reported as false.
func (s *Service) ReconcileIntraday(ctx context.Context, symbol string, market model.Market) (model.PriceRow, bool) {
	symbol = model.NormalizeSymbol(symbol)
	log := s.logger.With().Str("symbol", symbol).Str("market", string(market)).Logger()

	unlock, err := s.locker.Lock(ctx, lockKey(symbol, market))
	if err != nil {
		log.Warn().Err(err).Msg("reconcile: lock")
		return model.PriceRow{}, false
	}
	defer unlock()

	status, today := session.Status(market, s.now())
	switch status {
	case model.SessionOpen:
		return s.mergeLive(ctx, log, symbol, market, today)
	case model.SessionClosed:
		return s.backfillClose(ctx, log, symbol, market, today)
	default:
		return model.PriceRow{}, false
	}
}

func (s *Service) mergeLive(ctx context.Context, log zerolog.Logger, symbol string, market model.Market, today time.Time) (model.PriceRow, bool) {
	q, err := s.fetcher.FetchLiveQuote(ctx, collector.MapSymbol(symbol, market))
	if err != nil {
		if errors.Is(err, collector.ErrNoQuote) {
			log.Debug().Msg("reconcile: no live quote")
		} else {
			log.Warn().Err(err).Msg("reconcile: fetch live quote")
		}
		return model.PriceRow{}, false
	}
	live := collector.NormalizeQuote(*q)

	existing, ok, err := s.store.LoadPrice(ctx, symbol, market, today)
	if err != nil {
		log.Warn().Err(err).Msg("reconcile: load today's row")
		return model.PriceRow{}, false
	}

	var row model.PriceRow
	if ok {
		row = mergeQuote(existing, live)
	} else {
		row = model.PriceRow{
			Symbol: symbol, Market: market, Date: today,
			Open: live.Open, High: live.High, Low: live.Low, Close: live.Close, Volume: live.Volume,
		}
	}

	if err := s.store.UpsertPrices(ctx, []model.PriceRow{row}); err != nil {
		log.Warn().Err(err).Msg("reconcile: store merged row")
		return model.PriceRow{}, false
	}
	return row, true
}

func mergeQuote(existing model.PriceRow, live model.LiveQuote) model.PriceRow {
	row := existing
	row.High = math.Max(existing.High, live.High)
	row.Low = math.Min(existing.Low, live.Low)
	row.Close = live.Close
	if existing.Open == 0 {
		row.Open = live.Open
	}
	if live.Volume != 0 {
		row.Volume = live.Volume
	}
	return row
}

func (s *Service) backfillClose(ctx context.Context, log zerolog.Logger, symbol string, market model.Market, today time.Time) (model.PriceRow, bool) {
	_, ok, err := s.store.LoadPrice(ctx, symbol, market, today)
	if err != nil {
		log.Warn().Err(err).Msg("reconcile: load today's row")
		return model.PriceRow{}, false
	}
	if ok {
		return model.PriceRow{}, false
	}

	bars, err := s.fetcher.FetchDailySeries(ctx, collector.MapSymbol(symbol, market), today.AddDate(0, 0, -2), today.AddDate(0, 0, 1))
	if err != nil {
		log.Warn().Err(err).Msg("reconcile: fetch closing bar")
		return model.PriceRow{}, false
	}
	for _, b := range bars {
		if !model.Date(b.Date).Equal(today) {
			continue
		}
		row := model.RowFromBar(symbol, market, collector.NormalizeBar(b))
		if err := s.store.UpsertPrices(ctx, []model.PriceRow{row}); err != nil {
			log.Warn().Err(err).Msg("reconcile: store closing bar")
			return model.PriceRow{}, false
		}
		log.Info().Str("date", model.FormatDate(today)).Msg("closing bar backfilled")
		return row, true
	}
	return model.PriceRow{}, false
}
