// Package scheduler keeps the watchlist's cached prices warm on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"StockPilot/internal/model"
	"StockPilot/internal/session"
)

// Warmer is the part of the cache service the scheduler drives.
type Warmer interface {
	GetPriceData(ctx context.Context, symbol string, market model.Market, start, end time.Time) ([]model.PriceRow, error)
	ReconcileIntraday(ctx context.Context, symbol string, market model.Market) (model.PriceRow, bool)
}

// Target is one watchlist key.
type Target struct {
	Symbol string
	Market model.Market
}

// Scheduler manages the cache warming job.
type Scheduler struct {
	Cron    *cron.Cron
	Cache   Warmer
	Targets []Target
	Days    int
	Ctx     context.Context
	Now     func() time.Time

	logger zerolog.Logger
}

// NewScheduler creates a new Scheduler. Overlapping passes are skipped.
func NewScheduler(ctx context.Context, cache Warmer, targets []Target, days int, logger zerolog.Logger) *Scheduler {
	cl := cronLogger{logger}
	return &Scheduler{
		Cron:    cron.New(cron.WithSeconds(), cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl))),
		Cache:   cache,
		Targets: targets,
		Days:    days,
		Ctx:     ctx,
		Now:     time.Now,
		logger:  logger,
	}
}

// RegisterAll registers the warm job. With an empty watchlist nothing is scheduled.
func (s *Scheduler) RegisterAll(warmCron string) error {
	if len(s.Targets) == 0 {
		s.logger.Info().Msg("watchlist empty, cache warmer disabled")
		return nil
	}
	if _, err := s.Cron.AddFunc(warmCron, s.warmTask); err != nil {
		return fmt.Errorf("register warm task: %w", err)
	}
	s.logger.Info().Str("cron", warmCron).Int("symbols", len(s.Targets)).Msg("cache warmer registered")
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// RunNow executes one warm pass synchronously.
func (s *Scheduler) RunNow() {
	s.warmTask()
}

func (s *Scheduler) warmTask() {
	start := time.Now()
	var failed int
	for _, t := range s.Targets {
		if s.Ctx.Err() != nil {
			return
		}
		if err := s.warm(t); err != nil {
			failed++
			s.logger.Error().Err(err).Str("symbol", t.Symbol).Str("market", string(t.Market)).Msg("warm symbol")
		}
	}
	s.logger.Info().Int("symbols", len(s.Targets)).Int("failed", failed).
		Dur("took", time.Since(start)).Msg("warm pass finished")
}

func (s *Scheduler) warm(t Target) error {
	end := session.TradingDate(t.Market, s.Now())
	begin := end.AddDate(0, 0, -s.Days)
	rows, err := s.Cache.GetPriceData(s.Ctx, t.Symbol, t.Market, begin, end)
	if err != nil {
		return err
	}
	row, changed := s.Cache.ReconcileIntraday(s.Ctx, t.Symbol, t.Market)
	ev := s.logger.Debug().Str("symbol", t.Symbol).Int("rows", len(rows)).Bool("intraday", changed)
	if changed {
		ev = ev.Float64("close", row.Close)
	}
	ev.Msg("symbol warmed")
	return nil
}

// cronLogger routes cron's own messages through zerolog.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
