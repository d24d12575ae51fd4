package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"StockPilot/internal/api"
	"StockPilot/internal/cache"
	"StockPilot/internal/collector"
	"StockPilot/internal/config"
	"StockPilot/internal/keylock"
	"StockPilot/internal/logging"
	"StockPilot/internal/model"
	"StockPilot/internal/scheduler"
	"StockPilot/internal/store"
)

func main() {
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		l := logging.New("info")
		l.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("config validation")
	}
	logger.Info().Str("config", cfgPath).Msg("StockPilot starting...")

	// Init fetcher
	fetcher := newFetcher(cfg, logging.Component(logger, "collector"))
	logger.Info().Str("provider", fetcher.Name()).Msg("data source ready")

	// Init store
	st, err := store.NewSQLiteStore(cfg.Database.SQLitePath, logging.Component(logger, "store"))
	if err != nil {
		logger.Fatal().Err(err).Msg("init sqlite store")
	}
	defer st.Close()

	// Init key lock
	var locker keylock.Locker = keylock.NewLocal()
	if cfg.Lock.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Lock.RedisAddr})
		defer rdb.Close()
		locker = keylock.NewRedis(rdb, cfg.Lock.TTL, logging.Component(logger, "keylock"))
		logger.Info().Str("addr", cfg.Lock.RedisAddr).Msg("using redis key lock")
	}

	svc := cache.NewService(st, fetcher, logging.Component(logger, "cache"),
		cache.WithLocker(locker),
		cache.WithFreshFor(cfg.Cache.FreshFor),
	)

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Init scheduler
	targets := make([]scheduler.Target, 0, len(cfg.Watchlist))
	for _, w := range cfg.Watchlist {
		targets = append(targets, scheduler.Target{Symbol: w.Symbol, Market: model.Market(w.Market)})
	}
	sched := scheduler.NewScheduler(ctx, svc, targets, cfg.Schedule.WarmDays, logging.Component(logger, "scheduler"))
	if err := sched.RegisterAll(cfg.Schedule.WarmCron); err != nil {
		logger.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	// Optional: warm immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		logger.Info().Msg("RUN_ON_START enabled, warming watchlist now")
		go sched.RunNow()
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := api.NewServer(cfg.Server.Addr, api.NewHandlers(svc, logging.Component(logger, "api")), logging.Component(logger, "api"))
	if err := srv.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("api server")
	}
	logger.Info().Msg("StockPilot stopped")
}

func newFetcher(cfg *config.Config, logger zerolog.Logger) collector.Fetcher {
	ds := cfg.DataSource
	switch ds.Provider {
	case "rest":
		return collector.NewRESTFetcher(ds.BaseURL, ds.APIKey, cfg.Proxy, ds.Timeout, ds.RatePerSec, logger)
	case "mock":
		return &collector.MockFetcher{Price: 100}
	default:
		return collector.NewYahooFetcher(cfg.Proxy, ds.Timeout, ds.RatePerSec, logger)
	}
}
