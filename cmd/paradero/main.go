package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paradero/internal/arrivals"
	"paradero/internal/catalog"
	"paradero/internal/changefeed"
	"paradero/internal/config"
	"paradero/internal/handler"
	"paradero/internal/paradero"
	"paradero/internal/pgstore"
	"paradero/internal/prefs"
	"paradero/internal/realtime"
	"paradero/internal/repository"
	"paradero/internal/server"
	"paradero/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	// CLI flags
	seedOnly := flag.Bool("seed", false, "Seed the local SQLite table with fixture rows, then exit")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.BoolVar(&cfg.TestMode, "test-mode", cfg.TestMode, "Enable test mode (fixture rows in the local table)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid flags", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	// Context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Error("failed to load catalog", "path", cfg.CatalogPath, "error", err)
		os.Exit(1)
	}

	// Measurement table: Postgres when configured, local SQLite otherwise.
	var (
		table   repository.Table
		closeDB func()
	)
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		if cfg.DBMigrate {
			if err := pg.EnsureSchema(ctx); err != nil {
				logger.Error("failed to apply schema", "error", err)
				os.Exit(1)
			}
		}
		table, closeDB = pg, pg.Close
	} else {
		db, err := storage.Open(cfg.DBPath, logger)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		db.PollInterval = cfg.PollInterval

		if cfg.TestMode || *seedOnly {
			n, err := db.SeedFixtures(ctx)
			if err != nil {
				logger.Error("seeding fixtures failed", "error", err)
				os.Exit(1)
			}
			logger.Info("fixtures seeded", "count", n)
		}
		if *seedOnly {
			db.Close()
			return
		}
		table, closeDB = db, func() { db.Close() }
	}
	defer closeDB()

	enricher := paradero.NewEnricher(cat.Addresses, nil)
	repo := repository.New(table, enricher, logger,
		repository.WithCacheTTL(cfg.DetailCacheTTL),
		repository.WithTimeout(cfg.RequestTimeout),
	)

	// Theme preferences
	var themes prefs.Store = prefs.NewMemory()
	var redisStore *prefs.Redis
	if cfg.RedisURL != "" {
		redisStore, err = prefs.NewRedis(ctx, cfg.RedisURL, logger)
		if err != nil {
			logger.Warn("redis unavailable, themes kept in memory", "error", err)
		} else {
			themes = redisStore
		}
	}

	// Collection, dispatcher and sinks
	store := realtime.NewStore()
	hub := realtime.NewHub()
	dispatcher := realtime.NewDispatcher(hub)

	var sink *changefeed.Sink
	if cfg.KafkaBrokers != "" {
		sink, err = changefeed.New(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			logger.Warn("kafka unavailable, change feed disabled", "error", err)
		} else {
			dispatcher.Register(sink)
		}
	}

	fetcher := realtime.NewFetcher(repo, store, dispatcher, cfg.RefreshInterval, logger)

	h := handler.New(repo, store, hub, themes, cfg, logger,
		handler.WithSimulatorOptions(arrivals.WithServices(cat.Services)),
	)
	srv := server.New(cfg, h, logger)

	// Initial fetch, then live changes. The loading page is shown until the
	// first fetch returns.
	go func() {
		stops := fetcher.Refresh(ctx)
		logger.Info("initial fetch complete", "stops", len(stops), "source", cfg.Source())
		if err := repo.Subscribe(ctx, fetcher.HandleChange); err != nil {
			logger.Error("subscribing to changes", "error", err)
		}
		srv.SetReady()
		fetcher.Start(ctx)
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")

		repo.Unsubscribe()
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	<-stopped

	if sink != nil {
		sink.Close()
	}
	if redisStore != nil {
		redisStore.Close()
	}
	logger.Info("stopped")
}
