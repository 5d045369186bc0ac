package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nvoronin/dinogo/internal/ai"
	"github.com/nvoronin/dinogo/internal/config"
	"github.com/nvoronin/dinogo/internal/db"
	"github.com/nvoronin/dinogo/internal/feed"
	"github.com/nvoronin/dinogo/internal/model"
	"github.com/nvoronin/dinogo/internal/sim"
	"github.com/nvoronin/dinogo/internal/world"
)

const ConfigPath = "config/simserver.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("DINOGO_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadSimServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))
	ai.EnableDebugLogging(logLevel == slog.LevelDebug)

	slog.Info("dinogo simulation server starting", "log_level", cfg.LogLevel)

	observers := world.NewObserverRegistry()
	catalog := model.DefaultCatalog()
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))

	var notifier sim.Notifier = sim.NopNotifier{}
	var feedSrv *feed.Server
	if cfg.Feed.Enabled {
		feedSrv = feed.NewServer()
		notifier = feedSrv
	}

	manager := sim.NewManager(cfg, catalog, observers, notifier, rng)

	// Optional persistence of the dormant population.
	var store sim.SnapshotStore
	if cfg.Database.Enabled {
		database, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()
		if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database connected, migrations applied")

		store = db.NewSnapshotRepository(database)
		if err := manager.LoadSleeping(ctx, store); err != nil {
			// Degraded boot, not a fatal one: the world just starts
			// emptier than it should.
			slog.Warn("restoring dormant population", "err", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return manager.Run(gctx)
	})

	if feedSrv != nil {
		g.Go(func() error {
			addr := fmt.Sprintf("%s:%d", cfg.Feed.BindAddress, cfg.Feed.Port)
			return feedSrv.ListenAndServe(gctx, addr)
		})
	}

	err = g.Wait()

	if store != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if saveErr := manager.SaveSleeping(flushCtx, store); saveErr != nil {
			slog.Error("final snapshot flush failed", "err", saveErr)
		} else {
			slog.Info("dormant population saved", "count", manager.SleepingCount())
		}
	}
	return err
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
