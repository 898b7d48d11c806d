// recorder subscribes to configured mini-ticker feeds and records ticks
// into PostgreSQL.
// Usage: go run ./cmd/recorder --config configs/recorder.local.yaml
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/grvt-dev/grvt-go/connection"
	"github.com/grvt-dev/grvt-go/internal/config"
	"github.com/grvt-dev/grvt-go/internal/database"
	"github.com/grvt-dev/grvt-go/internal/recorder"
	"github.com/grvt-dev/grvt-go/internal/version"
	"github.com/grvt-dev/grvt-go/stream"
)

func main() {
	configPath := flag.String("config", "configs/recorder.local.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("starting recorder",
		"version", version.String(),
		"instance_id", cfg.Instance.ID,
		"ws_url", cfg.API.WSURL,
		"feeds", len(cfg.Recorder.Feeds),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// WebSocket connection and subscription manager. The manager must be
	// attached before Connect so it observes the first open.
	connCfg := connection.DefaultConfig()
	connCfg.URL = cfg.API.WSURL
	conn := connection.NewClient(connCfg, logger.With("component", "connection"))
	manager := stream.NewManager(conn, stream.DefaultConfig(), logger.With("component", "stream"))

	if err := conn.Connect(ctx); err != nil {
		logger.Error("failed to start connection", "error", err)
		os.Exit(1)
	}

	readyCtx, cancelReady := context.WithTimeout(ctx, 30*time.Second)
	err = conn.Ready(readyCtx)
	cancelReady()
	if err != nil {
		logger.Error("websocket never became ready", "error", err)
		os.Exit(1)
	}
	logger.Info("websocket connected")

	rec := recorder.New(cfg.Recorder, manager, pool, logger.With("component", "recorder"))
	if err := rec.Start(ctx); err != nil {
		logger.Error("failed to start recorder", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	// Periodic stats heartbeat.
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				stats := rec.Stats()
				logger.Info("recorder stats",
					"ticks", stats.Ticks,
					"inserts", stats.Inserts,
					"conflicts", stats.Conflicts,
					"flushes", stats.Flushes,
					"errors", stats.Errors,
				)
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("recorder failed", "error", err)
	}

	logger.Info("shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	rec.Stop(shutdownCtx)
	conn.Close(shutdownCtx)

	logger.Info("recorder stopped")
}
