// streamtest connects to the exchange WebSocket, subscribes to one
// (stream, feed) pair, and prints every payload to the console.
// Usage: go run ./cmd/streamtest --stream mini.s --feed BTC_USDT_Perp@500
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grvt-dev/grvt-go/connection"
	"github.com/grvt-dev/grvt-go/stream"
)

func main() {
	wsURL := flag.String("url", "wss://market-data.grvt.io/ws", "WebSocket URL")
	streamName := flag.String("stream", "mini.s", "stream name (without version prefix)")
	feed := flag.String("feed", "BTC_USDT_Perp@500", "feed parameter")
	verbose := flag.Bool("verbose", false, "log at debug level")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := connection.DefaultConfig()
	cfg.URL = *wsURL
	conn := connection.NewClient(cfg, logger)
	manager := stream.NewManager(conn, stream.DefaultConfig(), logger)

	if err := conn.Connect(ctx); err != nil {
		logger.Error("failed to start connection", "error", err)
		os.Exit(1)
	}

	readyCtx, cancelReady := context.WithTimeout(ctx, 30*time.Second)
	err := conn.Ready(readyCtx)
	cancelReady()
	if err != nil {
		logger.Error("websocket never became ready", "error", err)
		os.Exit(1)
	}
	logger.Info("connected", "url", *wsURL)

	count := 0
	sub, err := manager.Subscribe(ctx, *streamName, *feed, func(payload json.RawMessage) {
		count++
		var pretty map[string]any
		if err := json.Unmarshal(payload, &pretty); err != nil {
			fmt.Printf("[%d] %s\n", count, payload)
			return
		}
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Printf("[%d] %s\n", count, out)
	})
	if err != nil {
		logger.Error("subscribe failed", "stream", *streamName, "feed", *feed, "error", err)
		os.Exit(1)
	}
	logger.Info("subscribed", "stream", *streamName, "feed", *feed)

	select {
	case <-ctx.Done():
	case err, ok := <-sub.Failed():
		if ok && err != nil {
			logger.Error("subscription lost", "error", err)
		}
	}

	logger.Info("shutting down", "messages", count)
	sub.Unsubscribe()

	closeCtx, cancelClose := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelClose()
	conn.Close(closeCtx)
}
