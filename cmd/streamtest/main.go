// streamtest connects to the Binance feed and prints normalized rows to the
// console without writing a file.
// Usage: go run ./cmd/streamtest --config configs/collector.example.yaml
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/binance-collector/internal/config"
	"github.com/rickgao/binance-collector/internal/connection"
	"github.com/rickgao/binance-collector/internal/model"
	"github.com/rickgao/binance-collector/internal/router"
	"github.com/rickgao/binance-collector/internal/writer"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults are used when empty)")
	verbose := flag.Bool("verbose", false, "print full row JSON")
	limit := flag.Int("n", 0, "stop after n frames (0 runs until interrupted)")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	sideRule, err := writer.SideRuleByName(cfg.Run.MakerSide)
	if err != nil {
		logger.Error("invalid maker side", "error", err)
		os.Exit(1)
	}

	client := connection.NewClient(connection.ClientConfig{
		URL:              connection.StreamURL(cfg.Feed.WSURL, cfg.Feed.Streams, cfg.Feed.Subscribe),
		HandshakeTimeout: cfg.Feed.HandshakeTimeout,
		PingTimeout:      cfg.Feed.PingTimeout,
		WriteTimeout:     cfg.Feed.WriteTimeout,
		BufferSize:       cfg.Feed.BufferSize,
	}, logger)
	defer client.Close()

	logger.Info("connecting", "url", cfg.Feed.WSURL, "streams", cfg.Feed.Streams)
	if err := client.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	if cfg.Feed.Subscribe {
		if err := client.Subscribe(cfg.Feed.Streams); err != nil {
			logger.Error("failed to subscribe", "error", err)
			os.Exit(1)
		}
	}

	classifier := router.NewClassifier(logger)
	normalizer := writer.NewNormalizer(cfg.Feed.Symbol, sideRule, logger)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rs := classifier.Stats()
				ns := normalizer.Stats()
				logger.Info("stats",
					"received", rs.Received,
					"trades", rs.Trades,
					"depths", rs.Depths,
					"unknown", rs.Unknown,
					"decode_errors", rs.DecodeErrors,
					"parse_fallbacks", ns.Fallbacks,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	frames := 0
	for *limit == 0 || frames < *limit {
		frame, err := client.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				break
			}
			logger.Error("stream failed", "error", err)
			os.Exit(1)
		}
		frames++

		ev, err := classifier.Classify(frame.Data)
		if err != nil {
			fmt.Printf("[DECODE ERROR] %v\n", err)
			continue
		}
		row, ok := normalizer.Normalize(ev, frame.ReceivedAt)
		if !ok {
			fmt.Printf("[UNKNOWN] %s\n", frame.Data)
			continue
		}
		printRow(row, *verbose)
	}

	logger.Info("shutdown complete", "frames", frames)
}

func printRow(row model.Row, verbose bool) {
	if verbose {
		data, _ := json.MarshalIndent(row, "", "  ")
		fmt.Printf("[%s] %s\n", row.EventType, data)
		return
	}

	switch row.EventType {
	case model.EventTrade:
		fmt.Printf("[TRADE] %s %s side=%s price=%g qty=%g latency_ms=%d\n",
			row.Timestamp, row.Symbol, row.TradeSide, row.TradePrice, row.TradeQty, row.LatencyMs)
	case model.EventDepth:
		fmt.Printf("[DEPTH] %s %s bids=%d bytes asks=%d bytes\n",
			row.Timestamp, row.Symbol, len(row.BidsJSON), len(row.AsksJSON))
	}
}
