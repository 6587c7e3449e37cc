package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/binance-collector/internal/collector"
	"github.com/rickgao/binance-collector/internal/config"
	"github.com/rickgao/binance-collector/internal/connection"
	"github.com/rickgao/binance-collector/internal/database"
	"github.com/rickgao/binance-collector/internal/metrics"
	"github.com/rickgao/binance-collector/internal/router"
	"github.com/rickgao/binance-collector/internal/sink"
	"github.com/rickgao/binance-collector/internal/version"
	"github.com/rickgao/binance-collector/internal/writer"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults are used when empty)")
	output := flag.String("output", "", "override output.path")
	duration := flag.Duration("duration", 0, "override run.duration")
	envFile := flag.String("env-file", ".env", "optional dotenv file read before ${VAR} expansion")
	flag.Parse()

	// Best effort: the file is optional and never overrides the real environment
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read env file", "path", *envFile, "error", err)
	}

	cfg, err := config.Load(*configPath,
		config.WithOutputPath(*output),
		config.WithDuration(*duration),
	)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("collector failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg *config.CollectorConfig, logger *slog.Logger) error {
	runID := uuid.New()
	logger = logger.With("run_id", runID.String())

	logger.Info("starting collector",
		"version", version.Version,
		"commit", version.Commit,
		"instance_id", cfg.Instance.ID,
		"symbol", cfg.Feed.Symbol,
		"streams", cfg.Feed.Streams,
		"duration", cfg.Run.Duration,
		"batch_size", cfg.Run.BatchSize,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	sideRule, err := writer.SideRuleByName(cfg.Run.MakerSide)
	if err != nil {
		return err
	}

	// Optional chunk ledger
	var (
		pool   *pgxpool.Pool
		ledger *database.Ledger
	)
	if cfg.Database.Enabled {
		db := cfg.Database.Timescale
		logger.Info("connecting to database",
			"host", db.Host,
			"port", db.Port,
			"database", db.Name,
		)
		pool, err = database.Connect(ctx, db)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		ledger = database.NewLedger(pool, runID, database.DefaultLedgerConfig(), logger)
		if err := ledger.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	// Output file; nothing has been read yet if this fails
	out, err := sink.Create(cfg.Output.Path, sink.Options{
		Compression: cfg.Output.Compression,
		Overwrite:   !cfg.Output.Exclusive,
		Metadata: map[string]string{
			sink.MetaRunID:   runID.String(),
			sink.MetaSymbol:  cfg.Feed.Symbol,
			sink.MetaVersion: version.UserAgent(),
		},
	}, logger)
	if err != nil {
		return err
	}

	// Websocket transport
	clientCfg := connection.ClientConfig{
		URL:              connection.StreamURL(cfg.Feed.WSURL, cfg.Feed.Streams, cfg.Feed.Subscribe),
		HandshakeTimeout: cfg.Feed.HandshakeTimeout,
		PingTimeout:      cfg.Feed.PingTimeout,
		WriteTimeout:     cfg.Feed.WriteTimeout,
		BufferSize:       cfg.Feed.BufferSize,
	}
	client := connection.NewClient(clientCfg, logger)
	defer client.Close()

	if err := connect(ctx, client, cfg.Feed); err != nil {
		out.Close()
		return err
	}

	// Pipeline
	m := metrics.New(cfg.Feed.Symbol)
	classifier := router.NewClassifier(logger)
	classifier.SetObserver(m)
	normalizer := writer.NewNormalizer(cfg.Feed.Symbol, sideRule, logger)

	opts := []collector.Option{
		collector.WithPreviewLimit(cfg.Run.PreviewPerSecond),
		collector.WithChunkObserver(m),
	}
	if ledger != nil {
		opts = append(opts, collector.WithChunkObserver(ledger))
	}
	ctl := collector.New(
		collector.Config{MaxDuration: cfg.Run.Duration, BatchSize: cfg.Run.BatchSize},
		client,
		classifier,
		normalizer,
		out,
		logger,
		opts...,
	)

	startedAt := time.Now()
	if ledger != nil {
		if err := ledger.StartRun(ctx, cfg.Feed.Symbol, cfg.Output.Path, startedAt); err != nil {
			logger.Warn("ledger disabled for this run", "error", err)
			ledger = nil
		}
	}

	var srv *http.Server
	if cfg.Metrics.Port > 0 {
		srv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: metrics.NewHandler(m, cfg.Metrics.Path, healthChecks(ctl, client, pool)...),
		}
	}

	result, runErr := collect(ctx, ctl, srv, logger)

	if ledger != nil {
		finishCtx, finishCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer finishCancel()
		if err := ledger.FinishRun(finishCtx, result.Reason.String(), result.Written, result.Chunks, time.Now()); err != nil {
			logger.Warn("ledger finish failed", "error", err)
		}
	}

	logger.Info("collector stopped",
		"reason", result.Reason.String(),
		"rows", result.Written,
		"chunks", result.Chunks,
		"output", cfg.Output.Path,
		"elapsed", time.Since(startedAt).Round(time.Millisecond),
	)

	return runErr
}

type runner interface {
	Run(ctx context.Context) (collector.Result, error)
}

// collect runs the controller and, when srv is set, serves metrics beside it
// until the run ends. A metrics server failure is logged and never stops the
// run.
func collect(ctx context.Context, ctl runner, srv *http.Server, logger *slog.Logger) (collector.Result, error) {
	var (
		g       errgroup.Group
		result  collector.Result
		runErr  error
		runDone = make(chan struct{})
	)

	g.Go(func() error {
		defer close(runDone)
		result, runErr = ctl.Run(ctx)
		return nil
	})

	if srv != nil {
		g.Go(func() error {
			logger.Info("starting metrics server", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed, collection continues", "addr", srv.Addr, "error", err)
			}
			return nil
		})
		g.Go(func() error {
			<-runDone
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Warn("metrics server shutdown", "error", err)
	}
	return result, runErr
}

// connect dials the feed and sends the subscription when streams are not in the URL.
func connect(ctx context.Context, client connection.Client, feed config.FeedConfig) error {
	dialCtx, cancel := context.WithTimeout(ctx, feed.HandshakeTimeout)
	defer cancel()

	if err := client.Connect(dialCtx); err != nil {
		return fmt.Errorf("connect feed: %w", err)
	}
	if feed.Subscribe {
		if err := client.Subscribe(feed.Streams); err != nil {
			return err
		}
	}
	return nil
}

func healthChecks(ctl *collector.Controller, client connection.Client, pool *pgxpool.Pool) []metrics.Check {
	checks := []metrics.Check{
		{
			Name: "collector",
			Fn: func(context.Context) (any, error) {
				s := ctl.Stats()
				return map[string]any{
					"frames":  s.Frames,
					"rows":    s.Rows,
					"written": s.Written,
					"chunks":  s.Chunks,
					"elapsed": s.Elapsed.Round(time.Second).String(),
				}, nil
			},
		},
		{
			Name: "feed",
			Fn: func(context.Context) (any, error) {
				if !client.IsConnected() {
					return nil, connection.ErrNotConnected
				}
				return "connected", nil
			},
		},
	}

	if pool != nil {
		checks = append(checks, metrics.Check{
			Name: "timescaledb",
			Fn: func(ctx context.Context) (any, error) {
				if err := pool.Ping(ctx); err != nil {
					return nil, err
				}
				return "connected", nil
			},
		})
	}

	return checks
}
