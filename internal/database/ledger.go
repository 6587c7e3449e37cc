package database

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/binance-collector/internal/writer"
)

// Execer is the subset of pgxpool.Pool used by the ledger.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema creates the ledger tables.
const Schema = `
CREATE TABLE IF NOT EXISTS collector_runs (
	run_id      UUID PRIMARY KEY,
	symbol      TEXT NOT NULL,
	output_path TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	stop_reason TEXT,
	rows        BIGINT NOT NULL DEFAULT 0,
	chunks      BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS collector_chunks (
	run_id     UUID NOT NULL REFERENCES collector_runs (run_id),
	seq        BIGINT NOT NULL,
	rows       INTEGER NOT NULL,
	trades     INTEGER NOT NULL,
	depths     INTEGER NOT NULL,
	first_ts   TEXT NOT NULL,
	last_ts    TEXT NOT NULL,
	written_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// LedgerConfig configures a Ledger.
type LedgerConfig struct {
	QueueSize    int
	WriteTimeout time.Duration
}

// DefaultLedgerConfig returns sensible defaults.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		QueueSize:    256,
		WriteTimeout: 5 * time.Second,
	}
}

// LedgerStats counts ledger outcomes.
type LedgerStats struct {
	Inserts int64
	Dropped int64 // chunk records discarded because the queue was full
	Errors  int64
}

type chunkRecord struct {
	info writer.ChunkInfo
	at   time.Time
}

// Ledger records one run and its chunks. ObserveChunk never blocks the
// caller; records are inserted by a background goroutine.
type Ledger struct {
	db     Execer
	runID  uuid.UUID
	cfg    LedgerConfig
	logger *slog.Logger

	queue chan chunkRecord
	wg    sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool

	inserts atomic.Int64
	dropped atomic.Int64
	errors  atomic.Int64
}

// NewLedger creates a Ledger for runID.
func NewLedger(db Execer, runID uuid.UUID, cfg LedgerConfig, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = DefaultLedgerConfig().QueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultLedgerConfig().WriteTimeout
	}
	return &Ledger{
		db:     db,
		runID:  runID,
		cfg:    cfg,
		logger: logger.With("run_id", runID.String()),
		queue:  make(chan chunkRecord, cfg.QueueSize),
	}
}

// RunID returns the run identifier.
func (l *Ledger) RunID() uuid.UUID {
	return l.runID
}

// EnsureSchema creates the ledger tables if they do not exist.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create ledger schema: %w", err)
	}
	return nil
}

// StartRun inserts the run row and starts the chunk writer.
func (l *Ledger) StartRun(ctx context.Context, symbol, outputPath string, startedAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return fmt.Errorf("run %s already started", l.runID)
	}

	_, err := l.db.Exec(ctx, `
		INSERT INTO collector_runs (run_id, symbol, output_path, started_at)
		VALUES ($1, $2, $3, $4)
	`, l.runID, symbol, outputPath, startedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	l.started = true
	l.wg.Add(1)
	go l.writeLoop()

	l.logger.Info("ledger run started", "symbol", symbol, "output_path", outputPath)
	return nil
}

// ObserveChunk queues a chunk record.
func (l *Ledger) ObserveChunk(info writer.ChunkInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started || l.stopped {
		return
	}

	select {
	case l.queue <- chunkRecord{info: info, at: time.Now()}:
	default:
		l.dropped.Add(1)
		l.logger.Warn("ledger queue full, chunk record dropped", "seq", info.Seq)
	}
}

// FinishRun drains queued chunk records and updates the run row.
func (l *Ledger) FinishRun(ctx context.Context, reason string, rows, chunks int64, finishedAt time.Time) error {
	l.mu.Lock()
	if !l.started || l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	close(l.queue)
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		l.logger.Warn("ledger drain timed out", "pending", len(l.queue))
	}

	// The drain wait may have used up ctx; the run row gets its own window
	updCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.WriteTimeout)
	defer cancel()

	_, err := l.db.Exec(updCtx, `
		UPDATE collector_runs
		SET finished_at = $2, stop_reason = $3, rows = $4, chunks = $5
		WHERE run_id = $1
	`, l.runID, finishedAt, reason, rows, chunks)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	stats := l.Stats()
	l.logger.Info("ledger run finished",
		"reason", reason,
		"chunk_records", stats.Inserts,
		"dropped", stats.Dropped,
		"errors", stats.Errors,
	)
	return nil
}

// Stats returns current counters.
func (l *Ledger) Stats() LedgerStats {
	return LedgerStats{
		Inserts: l.inserts.Load(),
		Dropped: l.dropped.Load(),
		Errors:  l.errors.Load(),
	}
}

func (l *Ledger) writeLoop() {
	defer l.wg.Done()

	for rec := range l.queue {
		if err := l.insertChunk(rec); err != nil {
			l.errors.Add(1)
			l.logger.Error("ledger chunk insert failed", "error", err, "seq", rec.info.Seq)
			continue
		}
		l.inserts.Add(1)
	}
}

func (l *Ledger) insertChunk(rec chunkRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.WriteTimeout)
	defer cancel()

	info := rec.info
	_, err := l.db.Exec(ctx, `
		INSERT INTO collector_chunks (run_id, seq, rows, trades, depths, first_ts, last_ts, written_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id, seq) DO NOTHING
	`, l.runID, info.Seq, info.Rows, info.Trades, info.Depths, info.FirstTimestamp, info.LastTimestamp, rec.at)
	return err
}
