package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/time/rate"

	"github.com/rickgao/binance-collector/internal/connection"
	"github.com/rickgao/binance-collector/internal/model"
	"github.com/rickgao/binance-collector/internal/router"
	"github.com/rickgao/binance-collector/internal/writer"
)

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock used for the run deadline.
func WithClock(c Clock) Option {
	return func(ctl *Controller) {
		if c != nil {
			ctl.clock = c
		}
	}
}

// WithPreviewLimit caps trade preview logs per second. Zero disables them.
func WithPreviewLimit(perSecond float64) Option {
	return func(ctl *Controller) {
		if perSecond <= 0 {
			ctl.preview = nil
			return
		}
		ctl.preview = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithChunkObserver registers an observer for every chunk written.
func WithChunkObserver(o writer.ChunkObserver) Option {
	return func(ctl *Controller) {
		ctl.observers = append(ctl.observers, o)
	}
}

// WithAllocator sets the arrow allocator used to build records.
func WithAllocator(mem memory.Allocator) Option {
	return func(ctl *Controller) {
		ctl.mem = mem
	}
}

// Controller owns the accumulator and the sink for one run.
type Controller struct {
	cfg        Config
	src        FrameSource
	classifier *router.Classifier
	normalizer *writer.Normalizer
	sink       writer.Sink
	logger     *slog.Logger

	clock     Clock
	preview   *rate.Limiter
	mem       memory.Allocator
	observers []writer.ChunkObserver

	acc     *writer.Accumulator
	flusher *writer.Flusher

	frames atomic.Int64
	rows   atomic.Int64

	mu      sync.Mutex
	started bool
	start   time.Time
}

// New creates a Controller. The controller takes ownership of sink and
// closes it when Run returns.
func New(
	cfg Config,
	src FrameSource,
	classifier *router.Classifier,
	normalizer *writer.Normalizer,
	sink writer.Sink,
	logger *slog.Logger,
	opts ...Option,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = router.NewClassifier(logger)
	}
	if normalizer == nil {
		normalizer = writer.NewNormalizer("", nil, logger)
	}

	ctl := &Controller{
		cfg:        cfg,
		src:        src,
		classifier: classifier,
		normalizer: normalizer,
		sink:       sink,
		logger:     logger,
		clock:      systemClock{},
		preview:    rate.NewLimiter(rate.Limit(5), 1),
		acc:        writer.NewAccumulator(cfg.BatchSize),
	}
	for _, opt := range opts {
		opt(ctl)
	}

	ctl.flusher = writer.NewFlusher(sink, ctl.mem, logger)
	for _, o := range ctl.observers {
		ctl.flusher.AddObserver(o)
	}

	return ctl
}

// Run streams frames until a stop condition, then flushes what is buffered
// and closes the sink. It may be called once. The returned error is nil for
// planned stops unless the final flush or close failed.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return Result{}, ErrAlreadyRan
	}
	c.started = true
	c.start = c.clock.Now()
	c.mu.Unlock()

	c.logger.Info("collector started",
		"max_duration", c.cfg.MaxDuration,
		"batch_size", c.acc.BatchSize(),
	)

	reason, runErr := c.stream(ctx)

	flushErr := c.finalFlush()
	closeErr := c.sink.Close()
	if closeErr != nil {
		closeErr = fmt.Errorf("close sink: %w", closeErr)
	}

	res := c.result(reason)

	attrs := []any{
		"reason", reason.String(),
		"frames", res.Frames,
		"rows", res.Rows,
		"written", res.Written,
		"chunks", res.Chunks,
		"elapsed", res.Elapsed,
	}
	if reason.Planned() {
		c.logger.Info("collector stopped", attrs...)
	} else {
		c.logger.Error("collector stopped", append(attrs, "error", runErr)...)
	}

	return res, errors.Join(runErr, flushErr, closeErr)
}

// Stats returns progress counters of a running or finished controller.
func (c *Controller) Stats() Result {
	return c.result(ReasonNone)
}

func (c *Controller) result(reason StopReason) Result {
	fs := c.flusher.Stats()

	c.mu.Lock()
	start := c.start
	c.mu.Unlock()

	var elapsed time.Duration
	if !start.IsZero() {
		elapsed = c.clock.Now().Sub(start)
	}

	return Result{
		Reason:  reason,
		Frames:  c.frames.Load(),
		Rows:    c.rows.Load(),
		Written: fs.Rows,
		Chunks:  fs.Flushes,
		Elapsed: elapsed,
	}
}

func (c *Controller) stream(ctx context.Context) (StopReason, error) {
	for {
		elapsed := c.clock.Now().Sub(c.start)
		if elapsed >= c.cfg.MaxDuration {
			return ReasonDeadline, nil
		}

		// Bound the wait so an idle feed cannot outlive the run.
		nctx, cancel := context.WithTimeout(ctx, c.cfg.MaxDuration-elapsed)
		frame, err := c.src.Next(nctx)
		cancel()

		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return ReasonStreamEnd, nil
			case ctx.Err() != nil:
				return ReasonCanceled, nil
			case errors.Is(err, context.DeadlineExceeded):
				return ReasonDeadline, nil
			default:
				return ReasonTransportError, fmt.Errorf("%w: %v", ErrTransport, err)
			}
		}

		c.frames.Add(1)
		if err := c.handle(frame); err != nil {
			return ReasonSinkError, err
		}
	}
}

// handle turns one frame into at most one row and flushes when full.
func (c *Controller) handle(frame connection.Frame) error {
	ev, err := c.classifier.Classify(frame.Data)
	if err != nil {
		c.logger.Debug("frame skipped", "error", err, "bytes", len(frame.Data))
		return nil
	}

	row, ok := c.normalizer.Normalize(ev, frame.ReceivedAt)
	if !ok {
		return nil
	}

	c.acc.Append(row)
	c.rows.Add(1)

	if row.EventType == model.EventTrade {
		c.logTrade(row)
	}

	if !c.acc.IsFull() {
		return nil
	}
	return c.flusher.Write(c.acc.Drain())
}

func (c *Controller) finalFlush() error {
	batch := c.acc.Drain()
	if batch.Len() == 0 {
		return nil
	}
	if err := c.flusher.Write(batch); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}
	c.logger.Info("final flush", "rows", batch.Len())
	return nil
}

func (c *Controller) logTrade(row model.Row) {
	if c.preview == nil || !c.preview.Allow() {
		return
	}
	c.logger.Info("trade",
		"symbol", row.Symbol,
		"side", row.TradeSide,
		"price", row.TradePrice,
		"qty", row.TradeQty,
		"latency_ms", row.LatencyMs,
	)
}
