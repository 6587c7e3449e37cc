package writer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/rickgao/binance-collector/internal/model"
)

// Flush errors.
var (
	ErrEmptyBatch     = errors.New("empty batch")
	ErrSchemaMismatch = errors.New("batch does not match output schema")
	ErrSinkWrite      = errors.New("sink write failed")
)

// Sink receives flushed chunks. Each WriteBatch call appends one chunk.
type Sink interface {
	WriteBatch(rec arrow.Record) error
	Close() error
}

// ChunkInfo describes one chunk accepted by the sink.
type ChunkInfo struct {
	Seq            int64 // 1-based chunk number within the run
	Rows           int
	Trades         int
	Depths         int
	FirstTimestamp string
	LastTimestamp  string
	Duration       time.Duration
}

// ChunkObserver is notified after every successful chunk write.
type ChunkObserver interface {
	ObserveChunk(info ChunkInfo)
}

// FlushStats counts flusher outcomes.
type FlushStats struct {
	Flushes int64
	Rows    int64
	Errors  int64
}

// Flusher writes batches to a Sink.
type Flusher struct {
	sink   Sink
	mem    memory.Allocator
	logger *slog.Logger

	observers []ChunkObserver

	mu    sync.Mutex
	stats FlushStats
}

// NewFlusher creates a Flusher. A nil allocator means memory.DefaultAllocator.
func NewFlusher(sink Sink, mem memory.Allocator, logger *slog.Logger) *Flusher {
	if logger == nil {
		logger = slog.Default()
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &Flusher{
		sink:   sink,
		mem:    mem,
		logger: logger,
	}
}

// AddObserver registers o for chunk notifications.
func (f *Flusher) AddObserver(o ChunkObserver) {
	if o != nil {
		f.observers = append(f.observers, o)
	}
}

// Write converts batch into one chunk and hands it to the sink. Sink
// failures are returned wrapped in ErrSinkWrite and are not retried.
func (f *Flusher) Write(batch Batch) error {
	if batch.Len() == 0 {
		return ErrEmptyBatch
	}

	start := time.Now()

	rec, err := batch.Record(f.mem)
	if err != nil {
		f.recordError()
		return err
	}
	defer rec.Release()

	if !rec.Schema().Equal(model.Schema()) {
		f.recordError()
		return fmt.Errorf("%w: record schema %s", ErrSchemaMismatch, rec.Schema())
	}

	if err := f.sink.WriteBatch(rec); err != nil {
		f.recordError()
		f.logger.Error("chunk write failed", "error", err, "rows", batch.Len())
		return fmt.Errorf("%w: %v", ErrSinkWrite, err)
	}

	f.mu.Lock()
	f.stats.Flushes++
	f.stats.Rows += int64(batch.Len())
	seq := f.stats.Flushes
	f.mu.Unlock()

	info := chunkInfo(batch, seq, time.Since(start))
	for _, o := range f.observers {
		o.ObserveChunk(info)
	}

	f.logger.Debug("flushed chunk",
		"seq", seq,
		"rows", info.Rows,
		"trades", info.Trades,
		"depths", info.Depths,
		"duration", info.Duration,
	)

	return nil
}

// Stats returns current counters.
func (f *Flusher) Stats() FlushStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *Flusher) recordError() {
	f.mu.Lock()
	f.stats.Errors++
	f.mu.Unlock()
}

func chunkInfo(b Batch, seq int64, d time.Duration) ChunkInfo {
	info := ChunkInfo{
		Seq:            seq,
		Rows:           b.Len(),
		FirstTimestamp: b.timestamps[0],
		LastTimestamp:  b.timestamps[b.Len()-1],
		Duration:       d,
	}
	for _, et := range b.eventTypes {
		switch model.EventType(et) {
		case model.EventTrade:
			info.Trades++
		case model.EventDepth:
			info.Depths++
		}
	}
	return info
}
