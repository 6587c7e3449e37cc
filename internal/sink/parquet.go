package sink

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/rickgao/binance-collector/internal/model"
)

// Sink errors.
var (
	ErrSinkInit = errors.New("sink init failed")
	ErrClosed   = errors.New("sink closed")
)

// Metadata keys written to the Parquet footer.
const (
	MetaRunID   = "collector.run_id"
	MetaSymbol  = "collector.symbol"
	MetaVersion = "collector.version"
)

// Options configures a ParquetSink.
type Options struct {
	Compression string // snappy, zstd, gzip, none
	Overwrite   bool   // replace an existing file instead of failing
	Metadata    map[string]string
	Allocator   memory.Allocator
}

// Stats counts what the sink accepted.
type Stats struct {
	Chunks int64
	Rows   int64
}

// ParquetSink appends record batches to a single Parquet file.
type ParquetSink struct {
	path   string
	logger *slog.Logger

	file *os.File
	fw   *pqarrow.FileWriter

	mu     sync.Mutex
	closed bool
	stats  Stats
}

// Codec resolves a compression name.
func Codec(name string) (compress.Compression, error) {
	switch name {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "none":
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("unsupported compression %q", name)
	}
}

// Create opens path for writing with the output schema. All failures are
// wrapped in ErrSinkInit.
func Create(path string, opts Options, logger *slog.Logger) (*ParquetSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Allocator == nil {
		opts.Allocator = memory.DefaultAllocator
	}

	codec, err := Codec(opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSinkInit, err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !opts.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrSinkInit, path, err)
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithAllocator(opts.Allocator),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithStoreSchema(),
		pqarrow.WithAllocator(opts.Allocator),
	)

	fw, err := pqarrow.NewFileWriter(model.SchemaWithMetadata(opts.Metadata), f, props, arrowProps)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%w: parquet writer: %v", ErrSinkInit, err)
	}

	logger.Info("parquet sink opened",
		"path", path,
		"compression", opts.Compression,
	)

	return &ParquetSink{
		path:   path,
		logger: logger,
		file:   f,
		fw:     fw,
	}, nil
}

// Path returns the output file path.
func (s *ParquetSink) Path() string {
	return s.path
}

// WriteBatch appends rec as one row group.
func (s *ParquetSink) WriteBatch(rec arrow.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := s.fw.Write(rec); err != nil {
		return fmt.Errorf("write row group: %w", err)
	}

	s.stats.Chunks++
	s.stats.Rows += rec.NumRows()
	return nil
}

// Close writes the footer and closes the file. Only the first call does any
// work; later calls return ErrClosed.
func (s *ParquetSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.closed = true

	err := s.fw.Close()
	// The parquet writer may already have closed the file
	if cerr := s.file.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}

	s.logger.Info("parquet sink closed",
		"path", s.path,
		"chunks", s.stats.Chunks,
		"rows", s.stats.Rows,
	)
	return nil
}

// Stats returns current counters.
func (s *ParquetSink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
