package writer

import (
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/rickgao/binance-collector/internal/model"
)

// recordingSink keeps the timestamps of every chunk it receives.
type recordingSink struct {
	chunks [][]string
	err    error
	closed int
}

func (s *recordingSink) WriteBatch(rec arrow.Record) error {
	if s.err != nil {
		return s.err
	}
	col := rec.Column(model.IdxTimestamp).(*array.String)
	ts := make([]string, col.Len())
	for i := range ts {
		ts[i] = col.Value(i)
	}
	s.chunks = append(s.chunks, ts)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed++
	return nil
}

type chunkRecorder struct {
	infos []ChunkInfo
}

func (c *chunkRecorder) ObserveChunk(info ChunkInfo) {
	c.infos = append(c.infos, info)
}

func fill(a *Accumulator, from, to int) {
	for i := from; i < to; i++ {
		a.Append(testRow(i))
	}
}

func TestFlusher_Write(t *testing.T) {
	sink := &recordingSink{}
	f := NewFlusher(sink, nil, nil)
	obs := &chunkRecorder{}
	f.AddObserver(obs)

	a := NewAccumulator(4)
	fill(a, 0, 4)
	if err := f.Write(a.Drain()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	fill(a, 4, 6)
	if err := f.Write(a.Drain()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if len(sink.chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(sink.chunks))
	}
	if len(sink.chunks[0]) != 4 || len(sink.chunks[1]) != 2 {
		t.Errorf("chunk sizes = %d/%d, want 4/2", len(sink.chunks[0]), len(sink.chunks[1]))
	}

	// Order survives the flush
	var got []string
	for _, c := range sink.chunks {
		got = append(got, c...)
	}
	for i, ts := range got {
		if ts != testRow(i).Timestamp {
			t.Errorf("row %d timestamp = %s, want %s", i, ts, testRow(i).Timestamp)
		}
	}

	stats := f.Stats()
	if stats.Flushes != 2 || stats.Rows != 6 || stats.Errors != 0 {
		t.Errorf("Stats() = %+v, want 2 flushes / 6 rows", stats)
	}

	if len(obs.infos) != 2 {
		t.Fatalf("observed %d chunks, want 2", len(obs.infos))
	}
	first := obs.infos[0]
	if first.Seq != 1 || first.Rows != 4 || first.Trades != 2 || first.Depths != 2 {
		t.Errorf("first chunk = %+v", first)
	}
	if first.FirstTimestamp != testRow(0).Timestamp || first.LastTimestamp != testRow(3).Timestamp {
		t.Errorf("first chunk timestamps = %s..%s", first.FirstTimestamp, first.LastTimestamp)
	}
	if obs.infos[1].Seq != 2 {
		t.Errorf("second chunk Seq = %d, want 2", obs.infos[1].Seq)
	}

	if sink.closed != 0 {
		t.Error("Flusher must not close the sink")
	}
}

func TestFlusher_EmptyBatch(t *testing.T) {
	sink := &recordingSink{}
	f := NewFlusher(sink, nil, nil)

	err := f.Write(NewAccumulator(4).Drain())
	if !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("Write() error = %v, want ErrEmptyBatch", err)
	}
	if len(sink.chunks) != 0 {
		t.Error("empty batch reached the sink")
	}
}

func TestFlusher_SinkError(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	f := NewFlusher(sink, nil, nil)
	obs := &chunkRecorder{}
	f.AddObserver(obs)

	a := NewAccumulator(2)
	fill(a, 0, 2)

	err := f.Write(a.Drain())
	if !errors.Is(err, ErrSinkWrite) {
		t.Fatalf("Write() error = %v, want ErrSinkWrite", err)
	}

	stats := f.Stats()
	if stats.Errors != 1 || stats.Flushes != 0 {
		t.Errorf("Stats() = %+v, want 1 error", stats)
	}
	if len(obs.infos) != 0 {
		t.Error("observer notified for a failed chunk")
	}
}

func TestFlusher_SchemaMismatch(t *testing.T) {
	sink := &recordingSink{}
	f := NewFlusher(sink, nil, nil)

	b := newBatch(2)
	b.append(testRow(0))
	b.append(testRow(1))
	b.latencies = b.latencies[:1]

	if err := f.Write(b); !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("Write() error = %v, want ErrSchemaMismatch", err)
	}
	if len(sink.chunks) != 0 {
		t.Error("mismatched batch reached the sink")
	}
}
