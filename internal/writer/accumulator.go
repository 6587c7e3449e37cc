package writer

import (
	"github.com/rickgao/binance-collector/internal/model"
)

// Accumulator buffers rows column by column until the batch size is reached.
// It has a single owner and is not safe for concurrent use.
type Accumulator struct {
	batchSize int
	cur       Batch
}

// NewAccumulator creates an Accumulator that reports full at batchSize rows.
func NewAccumulator(batchSize int) *Accumulator {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Accumulator{
		batchSize: batchSize,
		cur:       newBatch(batchSize),
	}
}

// Append adds one row to every column.
func (a *Accumulator) Append(r model.Row) {
	a.cur.append(r)
}

// Len returns the number of buffered rows.
func (a *Accumulator) Len() int {
	return a.cur.Len()
}

// BatchSize returns the flush threshold.
func (a *Accumulator) BatchSize() int {
	return a.batchSize
}

// IsFull reports whether the buffer reached the batch size.
func (a *Accumulator) IsFull() bool {
	return a.cur.Len() >= a.batchSize
}

// Drain hands out the buffered rows and starts over with empty columns.
func (a *Accumulator) Drain() Batch {
	out := a.cur
	a.cur = newBatch(a.batchSize)
	return out
}
