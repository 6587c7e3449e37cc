package writer

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/rickgao/binance-collector/internal/model"
)

// Batch is a column-major snapshot of drained rows. A Batch is never
// modified after Drain hands it out.
type Batch struct {
	timestamps []string
	eventTypes []string
	latencies  []int64
	symbols    []string
	prices     []float64
	qtys       []float64
	sides      []string
	bids       []string
	asks       []string
}

func newBatch(capacity int) Batch {
	return Batch{
		timestamps: make([]string, 0, capacity),
		eventTypes: make([]string, 0, capacity),
		latencies:  make([]int64, 0, capacity),
		symbols:    make([]string, 0, capacity),
		prices:     make([]float64, 0, capacity),
		qtys:       make([]float64, 0, capacity),
		sides:      make([]string, 0, capacity),
		bids:       make([]string, 0, capacity),
		asks:       make([]string, 0, capacity),
	}
}

func (b *Batch) append(r model.Row) {
	b.timestamps = append(b.timestamps, r.Timestamp)
	b.eventTypes = append(b.eventTypes, string(r.EventType))
	b.latencies = append(b.latencies, r.LatencyMs)
	b.symbols = append(b.symbols, r.Symbol)
	b.prices = append(b.prices, r.TradePrice)
	b.qtys = append(b.qtys, r.TradeQty)
	b.sides = append(b.sides, string(r.TradeSide))
	b.bids = append(b.bids, r.BidsJSON)
	b.asks = append(b.asks, r.AsksJSON)
}

// Len returns the number of rows.
func (b Batch) Len() int {
	return len(b.timestamps)
}

// Row returns row i in insertion order.
func (b Batch) Row(i int) model.Row {
	return model.Row{
		Timestamp:  b.timestamps[i],
		EventType:  model.EventType(b.eventTypes[i]),
		LatencyMs:  b.latencies[i],
		Symbol:     b.symbols[i],
		TradePrice: b.prices[i],
		TradeQty:   b.qtys[i],
		TradeSide:  model.Side(b.sides[i]),
		BidsJSON:   b.bids[i],
		AsksJSON:   b.asks[i],
	}
}

// Rows returns all rows in insertion order.
func (b Batch) Rows() []model.Row {
	rows := make([]model.Row, b.Len())
	for i := range rows {
		rows[i] = b.Row(i)
	}
	return rows
}

// columnLens returns the length of each column in schema order.
func (b Batch) columnLens() [model.NumColumns]int {
	return [model.NumColumns]int{
		model.IdxTimestamp:  len(b.timestamps),
		model.IdxEventType:  len(b.eventTypes),
		model.IdxLatencyMs:  len(b.latencies),
		model.IdxSymbol:     len(b.symbols),
		model.IdxTradePrice: len(b.prices),
		model.IdxTradeQty:   len(b.qtys),
		model.IdxTradeSide:  len(b.sides),
		model.IdxBidsJSON:   len(b.bids),
		model.IdxAsksJSON:   len(b.asks),
	}
}

// validate checks that every column has the same number of values.
func (b Batch) validate() error {
	lens := b.columnLens()
	for i, n := range lens {
		if n != lens[0] {
			return fmt.Errorf("%w: column %s has %d values, want %d",
				ErrSchemaMismatch, model.Schema().Field(i).Name, n, lens[0])
		}
	}
	return nil
}

// Record builds an arrow record with the output schema. The caller must
// Release it.
func (b Batch) Record(mem memory.Allocator) (arrow.Record, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	rb := array.NewRecordBuilder(mem, model.Schema())
	defer rb.Release()

	rb.Field(model.IdxTimestamp).(*array.StringBuilder).AppendValues(b.timestamps, nil)
	rb.Field(model.IdxEventType).(*array.StringBuilder).AppendValues(b.eventTypes, nil)
	rb.Field(model.IdxLatencyMs).(*array.Int64Builder).AppendValues(b.latencies, nil)
	rb.Field(model.IdxSymbol).(*array.StringBuilder).AppendValues(b.symbols, nil)
	rb.Field(model.IdxTradePrice).(*array.Float64Builder).AppendValues(b.prices, nil)
	rb.Field(model.IdxTradeQty).(*array.Float64Builder).AppendValues(b.qtys, nil)
	rb.Field(model.IdxTradeSide).(*array.StringBuilder).AppendValues(b.sides, nil)
	rb.Field(model.IdxBidsJSON).(*array.StringBuilder).AppendValues(b.bids, nil)
	rb.Field(model.IdxAsksJSON).(*array.StringBuilder).AppendValues(b.asks, nil)

	return rb.NewRecord(), nil
}
