package sink

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/rickgao/binance-collector/internal/model"
)

// Summary describes a closed output file.
type Summary struct {
	Rows      int64
	RowGroups []int64 // rows per row group, in file order
	Metadata  map[string]string
	Schema    *arrow.Schema
}

// Summarize reads the footer of a Parquet file.
func Summarize(path string) (Summary, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return Summary{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer rdr.Close()

	md := rdr.MetaData()
	sum := Summary{
		Rows:     rdr.NumRows(),
		Metadata: make(map[string]string),
	}
	for i := 0; i < rdr.NumRowGroups(); i++ {
		sum.RowGroups = append(sum.RowGroups, md.RowGroup(i).NumRows())
	}

	kv := md.KeyValueMetadata()
	values := kv.Values()
	for i, key := range kv.Keys() {
		sum.Metadata[key] = values[i]
	}

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return Summary{}, fmt.Errorf("arrow reader: %w", err)
	}
	sum.Schema, err = fr.Schema()
	if err != nil {
		return Summary{}, fmt.Errorf("arrow schema: %w", err)
	}

	return sum, nil
}

// ReadRows returns up to limit rows from path in file order. A limit of 0 or
// less reads every row.
func ReadRows(ctx context.Context, path string, limit int) ([]model.Row, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("arrow reader: %w", err)
	}

	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	defer tbl.Release()

	if int(tbl.NumCols()) != model.NumColumns {
		return nil, fmt.Errorf("file has %d columns, want %d", tbl.NumCols(), model.NumColumns)
	}

	tr := array.NewTableReader(tbl, 0)
	defer tr.Release()

	var rows []model.Row
	for tr.Next() {
		rec := tr.Record()
		for i := 0; i < int(rec.NumRows()); i++ {
			if limit > 0 && len(rows) >= limit {
				return rows, nil
			}
			rows = append(rows, rowAt(rec, i))
		}
	}
	if err := tr.Err(); err != nil {
		return nil, fmt.Errorf("iterate table: %w", err)
	}
	return rows, nil
}

func rowAt(rec arrow.Record, i int) model.Row {
	str := func(col int) string {
		return rec.Column(col).(*array.String).Value(i)
	}
	return model.Row{
		Timestamp:  str(model.IdxTimestamp),
		EventType:  model.EventType(str(model.IdxEventType)),
		LatencyMs:  rec.Column(model.IdxLatencyMs).(*array.Int64).Value(i),
		Symbol:     str(model.IdxSymbol),
		TradePrice: rec.Column(model.IdxTradePrice).(*array.Float64).Value(i),
		TradeQty:   rec.Column(model.IdxTradeQty).(*array.Float64).Value(i),
		TradeSide:  model.Side(str(model.IdxTradeSide)),
		BidsJSON:   str(model.IdxBidsJSON),
		AsksJSON:   str(model.IdxAsksJSON),
	}
}
