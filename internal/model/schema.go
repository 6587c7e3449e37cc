package model

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// Column names in file order.
const (
	ColTimestamp  = "timestamp"
	ColEventType  = "event_type"
	ColLatencyMs  = "latency_ms"
	ColSymbol     = "symbol"
	ColTradePrice = "trade_price"
	ColTradeQty   = "trade_qty"
	ColTradeSide  = "trade_side"
	ColBidsJSON   = "bids_json"
	ColAsksJSON   = "asks_json"
)

// Column positions in the schema.
const (
	IdxTimestamp = iota
	IdxEventType
	IdxLatencyMs
	IdxSymbol
	IdxTradePrice
	IdxTradeQty
	IdxTradeSide
	IdxBidsJSON
	IdxAsksJSON

	NumColumns
)

var schema = arrow.NewSchema([]arrow.Field{
	{Name: ColTimestamp, Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: ColEventType, Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: ColLatencyMs, Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: ColSymbol, Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: ColTradePrice, Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: ColTradeQty, Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: ColTradeSide, Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: ColBidsJSON, Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: ColAsksJSON, Type: arrow.BinaryTypes.String, Nullable: false},
}, nil)

// Schema returns the fixed output schema. The returned value is shared and
// must not be modified.
func Schema() *arrow.Schema {
	return schema
}

// SchemaWithMetadata returns the output schema with file-level key/value
// metadata attached. Field order and types are identical to Schema().
func SchemaWithMetadata(md map[string]string) *arrow.Schema {
	meta := arrow.MetadataFrom(md)
	return arrow.NewSchema(schema.Fields(), &meta)
}
