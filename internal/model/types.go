package model

// EventType is the value of the event_type column.
type EventType string

const (
	EventTrade EventType = "TRADE"
	EventDepth EventType = "DEPTH"
)

// Side is the aggressor side of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	SideNone Side = "" // placeholder for non-trade rows
)

// DepthLatencySentinel marks a row that does not carry a latency measurement.
const DepthLatencySentinel int64 = -1

// TimestampLayout formats the receipt time (UTC) with millisecond precision.
const TimestampLayout = "15:04:05.000"

// -----------------------------------------------------------------------------
// Row
// -----------------------------------------------------------------------------

// Row is one record in the output file.
type Row struct {
	Timestamp string    // Local receipt time (HH:MM:SS.mmm)
	EventType EventType // TRADE or DEPTH
	LatencyMs int64     // Receipt minus exchange time; -1 for depth
	Symbol    string    // Instrument, e.g. BTCUSDC

	// Trade columns (placeholders on depth rows)
	TradePrice float64
	TradeQty   float64
	TradeSide  Side

	// Depth columns (placeholders on trade rows)
	BidsJSON string
	AsksJSON string
}

// NewTradeRow builds a trade row with the depth columns set to placeholders.
func NewTradeRow(ts, symbol string, latencyMs int64, price, qty float64, side Side) Row {
	return Row{
		Timestamp:  ts,
		EventType:  EventTrade,
		LatencyMs:  latencyMs,
		Symbol:     symbol,
		TradePrice: price,
		TradeQty:   qty,
		TradeSide:  side,
		BidsJSON:   "",
		AsksJSON:   "",
	}
}

// NewDepthRow builds a depth row with the trade columns set to placeholders.
func NewDepthRow(ts, symbol, bids, asks string) Row {
	return Row{
		Timestamp:  ts,
		EventType:  EventDepth,
		LatencyMs:  DepthLatencySentinel,
		Symbol:     symbol,
		TradePrice: 0,
		TradeQty:   0,
		TradeSide:  SideNone,
		BidsJSON:   bids,
		AsksJSON:   asks,
	}
}

// HasTradePlaceholders reports whether the trade columns hold placeholder values.
func (r Row) HasTradePlaceholders() bool {
	return r.TradePrice == 0 && r.TradeQty == 0 && r.TradeSide == SideNone
}

// HasDepthPlaceholders reports whether the depth columns hold placeholder values.
func (r Row) HasDepthPlaceholders() bool {
	return r.BidsJSON == "" && r.AsksJSON == ""
}
