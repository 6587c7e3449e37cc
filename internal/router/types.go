package router

import (
	"encoding/json"
	"errors"
)

// ErrDecode is returned when a frame body is not a JSON object.
var ErrDecode = errors.New("decode frame")

// Kind identifies the shape of a classified message.
type Kind int

const (
	KindUnknown Kind = iota
	KindTrade
	KindDepth
)

// String returns the kind name used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindTrade:
		return "trade"
	case KindDepth:
		return "depth"
	default:
		return "unknown"
	}
}

// Body is a decoded message with values left as raw JSON.
type Body map[string]json.RawMessage

// Event is the result of classification. Exactly one of Trade and Depth is
// set for KindTrade and KindDepth; both are nil for KindUnknown.
type Event struct {
	Kind  Kind
	Rule  string // Name of the matching rule, empty for unknown
	Trade *TradeEvent
	Depth *DepthSnapshot
}

// TradeEvent is a single matched trade.
type TradeEvent struct {
	Symbol          string
	Price           string // Decimal string, parsed by the normalizer
	Quantity        string // Decimal string, parsed by the normalizer
	Maker           bool   // Binance "m": buyer is the maker
	ExchangeTime    int64  // Milliseconds since epoch
	HasExchangeTime bool
	TradeID         int64
}

// DepthSnapshot is a top-N order book listing. Levels are kept as the
// exact JSON text received so no precision is lost.
type DepthSnapshot struct {
	LastUpdateID int64
	Bids         json.RawMessage // [["price","qty"], ...]
	Asks         json.RawMessage
}

// Stats contains classification counters.
type Stats struct {
	Received     int64
	DecodeErrors int64
	Unknown      int64
	Trades       int64
	Depths       int64
}

// Observer receives classification outcomes, e.g. to export metrics.
type Observer interface {
	ObserveEvent(kind Kind)
	ObserveDecodeError()
}
