package writer

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rickgao/binance-collector/internal/model"
	"github.com/rickgao/binance-collector/internal/router"
)

// SideRule maps the feed's maker flag to the aggressor side.
type SideRule func(maker bool) model.Side

// MakerIsSell is the Binance convention: "m" reports whether the buyer was the
// maker, so a true flag means the seller hit the bid.
func MakerIsSell(maker bool) model.Side {
	if maker {
		return model.SideSell
	}
	return model.SideBuy
}

// MakerIsBuy is the inverse mapping, for feeds whose flag marks the seller as maker.
func MakerIsBuy(maker bool) model.Side {
	if maker {
		return model.SideBuy
	}
	return model.SideSell
}

// SideRuleByName resolves the side reported for maker=true ("SELL" or "BUY").
func SideRuleByName(name string) (SideRule, error) {
	switch strings.ToUpper(name) {
	case "", string(model.SideSell):
		return MakerIsSell, nil
	case string(model.SideBuy):
		return MakerIsBuy, nil
	default:
		return nil, fmt.Errorf("unknown maker side %q", name)
	}
}

// NormalizeStats counts normalizer outcomes.
type NormalizeStats struct {
	Trades    int64
	Depths    int64
	Skipped   int64 // unknown events
	Fallbacks int64 // price or quantity defaulted to 0
}

// Normalizer converts classified events into rows.
type Normalizer struct {
	symbol string
	side   SideRule
	logger *slog.Logger

	trades    atomic.Int64
	depths    atomic.Int64
	skipped   atomic.Int64
	fallbacks atomic.Int64
}

// NewNormalizer creates a Normalizer. symbol is used for events that do not
// carry their own; a nil side rule means MakerIsSell.
func NewNormalizer(symbol string, side SideRule, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if side == nil {
		side = MakerIsSell
	}
	return &Normalizer{
		symbol: symbol,
		side:   side,
		logger: logger,
	}
}

// Normalize builds the row for ev observed at receivedAt. It returns false for
// events that produce no row.
func (n *Normalizer) Normalize(ev router.Event, receivedAt time.Time) (model.Row, bool) {
	ts := formatTimestamp(receivedAt)

	switch {
	case ev.Kind == router.KindTrade && ev.Trade != nil:
		n.trades.Add(1)
		return n.trade(ev.Trade, ts, receivedAt), true

	case ev.Kind == router.KindDepth && ev.Depth != nil:
		n.depths.Add(1)
		return model.NewDepthRow(ts, n.symbol, string(ev.Depth.Bids), string(ev.Depth.Asks)), true

	default:
		n.skipped.Add(1)
		return model.Row{}, false
	}
}

func (n *Normalizer) trade(t *router.TradeEvent, ts string, receivedAt time.Time) model.Row {
	price, priceOK := parseDecimal(t.Price)
	qty, qtyOK := parseDecimal(t.Quantity)
	if !priceOK || !qtyOK {
		n.fallbacks.Add(1)
		n.logger.Warn("trade field parse fallback",
			"price", t.Price,
			"quantity", t.Quantity,
			"trade_id", t.TradeID,
		)
	}

	local := receivedAt.UnixMilli()
	exchange := local
	if t.HasExchangeTime {
		exchange = t.ExchangeTime
	}

	symbol := t.Symbol
	if symbol == "" {
		symbol = n.symbol
	}

	return model.NewTradeRow(ts, symbol, local-exchange, price, qty, n.side(t.Maker))
}

// Stats returns current counters.
func (n *Normalizer) Stats() NormalizeStats {
	return NormalizeStats{
		Trades:    n.trades.Load(),
		Depths:    n.depths.Load(),
		Skipped:   n.skipped.Load(),
		Fallbacks: n.fallbacks.Load(),
	}
}
