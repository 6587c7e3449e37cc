package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Rule maps one message shape to an event kind.
type Rule struct {
	Name  string
	Kind  Kind
	Match func(Body) bool
	Build func(Body) Event
}

// DefaultRules returns the Binance spot rules in evaluation order:
// trade events first, then top-N depth snapshots.
func DefaultRules() []Rule {
	return []Rule{TradeRule(), DepthRule()}
}

// TradeRule matches messages whose "e" field is "trade".
func TradeRule() Rule {
	return Rule{
		Name:  "trade",
		Kind:  KindTrade,
		Match: func(b Body) bool { return stringField(b, "e") == "trade" },
		Build: buildTrade,
	}
}

// DepthRule matches messages carrying a non-null "bids" field.
func DepthRule() Rule {
	return Rule{
		Name: "depth",
		Kind: KindDepth,
		Match: func(b Body) bool {
			raw, ok := b["bids"]
			return ok && !isNull(raw)
		},
		Build: buildDepth,
	}
}

// Classifier turns raw frame bodies into Events.
//
// Classify is called from the single ingestion loop; Stats may be read
// concurrently, e.g. by a health handler.
type Classifier struct {
	rules    []Rule
	logger   *slog.Logger
	observer Observer

	mu    sync.RWMutex
	stats Stats
}

// NewClassifier creates a Classifier with the given rules, or DefaultRules
// when none are passed.
func NewClassifier(logger *slog.Logger, rules ...Rule) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{
		rules:  rules,
		logger: logger,
	}
}

// SetObserver attaches an observer notified on every outcome.
func (c *Classifier) SetObserver(o Observer) {
	c.observer = o
}

// Stats returns current counters.
func (c *Classifier) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Classify decodes a frame body and applies the rule table.
//
// A body that is not a JSON object yields ErrDecode. A well-formed body that
// matches no rule yields a KindUnknown event and a nil error.
func (c *Classifier) Classify(data []byte) (Event, error) {
	c.mu.Lock()
	c.stats.Received++
	c.mu.Unlock()

	body, err := decodeBody(data)
	if err != nil {
		c.mu.Lock()
		c.stats.DecodeErrors++
		c.mu.Unlock()
		if c.observer != nil {
			c.observer.ObserveDecodeError()
		}
		return Event{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	ev := c.match(body)

	c.mu.Lock()
	switch ev.Kind {
	case KindTrade:
		c.stats.Trades++
	case KindDepth:
		c.stats.Depths++
	default:
		c.stats.Unknown++
	}
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.ObserveEvent(ev.Kind)
	}
	if ev.Kind == KindUnknown {
		c.logger.Debug("unclassified message", "bytes", len(data), "preview", preview(data))
	}

	return ev, nil
}

func (c *Classifier) match(body Body) Event {
	for _, r := range c.rules {
		if !r.Match(body) {
			continue
		}
		ev := r.Build(body)
		ev.Kind = r.Kind
		ev.Rule = r.Name
		return ev
	}
	return Event{Kind: KindUnknown}
}

// decodeBody parses an object and unwraps a combined-stream envelope. Well-formed
// JSON that is not an object yields a nil Body, which matches no default rule.
func decodeBody(data []byte) (Body, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			return nil, errors.New("invalid json")
		}
		return nil, nil
	}

	var body Body
	if err := json.Unmarshal(trimmed, &body); err != nil {
		return nil, err
	}

	if _, ok := body["stream"]; ok {
		if inner, ok := body["data"]; ok && len(bytes.TrimSpace(inner)) > 0 && bytes.TrimSpace(inner)[0] == '{' {
			var wrapped Body
			if err := json.Unmarshal(inner, &wrapped); err != nil {
				return nil, fmt.Errorf("envelope data: %w", err)
			}
			return wrapped, nil
		}
	}

	return body, nil
}

func buildTrade(b Body) Event {
	t := &TradeEvent{
		Symbol:   stringField(b, "s"),
		Price:    stringField(b, "p"),
		Quantity: stringField(b, "q"),
		Maker:    boolField(b, "m"),
	}
	t.ExchangeTime, t.HasExchangeTime = int64Field(b, "T")
	t.TradeID, _ = int64Field(b, "t")
	return Event{Trade: t}
}

func buildDepth(b Body) Event {
	d := &DepthSnapshot{
		Bids: compactCopy(b["bids"]),
		Asks: compactCopy(b["asks"]),
	}
	d.LastUpdateID, _ = int64Field(b, "lastUpdateId")
	return Event{Depth: d}
}

// stringField returns the string value of key, or "" when absent or not a string.
func stringField(b Body, key string) string {
	raw, ok := b[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func int64Field(b Body, key string) (int64, bool) {
	raw, ok := b[key]
	if !ok || isNull(raw) {
		return 0, false
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

func boolField(b Body, key string) bool {
	raw, ok := b[key]
	if !ok {
		return false
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	return v
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// compactCopy returns the value text with insignificant whitespace removed.
// A missing value becomes the literal null.
func compactCopy(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return append(json.RawMessage(nil), raw...)
	}
	return buf.Bytes()
}

func preview(data []byte) string {
	const limit = 120
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "..."
}
