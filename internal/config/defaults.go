package config

import (
	"strings"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultInstanceID       = "collector"
	DefaultWSURL            = "wss://stream.binance.com:9443/ws"
	DefaultSymbol           = "BTCUSDC"
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultPingTimeout      = 60 * time.Second
	DefaultFeedBufferSize   = 10000
	DefaultRunDuration      = 10 * time.Minute
	DefaultBatchSize        = 100
	DefaultMakerSide        = "SELL"
	DefaultPreviewPerSecond = 5
	DefaultOutputPath       = "binance_full_depth.parquet"
	DefaultCompression      = "snappy"
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 4
	DefaultMinConns         = 1
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

// DefaultStreams returns the trade and top-20 depth streams for a symbol.
func DefaultStreams(symbol string) []string {
	s := strings.ToLower(symbol)
	return []string{s + "@depth20@100ms", s + "@trade"}
}

func (c *CollectorConfig) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	// Feed defaults
	if c.Feed.WSURL == "" {
		c.Feed.WSURL = DefaultWSURL
	}
	if c.Feed.Symbol == "" {
		c.Feed.Symbol = DefaultSymbol
	}
	c.Feed.Symbol = strings.ToUpper(c.Feed.Symbol)
	if len(c.Feed.Streams) == 0 {
		c.Feed.Streams = DefaultStreams(c.Feed.Symbol)
	}
	if c.Feed.HandshakeTimeout == 0 {
		c.Feed.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = DefaultWriteTimeout
	}
	if c.Feed.PingTimeout == 0 {
		c.Feed.PingTimeout = DefaultPingTimeout
	}
	if c.Feed.BufferSize == 0 {
		c.Feed.BufferSize = DefaultFeedBufferSize
	}

	// Run defaults
	if c.Run.Duration == 0 {
		c.Run.Duration = DefaultRunDuration
	}
	if c.Run.BatchSize == 0 {
		c.Run.BatchSize = DefaultBatchSize
	}
	if c.Run.MakerSide == "" {
		c.Run.MakerSide = DefaultMakerSide
	}
	c.Run.MakerSide = strings.ToUpper(c.Run.MakerSide)

	// Output defaults
	if c.Output.Path == "" {
		c.Output.Path = DefaultOutputPath
	}
	if c.Output.Compression == "" {
		c.Output.Compression = DefaultCompression
	}

	// Database defaults (only meaningful when enabled)
	applyDBDefaults(&c.Database.Timescale)

	// Metrics defaults; port 0 disables the server
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
