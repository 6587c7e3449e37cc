package config

import "time"

// CollectorConfig is the root configuration for a collector instance.
type CollectorConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Feed     FeedConfig     `yaml:"feed"`
	Run      RunConfig      `yaml:"run"`
	Output   OutputConfig   `yaml:"output"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// InstanceConfig identifies this collector.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// FeedConfig holds exchange websocket settings.
type FeedConfig struct {
	WSURL   string   `yaml:"ws_url"`  // Base URL, e.g. wss://stream.binance.com:9443/ws
	Symbol  string   `yaml:"symbol"`  // Written to the symbol column, e.g. BTCUSDC
	Streams []string `yaml:"streams"` // e.g. btcusdc@trade, btcusdc@depth20@100ms

	// Subscribe sends a SUBSCRIBE command after connecting instead of
	// putting the streams in the URL path.
	Subscribe bool `yaml:"subscribe"`

	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	BufferSize       int           `yaml:"buffer_size"`
}

// RunConfig bounds a single collection run.
type RunConfig struct {
	Duration  time.Duration `yaml:"duration"`
	BatchSize int           `yaml:"batch_size"`

	// MakerSide selects the side written for trades where the maker flag is
	// set: "SELL" (Binance semantics) or "BUY".
	MakerSide string `yaml:"maker_side"`

	// PreviewPerSecond caps trade preview log lines; 0 disables the preview.
	PreviewPerSecond float64 `yaml:"preview_per_second"`
}

// OutputConfig holds the Parquet sink settings.
type OutputConfig struct {
	Path        string `yaml:"path"`
	Compression string `yaml:"compression"` // snappy, zstd, gzip, none
	Exclusive   bool   `yaml:"exclusive"` // fail instead of replacing an existing file
}

// DatabaseConfig holds the optional chunk ledger connection.
type DatabaseConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"` // 0 disables the metrics server
	Path string `yaml:"path"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}
