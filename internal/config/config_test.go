package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	yaml := `
instance:
  id: test-collector
feed:
  ws_url: wss://stream.binance.com:9443/ws
  symbol: ethusdt
  streams:
    - ethusdt@trade
run:
  duration: 30s
  batch_size: 50
output:
  path: /tmp/out.parquet
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Instance.ID != "test-collector" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-collector")
	}
	if cfg.Feed.Symbol != "ethusdt" {
		t.Errorf("Feed.Symbol = %q, want %q", cfg.Feed.Symbol, "ethusdt")
	}
	if len(cfg.Feed.Streams) != 1 || cfg.Feed.Streams[0] != "ethusdt@trade" {
		t.Errorf("Feed.Streams = %v, want [ethusdt@trade]", cfg.Feed.Streams)
	}
	if cfg.Run.Duration != 30*time.Second {
		t.Errorf("Run.Duration = %v, want 30s", cfg.Run.Duration)
	}
	if cfg.Run.BatchSize != 50 {
		t.Errorf("Run.BatchSize = %d, want 50", cfg.Run.BatchSize)
	}
	if cfg.Output.Path != "/tmp/out.parquet" {
		t.Errorf("Output.Path = %q, want %q", cfg.Output.Path, "/tmp/out.parquet")
	}
	// Keys absent from the file keep their presets
	if cfg.Run.PreviewPerSecond != DefaultPreviewPerSecond {
		t.Errorf("Run.PreviewPerSecond = %v, want preset %v", cfg.Run.PreviewPerSecond, DefaultPreviewPerSecond)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want preset %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
}

func TestParseWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_OUTPUT", "/data/run.parquet")

	yaml := `
output:
  path: ${TEST_OUTPUT}
database:
  enabled: true
  timescale:
    host: localhost
    name: test_ts
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Database.Timescale.Password != "secret123" {
		t.Errorf("Database.Timescale.Password = %q, want %q", cfg.Database.Timescale.Password, "secret123")
	}
	if cfg.Output.Path != "/data/run.parquet" {
		t.Errorf("Output.Path = %q, want %q", cfg.Output.Path, "/data/run.parquet")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeTempFile(t, "run: [unterminated")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}

func TestLoadValidates(t *testing.T) {
	path := writeTempFile(t, "run:\n  maker_side: ASK\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "run.maker_side") {
		t.Fatalf("Load() error = %v, want maker_side validation error", err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempFile(t, "instance:\n  id: test-collector\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-collector" {
		t.Errorf("Instance.ID = %q, want test-collector", cfg.Instance.ID)
	}
	if cfg.Feed.WSURL != DefaultWSURL {
		t.Errorf("Feed.WSURL = %q, want default %q", cfg.Feed.WSURL, DefaultWSURL)
	}
	if cfg.Feed.Symbol != DefaultSymbol {
		t.Errorf("Feed.Symbol = %q, want default %q", cfg.Feed.Symbol, DefaultSymbol)
	}
	wantStreams := []string{"btcusdc@depth20@100ms", "btcusdc@trade"}
	if len(cfg.Feed.Streams) != len(wantStreams) {
		t.Fatalf("Feed.Streams = %v, want %v", cfg.Feed.Streams, wantStreams)
	}
	for i := range wantStreams {
		if cfg.Feed.Streams[i] != wantStreams[i] {
			t.Errorf("Feed.Streams[%d] = %q, want %q", i, cfg.Feed.Streams[i], wantStreams[i])
		}
	}
	if cfg.Run.Duration != DefaultRunDuration {
		t.Errorf("Run.Duration = %v, want default %v", cfg.Run.Duration, DefaultRunDuration)
	}
	if cfg.Run.BatchSize != DefaultBatchSize {
		t.Errorf("Run.BatchSize = %d, want default %d", cfg.Run.BatchSize, DefaultBatchSize)
	}
	if cfg.Run.MakerSide != DefaultMakerSide {
		t.Errorf("Run.MakerSide = %q, want default %q", cfg.Run.MakerSide, DefaultMakerSide)
	}
	if cfg.Run.PreviewPerSecond != DefaultPreviewPerSecond {
		t.Errorf("Run.PreviewPerSecond = %v, want default %v", cfg.Run.PreviewPerSecond, DefaultPreviewPerSecond)
	}
	if cfg.Output.Path != DefaultOutputPath {
		t.Errorf("Output.Path = %q, want default %q", cfg.Output.Path, DefaultOutputPath)
	}
	if cfg.Output.Compression != DefaultCompression {
		t.Errorf("Output.Compression = %q, want default %q", cfg.Output.Compression, DefaultCompression)
	}
	if cfg.Database.Timescale.Port != DefaultDBPort {
		t.Errorf("Database.Timescale.Port = %d, want default %d", cfg.Database.Timescale.Port, DefaultDBPort)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
}

func TestLoadKeepsExplicitZeroes(t *testing.T) {
	yaml := `
run:
  preview_per_second: 0
metrics:
  port: 0
`
	cfg, err := Load(writeTempFile(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Metrics.Port != 0 {
		t.Errorf("Metrics.Port = %d, want 0 (disabled)", cfg.Metrics.Port)
	}
	if cfg.Run.PreviewPerSecond != 0 {
		t.Errorf("Run.PreviewPerSecond = %v, want 0 (disabled)", cfg.Run.PreviewPerSecond)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, DefaultMetricsPath)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeTempFile(t, "run:\n  duration: 30s\noutput:\n  path: from-file.parquet\n")

	tests := []struct {
		name      string
		overrides []Override
		wantPath  string
		wantDur   time.Duration
	}{
		{
			name:     "file values",
			wantPath: "from-file.parquet",
			wantDur:  30 * time.Second,
		},
		{
			name:      "flags replace file values",
			overrides: []Override{WithOutputPath("flag.parquet"), WithDuration(time.Minute)},
			wantPath:  "flag.parquet",
			wantDur:   time.Minute,
		},
		{
			name:      "unset flags are ignored",
			overrides: []Override{WithOutputPath(""), WithDuration(0)},
			wantPath:  "from-file.parquet",
			wantDur:   30 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(path, tt.overrides...)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Output.Path != tt.wantPath {
				t.Errorf("Output.Path = %q, want %q", cfg.Output.Path, tt.wantPath)
			}
			if cfg.Run.Duration != tt.wantDur {
				t.Errorf("Run.Duration = %v, want %v", cfg.Run.Duration, tt.wantDur)
			}
		})
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("", WithDuration(5*time.Second))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Run.Duration != 5*time.Second {
		t.Errorf("Run.Duration = %v, want 5s", cfg.Run.Duration)
	}
	if cfg.Output.Path != DefaultOutputPath {
		t.Errorf("Output.Path = %q, want default %q", cfg.Output.Path, DefaultOutputPath)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
}

func TestDefaultsNormalizeSymbolCase(t *testing.T) {
	cfg := &CollectorConfig{Feed: FeedConfig{Symbol: "ethusdt"}, Run: RunConfig{MakerSide: "buy"}}
	cfg.applyDefaults()

	if cfg.Feed.Symbol != "ETHUSDT" {
		t.Errorf("Feed.Symbol = %q, want ETHUSDT", cfg.Feed.Symbol)
	}
	if cfg.Feed.Streams[0] != "ethusdt@depth20@100ms" {
		t.Errorf("Feed.Streams[0] = %q, want ethusdt@depth20@100ms", cfg.Feed.Streams[0])
	}
	if cfg.Run.MakerSide != "BUY" {
		t.Errorf("Run.MakerSide = %q, want BUY", cfg.Run.MakerSide)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CollectorConfig)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *CollectorConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "http url",
			mutate:  func(c *CollectorConfig) { c.Feed.WSURL = "https://stream.binance.com" },
			wantErr: `feed.ws_url must use ws or wss, got "https"`,
		},
		{
			name:    "empty stream",
			mutate:  func(c *CollectorConfig) { c.Feed.Streams = []string{"btcusdc@trade", " "} },
			wantErr: "feed.streams[1] is empty",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *CollectorConfig) { c.Run.BatchSize = 0 },
			wantErr: "run.batch_size must be >= 1",
		},
		{
			name:    "negative duration",
			mutate:  func(c *CollectorConfig) { c.Run.Duration = -time.Second },
			wantErr: "run.duration must be positive, got -1s",
		},
		{
			name:    "bad maker side",
			mutate:  func(c *CollectorConfig) { c.Run.MakerSide = "ASK" },
			wantErr: `run.maker_side must be SELL or BUY, got "ASK"`,
		},
		{
			name:    "bad compression",
			mutate:  func(c *CollectorConfig) { c.Output.Compression = "lzma" },
			wantErr: `output.compression "lzma" is not supported`,
		},
		{
			name: "database enabled without host",
			mutate: func(c *CollectorConfig) {
				c.Database.Enabled = true
			},
			wantErr: "database.timescale.host is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *CollectorConfig) {
				c.Database.Enabled = true
				c.Database.Timescale = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "database.timescale.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *CollectorConfig) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 0 and 65535, got 70000",
		},
		{
			name:    "bad log format",
			mutate:  func(c *CollectorConfig) { c.Log.Format = "xml" },
			wantErr: `log.format must be text or json, got "xml"`,
		},
		{
			name:    "valid config",
			mutate:  func(c *CollectorConfig) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadExampleConfig(t *testing.T) {
	t.Setenv("COLLECTOR_DB_PASSWORD", "example")

	cfg, err := Load(filepath.Join("..", "..", "configs", "collector.example.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Feed.Symbol != "BTCUSDC" {
		t.Errorf("Feed.Symbol = %q, want BTCUSDC", cfg.Feed.Symbol)
	}
	if !cfg.Feed.Subscribe {
		t.Error("Feed.Subscribe = false, want true")
	}
	if cfg.Run.PreviewPerSecond != 5 {
		t.Errorf("Run.PreviewPerSecond = %v, want 5", cfg.Run.PreviewPerSecond)
	}
	if cfg.Database.Timescale.Password != "example" {
		t.Errorf("Database.Timescale.Password = %q, want example", cfg.Database.Timescale.Password)
	}
}

func TestDefaultEnablesPreview(t *testing.T) {
	if got := Default().Run.PreviewPerSecond; got != DefaultPreviewPerSecond {
		t.Errorf("Default().Run.PreviewPerSecond = %v, want %v", got, DefaultPreviewPerSecond)
	}
}
