package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Override adjusts the decoded config before defaults and validation run.
// Command-line flags are applied this way.
type Override func(*CollectorConfig)

// WithOutputPath replaces output.path. An empty path leaves it unchanged.
func WithOutputPath(path string) Override {
	return func(c *CollectorConfig) {
		if path != "" {
			c.Output.Path = path
		}
	}
}

// WithDuration replaces run.duration. A non-positive value leaves it unchanged.
func WithDuration(d time.Duration) Override {
	return func(c *CollectorConfig) {
		if d > 0 {
			c.Run.Duration = d
		}
	}
}

// Load builds a validated config. The YAML file at path, if any, is decoded
// over the presets; overrides run next, then the remaining defaults.
// An empty path runs on defaults alone.
func Load(path string, overrides ...Override) (*CollectorConfig, error) {
	cfg := preset()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, err
		}
	}

	for _, o := range overrides {
		o(cfg)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML bytes over the presets, without defaults or validation.
func Parse(data []byte) (*CollectorConfig, error) {
	cfg := preset()
	if err := decode(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with every default applied.
func Default() *CollectorConfig {
	cfg := preset()
	cfg.applyDefaults()
	return cfg
}

// preset holds the defaults of fields where zero is a meaningful value, so
// only a missing key falls back to them.
func preset() *CollectorConfig {
	return &CollectorConfig{
		Run:     RunConfig{PreviewPerSecond: DefaultPreviewPerSecond},
		Metrics: MetricsConfig{Port: DefaultMetricsPort},
	}
}

func decode(data []byte, cfg *CollectorConfig) error {
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}
