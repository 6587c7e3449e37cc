package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var validCompressions = map[string]bool{
	"snappy": true,
	"zstd":   true,
	"gzip":   true,
	"none":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks that all required fields are set and values are valid.
func (c *CollectorConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Feed.WSURL == "" {
		return errors.New("feed.ws_url is required")
	}
	u, err := url.Parse(c.Feed.WSURL)
	if err != nil {
		return fmt.Errorf("feed.ws_url is invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("feed.ws_url must use ws or wss, got %q", u.Scheme)
	}
	if c.Feed.Symbol == "" {
		return errors.New("feed.symbol is required")
	}
	if len(c.Feed.Streams) == 0 {
		return errors.New("feed.streams must not be empty")
	}
	for i, s := range c.Feed.Streams {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("feed.streams[%d] is empty", i)
		}
	}
	if c.Feed.BufferSize < 1 {
		return errors.New("feed.buffer_size must be >= 1")
	}

	if c.Run.Duration <= 0 {
		return fmt.Errorf("run.duration must be positive, got %s", c.Run.Duration)
	}
	if c.Run.BatchSize < 1 {
		return errors.New("run.batch_size must be >= 1")
	}
	if c.Run.MakerSide != "SELL" && c.Run.MakerSide != "BUY" {
		return fmt.Errorf("run.maker_side must be SELL or BUY, got %q", c.Run.MakerSide)
	}
	if c.Run.PreviewPerSecond < 0 {
		return errors.New("run.preview_per_second must be >= 0")
	}

	if c.Output.Path == "" {
		return errors.New("output.path is required")
	}
	if !validCompressions[c.Output.Compression] {
		return fmt.Errorf("output.compression %q is not supported", c.Output.Compression)
	}

	if c.Database.Enabled {
		if err := c.Database.Timescale.validate("database.timescale"); err != nil {
			return err
		}
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 0 and 65535, got %d", c.Metrics.Port)
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("log.level %q is not supported", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
