package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for valid values. All problems are
// reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Stream.MaxEventSize <= 0 {
		errs = append(errs, fmt.Errorf("stream.max_event_size must be > 0, got %d", c.Stream.MaxEventSize))
	}
	if c.Stream.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("stream.read_timeout must not be negative, got %v", c.Stream.ReadTimeout))
	}

	switch strings.ToUpper(c.Logging.Level) {
	case "", "ERROR", "WARN", "WARNING", "INFO", "DEBUG", "TRACE":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of ERROR, WARN, INFO, DEBUG, TRACE, got %q", c.Logging.Level))
	}

	if c.Metrics.Enabled {
		if c.Metrics.Addr == "" {
			errs = append(errs, fmt.Errorf("metrics.addr is required when metrics.enabled is true"))
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			errs = append(errs, fmt.Errorf("metrics.path must start with \"/\", got %q", c.Metrics.Path))
		}
	}

	switch c.Recorder.Type {
	case "none", "memory":
	case "postgres":
		if c.Recorder.Postgres.DSN == "" && c.Recorder.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("recorder.postgres.dsn or recorder.postgres.dsn_file is required when recorder.type is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("recorder.type must be \"none\", \"memory\" or \"postgres\", got %q", c.Recorder.Type))
	}
	if c.Recorder.Type == "memory" && c.Recorder.MaxSize <= 0 {
		errs = append(errs, fmt.Errorf("recorder.max_size must be > 0, got %d", c.Recorder.MaxSize))
	}

	if c.Mock.Port <= 0 || c.Mock.Port > 65535 {
		errs = append(errs, fmt.Errorf("mock.port must be in 1..65535, got %d", c.Mock.Port))
	}
	if c.Mock.ChunkDelay < 0 {
		errs = append(errs, fmt.Errorf("mock.chunk_delay must not be negative, got %v", c.Mock.ChunkDelay))
	}

	return errors.Join(errs...)
}
