// Package config provides unified configuration for streamwire.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (STREAMWIRE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the streamwire CLI and mock server.
type Config struct {
	Stream   StreamConfig   `yaml:"stream"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Recorder RecorderConfig `yaml:"recorder"`
	Mock     MockConfig     `yaml:"mock"`
}

// StreamConfig holds decoding and accumulation settings.
type StreamConfig struct {
	MaxEventSize    int           `yaml:"max_event_size"`   // bytes per SSE record, default: 4 MiB
	ReorderBuffer   bool          `yaml:"reorder_buffer"`   // default: true
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // 0 disables, default: 0
	RepairArguments bool          `yaml:"repair_arguments"` // default: true
}

// LoggingConfig holds slog level and debug category settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // ERROR, WARN, INFO, DEBUG, TRACE; default: INFO
	Debug string `yaml:"debug"` // comma-separated categories
}

// MetricsConfig holds Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: false
	Addr    string `yaml:"addr"`    // default: ":9464"
	Path    string `yaml:"path"`    // default: "/metrics"
}

// RecorderConfig selects where captured streams are kept.
type RecorderConfig struct {
	Type     string         `yaml:"type"`     // "none", "memory" or "postgres", default: "none"
	MaxSize  int            `yaml:"max_size"` // for memory recorder, default: 1000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// MockConfig holds mock stream server settings.
type MockConfig struct {
	Port       int           `yaml:"port"`        // default: 9090
	ChunkDelay time.Duration `yaml:"chunk_delay"` // pause between frames, default: 0
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Stream: StreamConfig{
			MaxEventSize:    4 << 20,
			ReorderBuffer:   true,
			RepairArguments: true,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
		Metrics: MetricsConfig{
			Addr: ":9464",
			Path: "/metrics",
		},
		Recorder: RecorderConfig{
			Type:    "none",
			MaxSize: 1000,
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
		},
		Mock: MockConfig{
			Port: 9090,
		},
	}
}
