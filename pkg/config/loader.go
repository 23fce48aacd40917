package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/streamwire/pkg/debug"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, STREAMWIRE_CONFIG env, ./streamwire.yaml, /etc/streamwire/config.yaml)
//  3. STREAMWIRE_* environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log(debug.Config, "loaded config file", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile returns the first config file found, or "" when none
// exists and no path was given.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("STREAMWIRE_CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"streamwire.yaml", "/etc/streamwire/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile parses a YAML file over cfg. Absent keys keep their defaults.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps STREAMWIRE_* variables onto cfg. Unparseable
// numeric, boolean or duration values are reported.
func applyEnvOverrides(cfg *Config) error {
	env := envReader{}

	env.int("STREAMWIRE_MAX_EVENT_SIZE", &cfg.Stream.MaxEventSize)
	env.bool("STREAMWIRE_REORDER_BUFFER", &cfg.Stream.ReorderBuffer)
	env.duration("STREAMWIRE_READ_TIMEOUT", &cfg.Stream.ReadTimeout)
	env.bool("STREAMWIRE_REPAIR_ARGUMENTS", &cfg.Stream.RepairArguments)

	env.string("STREAMWIRE_LOG_LEVEL", &cfg.Logging.Level)
	env.string("STREAMWIRE_DEBUG", &cfg.Logging.Debug)

	env.bool("STREAMWIRE_METRICS_ENABLED", &cfg.Metrics.Enabled)
	env.string("STREAMWIRE_METRICS_ADDR", &cfg.Metrics.Addr)

	env.string("STREAMWIRE_RECORDER", &cfg.Recorder.Type)
	env.int("STREAMWIRE_RECORDER_SIZE", &cfg.Recorder.MaxSize)
	env.string("STREAMWIRE_POSTGRES_DSN", &cfg.Recorder.Postgres.DSN)

	env.int("STREAMWIRE_MOCK_PORT", &cfg.Mock.Port)
	env.duration("STREAMWIRE_MOCK_CHUNK_DELAY", &cfg.Mock.ChunkDelay)

	return env.err
}

type envReader struct {
	err error
}

func (e *envReader) string(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func (e *envReader) int(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" || e.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.err = fmt.Errorf("%s: %w", name, err)
		return
	}
	*dst = n
}

func (e *envReader) bool(name string, dst *bool) {
	v := os.Getenv(name)
	if v == "" || e.err != nil {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.err = fmt.Errorf("%s: %w", name, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(name string, dst *time.Duration) {
	v := os.Getenv(name)
	if v == "" || e.err != nil {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.err = fmt.Errorf("%s: %w", name, err)
		return
	}
	*dst = d
}

// resolveFileReferences fills value fields from their _file counterparts
// when the value itself is empty.
func resolveFileReferences(cfg *Config) error {
	pg := &cfg.Recorder.Postgres
	if pg.DSNFile != "" && pg.DSN == "" {
		val, err := readSecretFile(pg.DSNFile)
		if err != nil {
			return fmt.Errorf("recorder.postgres.dsn_file: %w", err)
		}
		pg.DSN = val
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
