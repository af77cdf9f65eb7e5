// Package config loads the on-disk client configuration: server address,
// organization, local storage directory, and retry/backoff tuning.
// Grounded on cuemby-warren's pkg/log.Config (flat struct, no layering)
// and the CLI's YAML resource loading in cmd/warren/apply.go.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full on-disk client configuration. Every field has a
// zero-value-safe default applied by Load so a minimal file (just
// server_url and organization_id) is enough to start.
type Config struct {
	ServerURL      string `yaml:"server_url"`
	OrganizationID string `yaml:"organization_id"`
	StorageDir     string `yaml:"storage_dir"`

	Log LogConfig `yaml:"log"`

	Retry RetryConfig `yaml:"retry"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	JSONOutput bool   `yaml:"json_output"`
}

// RetryConfig holds reconnect backoff settings read from the file. The
// event monitor does not read them; it uses fixed intervals (200ms
// initial, 30s max). C3/C4's RequireGreaterTimestamp
// retries are uncapped by design (spec §7) and have nothing to configure.
type RetryConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

func defaults() Config {
	return Config{
		StorageDir: defaultStorageDir(),
		Log: LogConfig{
			Level:      "info",
			JSONOutput: true,
		},
		Retry: RetryConfig{
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     30 * time.Second,
		},
	}
}

func defaultStorageDir() string {
	home, err := os.UserConfigDir()
	if err != nil {
		return ".parsec3"
	}
	return home + "/parsec3/libparsec"
}

// Load reads and parses a YAML configuration file, filling in defaults for
// anything the file omits.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("config %s: server_url is required", path)
	}
	if cfg.OrganizationID == "" {
		return nil, fmt.Errorf("config %s: organization_id is required", path)
	}

	return &cfg, nil
}
