// Package config loads server settings from a YAML file with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Transport TransportConfig `yaml:"transport"`
	Logging   LoggingConfig   `yaml:"logging"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// TransportConfig selects how MCP clients connect.
type TransportConfig struct {
	Mode string `yaml:"mode"` // stdio, http
	Port string `yaml:"port"`
	// MetricsPath is served next to the MCP handler in http mode. Empty disables it.
	MetricsPath string `yaml:"metrics_path"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// NotifyConfig sizes the notification queue.
type NotifyConfig struct {
	Buffer int `yaml:"buffer"`
}

// DefaultConfig returns the settings used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Transport: TransportConfig{
			Mode:        "stdio",
			Port:        "8081",
			MetricsPath: "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Notify: NotifyConfig{
			Buffer: 256,
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("COCOON_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("COCOON_TRANSPORT"); v != "" {
		c.Transport.Mode = v
	}
	if v := os.Getenv("COCOON_PORT"); v != "" {
		c.Transport.Port = v
	}
	if v := os.Getenv("COCOON_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("COCOON_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("COCOON_NOTIFY_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("COCOON_NOTIFY_BUFFER: %w", err)
		}
		c.Notify.Buffer = n
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	switch c.Transport.Mode {
	case "stdio":
	case "http":
		if _, err := strconv.Atoi(c.Transport.Port); err != nil {
			return fmt.Errorf("transport.port %q is not a number", c.Transport.Port)
		}
	default:
		return fmt.Errorf("unknown transport %q (use stdio or http)", c.Transport.Mode)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	if c.Notify.Buffer <= 0 {
		return fmt.Errorf("notify.buffer must be positive, got %d", c.Notify.Buffer)
	}
	return nil
}
