package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	LogLevel       string        `yaml:"log_level" default:"info"`
	StorePath      string        `yaml:"store_path"`
	ConfigureURL   string        `yaml:"configure_url" default:"http://static.sitr.us.s3-website-us-west-2.amazonaws.com/configure-fuzzy-text.html"`
	Version        string        `yaml:"version" default:"1.3.0"`
	DeviceAddress  string        `yaml:"device_address"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"30s"`
	AckTimeout     time.Duration `yaml:"ack_timeout" default:"10s"`
	InboxSize      int           `yaml:"inbox_size" default:"256"`
	OutboxSize     int           `yaml:"outbox_size" default:"128"`
}

var levels = map[string]logrus.Level{
	"debug": logrus.DebugLevel,
	"info":  logrus.InfoLevel,
	"warn":  logrus.WarnLevel,
	"error": logrus.ErrorLevel,
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	cfg.StorePath = DefaultStorePath()
	return cfg
}

// DefaultStorePath returns the settings store location under the user config directory.
func DefaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "textwatch", "storage.yaml")
}

// Load reads a YAML config file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values
func (c *Config) Validate() error {
	var errs []error
	if _, ok := levels[c.LogLevel]; !ok {
		errs = append(errs, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel))
	}
	if u, err := url.Parse(c.ConfigureURL); err != nil || !u.IsAbs() {
		errs = append(errs, fmt.Errorf("configure_url must be an absolute URL: %q", c.ConfigureURL))
	}
	if c.ConnectTimeout < 0 {
		errs = append(errs, errors.New("connect_timeout must not be negative"))
	}
	if c.AckTimeout < 0 {
		errs = append(errs, errors.New("ack_timeout must not be negative"))
	}
	return errors.Join(errs...)
}

// Level returns the logrus level for LogLevel, defaulting to info.
func (c *Config) Level() logrus.Level {
	if lvl, ok := levels[c.LogLevel]; ok {
		return lvl
	}
	return logrus.InfoLevel
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
