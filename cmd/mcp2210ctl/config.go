package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/moffa90/go-mcp2210/usbhid"
)

// Config is the optional YAML file given with -config.
// Command-line flags override its values.
type Config struct {
	VendorID   uint16 `yaml:"vid"`
	ProductID  uint16 `yaml:"pid"`
	Serial     string `yaml:"serial"`
	TimeoutMS  int    `yaml:"timeout_ms"`
	ChunkDelay int    `yaml:"chunk_delay_ms"`
	MaxPolls   int    `yaml:"max_polls"`
	AutoSize   bool   `yaml:"auto_transfer_size"`
	LogLevel   string `yaml:"log_level"`
	Password   string `yaml:"password"`
}

func defaultConfig() Config {
	return Config{
		VendorID:   usbhid.DefaultVendorID,
		ProductID:  usbhid.DefaultProductID,
		TimeoutMS:  int(usbhid.DefaultReadTimeout / time.Millisecond),
		ChunkDelay: 10,
		MaxPolls:   256,
		AutoSize:   true,
		LogLevel:   "warn",
	}
}

// loadConfig reads path over the defaults. An empty path returns the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.TimeoutMS <= 0 {
		return fmt.Errorf("timeout_ms must be positive, got %d", c.TimeoutMS)
	}
	if c.ChunkDelay < 0 {
		return fmt.Errorf("chunk_delay_ms must not be negative, got %d", c.ChunkDelay)
	}
	if c.MaxPolls < 0 {
		return fmt.Errorf("max_polls must not be negative, got %d", c.MaxPolls)
	}
	if len(c.Password) > 8 {
		return fmt.Errorf("password must be at most 8 bytes")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// newLogger builds a development logger when verbose, otherwise a
// production logger at the configured level.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
