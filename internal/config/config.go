// Package config loads and validates the portscope service
// configuration from YAML files, falling back to built-in defaults when
// no file is present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/portscope/portscope/internal/errors"
	"github.com/portscope/portscope/internal/logging"
	"github.com/portscope/portscope/internal/probe"
	"github.com/portscope/portscope/internal/ratelimit"
)

// Config represents the complete service configuration.
type Config struct {
	// API server configuration
	API APIConfig `yaml:"api" json:"api"`

	// Scan pipeline configuration
	Scan ScanConfig `yaml:"scan" json:"scan"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	// Listen address
	Host string `yaml:"host" json:"host"`

	// Listen port
	Port int `yaml:"port" json:"port"`

	// Read timeout for incoming requests
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// Write timeout for responses
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// Idle timeout for keep-alive connections
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Maximum request header size in bytes
	MaxHeaderBytes int `yaml:"max_header_bytes" json:"max_header_bytes"`

	// Enable CORS handling
	EnableCORS bool `yaml:"enable_cors" json:"enable_cors"`

	// Allowed CORS origins
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
}

// ScanConfig holds probe and resolution settings.
type ScanConfig struct {
	// Per-port probe timeout; values below one second are raised
	ProbeTimeout time.Duration `yaml:"probe_timeout" json:"probe_timeout"`

	// Maximum concurrent probes per scan (0 means one per port)
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	// Optional explicit DNS server (host:port); empty uses the system resolver
	DNSServer string `yaml:"dns_server" json:"dns_server"`

	// Timeout for DNS resolution
	ResolveTimeout time.Duration `yaml:"resolve_timeout" json:"resolve_timeout"`
}

// RateLimitConfig holds admission window settings.
type RateLimitConfig struct {
	// Fixed window between scans per client
	Window time.Duration `yaml:"window" json:"window"`

	// Idle time after which a client entry is evicted (0 derives from window)
	EvictAfter time.Duration `yaml:"evict_after" json:"evict_after"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`

	// Log format (text, json)
	Format string `yaml:"format" json:"format"`

	// Log output (stdout, stderr, file path)
	Output string `yaml:"output" json:"output"`

	// Include source locations in log records
	AddSource bool `yaml:"add_source" json:"add_source"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxHeaderBytes:  1 << 20,
			EnableCORS:      true,
			CORSOrigins:     []string{"*"},
		},
		Scan: ScanConfig{
			ProbeTimeout:   probe.DefaultTimeout,
			Concurrency:    10,
			DNSServer:      "",
			ResolveTimeout: 5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Window:     ratelimit.DefaultWindow,
			EvictAfter: 0,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			Output:    "stdout",
			AddSource: false,
		},
	}
}

// Load loads configuration from a file. A missing file is not an error;
// defaults are returned instead.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save writes the configuration to a YAML file, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for values the service cannot run
// with.
func (c *Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return errors.ErrConfigInvalid("api.port", "must be between 1 and 65535")
	}
	if c.API.Host == "" {
		return errors.ErrConfigInvalid("api.host", "listen address is required")
	}

	if c.Scan.ProbeTimeout < 0 {
		return errors.ErrConfigInvalid("scan.probe_timeout", "must not be negative")
	}
	if c.Scan.Concurrency < 0 {
		return errors.ErrConfigInvalid("scan.concurrency", "must not be negative")
	}
	if c.Scan.ResolveTimeout <= 0 {
		return errors.ErrConfigInvalid("scan.resolve_timeout", "must be positive")
	}

	if c.RateLimit.Window <= 0 {
		return errors.ErrConfigInvalid("rate_limit.window", "must be positive")
	}
	if c.RateLimit.EvictAfter < 0 {
		return errors.ErrConfigInvalid("rate_limit.evict_after", "must not be negative")
	}
	if c.RateLimit.EvictAfter > 0 && c.RateLimit.EvictAfter < c.RateLimit.Window {
		return errors.ErrConfigInvalid("rate_limit.evict_after", "must not be shorter than the window")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return errors.ErrConfigInvalid("logging.level", fmt.Sprintf("invalid level: %s", c.Logging.Level))
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return errors.ErrConfigInvalid("logging.format", fmt.Sprintf("invalid format: %s", c.Logging.Format))
	}

	return nil
}

// GetAPIAddress returns the full API listen address.
func (c *Config) GetAPIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// LoggingConfig converts the logging section into the logging package's
// config type.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:     logging.LogLevel(c.Logging.Level),
		Format:    logging.LogFormat(c.Logging.Format),
		Output:    c.Logging.Output,
		AddSource: c.Logging.AddSource,
	}
}
