package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{
			name: "valid yaml config",
			content: `
api:
  host: 0.0.0.0
  port: 9090
scan:
  probe_timeout: 2s
  concurrency: 5
rate_limit:
  window: 10s
logging:
  level: debug
  format: json
`,
			wantErr: false,
		},
		{
			name: "invalid yaml syntax",
			content: `
api:
  port: [not a port
`,
			wantErr: true,
		},
		{
			name: "validation failure surfaces",
			content: `
api:
  port: 70000
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			cfg, err := Load(path)
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && cfg == nil {
				t.Error("Load() returned nil config without error")
			}
		})
	}
}

func TestLoadNonexistentFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() with missing file: %v", err)
	}
	def := Default()
	if cfg.API.Port != def.API.Port {
		t.Errorf("API port = %d, want default %d", cfg.API.Port, def.API.Port)
	}
	if cfg.RateLimit.Window != def.RateLimit.Window {
		t.Errorf("rate limit window = %v, want default %v", cfg.RateLimit.Window, def.RateLimit.Window)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
scan:
  concurrency: 3
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scan.Concurrency != 3 {
		t.Errorf("concurrency = %d, want 3", cfg.Scan.Concurrency)
	}
	// Untouched sections keep their defaults.
	if cfg.API.Port != Default().API.Port {
		t.Errorf("API port = %d, want default", cfg.API.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("log level = %s, want info", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "port too large",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "empty host",
			mutate:  func(c *Config) { c.API.Host = "" },
			wantErr: true,
		},
		{
			name:    "negative probe timeout",
			mutate:  func(c *Config) { c.Scan.ProbeTimeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "zero resolve timeout",
			mutate:  func(c *Config) { c.Scan.ResolveTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "zero rate limit window",
			mutate:  func(c *Config) { c.RateLimit.Window = 0 },
			wantErr: true,
		},
		{
			name: "evict shorter than window",
			mutate: func(c *Config) {
				c.RateLimit.Window = 10 * time.Second
				c.RateLimit.EvictAfter = 5 * time.Second
			},
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.API.Port = 9191
	cfg.Scan.DNSServer = "1.1.1.1:53"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after Save() failed: %v", err)
	}
	if loaded.API.Port != 9191 {
		t.Errorf("port = %d, want 9191", loaded.API.Port)
	}
	if loaded.Scan.DNSServer != "1.1.1.1:53" {
		t.Errorf("dns server = %s, want 1.1.1.1:53", loaded.Scan.DNSServer)
	}
}

func TestGetAPIAddress(t *testing.T) {
	cfg := Default()
	if got := cfg.GetAPIAddress(); got != "127.0.0.1:8080" {
		t.Errorf("GetAPIAddress() = %s, want 127.0.0.1:8080", got)
	}
}

func TestLoggingConfigConversion(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "warn"
	cfg.Logging.Format = "json"

	lc := cfg.LoggingConfig()
	if string(lc.Level) != "warn" {
		t.Errorf("level = %s, want warn", lc.Level)
	}
	if string(lc.Format) != "json" {
		t.Errorf("format = %s, want json", lc.Format)
	}
	if lc.Output != "stdout" {
		t.Errorf("output = %s, want stdout", lc.Output)
	}
}
