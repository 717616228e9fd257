// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that DefaultConfig returns proper defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Server defaults
	if cfg.Server.Port != 1968 {
		t.Errorf("Server.Port = %d, want 1968", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Timeout != 30*time.Second {
		t.Errorf("Server.Timeout = %v, want 30s", cfg.Server.Timeout)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Errorf("Server.CORSOrigins = %v, want [*]", cfg.Server.CORSOrigins)
	}

	// Database defaults
	if cfg.Database.Path != "/data/caliper.duckdb" {
		t.Errorf("Database.Path = %q, want /data/caliper.duckdb", cfg.Database.Path)
	}
	if cfg.Database.MaxMemory != "2GB" {
		t.Errorf("Database.MaxMemory = %q, want 2GB", cfg.Database.MaxMemory)
	}
	if cfg.Database.SeedMockData {
		t.Error("Database.SeedMockData should be false by default")
	}

	// Engine defaults
	if cfg.Engine.IRT.PriorVar != 1.0 {
		t.Errorf("Engine.IRT.PriorVar = %v, want 1.0", cfg.Engine.IRT.PriorVar)
	}
	if cfg.Engine.IRT.MaxIterations != 25 {
		t.Errorf("Engine.IRT.MaxIterations = %d, want 25", cfg.Engine.IRT.MaxIterations)
	}
	if cfg.Engine.Session.SEThreshold != 0.30 {
		t.Errorf("Engine.Session.SEThreshold = %v, want 0.30", cfg.Engine.Session.SEThreshold)
	}
	if cfg.Engine.Session.DefaultTargetItems != 10 {
		t.Errorf("Engine.Session.DefaultTargetItems = %d, want 10", cfg.Engine.Session.DefaultTargetItems)
	}

	// Cache defaults
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled should be true by default")
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Cache.TTL = %v, want 30s", cfg.Cache.TTL)
	}

	// Journal defaults
	if !cfg.Journal.Enabled {
		t.Error("Journal.Enabled should be true by default")
	}
	if cfg.Journal.Path != "/data/journal" {
		t.Errorf("Journal.Path = %q, want /data/journal", cfg.Journal.Path)
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}

	// Defaults must themselves validate.
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() error = %v", err)
	}
}

// TestEnvTransformFunc verifies environment variable name transformations.
func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Server
		{"CALIPER_HTTP_PORT", "server.port"},
		{"CALIPER_HTTP_HOST", "server.host"},
		{"CALIPER_ENVIRONMENT", "server.environment"},
		{"CALIPER_CORS_ORIGINS", "server.cors_origins"},

		// Database
		{"CALIPER_DUCKDB_PATH", "database.path"},
		{"CALIPER_DUCKDB_MAX_MEMORY", "database.max_memory"},
		{"CALIPER_SEED_DEMO_BANK", "database.seed_mock_data"},

		// Engine
		{"CALIPER_SE_THRESHOLD", "engine.session.se_threshold"},
		{"CALIPER_IRT_PRIOR_VAR", "engine.irt.prior_var"},
		{"CALIPER_SELECTOR_SEED", "engine.selector.seed"},

		// Journal and events
		{"CALIPER_JOURNAL_PATH", "journal.path"},
		{"CALIPER_EVENTS_BUFFER_SIZE", "events.buffer_size"},

		// Logging
		{"CALIPER_LOG_LEVEL", "logging.level"},
		{"CALIPER_LOG_FORMAT", "logging.format"},

		// Unknown (should return empty)
		{"RANDOM_VAR", ""},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := envTransformFunc(tt.input)
			if result != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

// TestFindConfigFile verifies config file discovery.
func TestFindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()

	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	defer func() {
		if err := os.Chdir(origDir); err != nil {
			t.Errorf("Failed to restore working directory: %v", err)
		}
	}()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change to temp directory: %v", err)
	}

	t.Run("no config file exists", func(t *testing.T) {
		os.Unsetenv(ConfigPathEnvVar)
		if result := findConfigFile(); result != "" {
			t.Errorf("findConfigFile() = %q, want empty string", result)
		}
	})

	t.Run("config.yaml exists", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, "config.yaml")
		if err := os.WriteFile(configPath, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
			t.Fatalf("Failed to create config file: %v", err)
		}
		defer os.Remove(configPath)

		os.Unsetenv(ConfigPathEnvVar)
		if result := findConfigFile(); result != "config.yaml" {
			t.Errorf("findConfigFile() = %q, want config.yaml", result)
		}
	})

	t.Run("env var takes precedence", func(t *testing.T) {
		customPath := filepath.Join(tmpDir, "custom_config.yaml")
		if err := os.WriteFile(customPath, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
			t.Fatalf("Failed to create custom config file: %v", err)
		}
		defer os.Remove(customPath)

		t.Setenv(ConfigPathEnvVar, customPath)
		if result := findConfigFile(); result != customPath {
			t.Errorf("findConfigFile() = %q, want %q", result, customPath)
		}
	})

	t.Run("env var with non-existent file falls back", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, "/non/existent/config.yaml")
		if result := findConfigFile(); result != "" {
			t.Errorf("findConfigFile() = %q, want empty string", result)
		}
	})
}

// TestLoadEnvVars tests loading configuration from environment variables.
func TestLoadEnvVars(t *testing.T) {
	os.Clearenv()

	os.Setenv("CALIPER_HTTP_PORT", "9000")
	os.Setenv("CALIPER_LOG_LEVEL", "debug")
	os.Setenv("CALIPER_SE_THRESHOLD", "0.25")
	os.Setenv("CALIPER_DUCKDB_PATH", ":memory:")
	os.Setenv("CALIPER_CORS_ORIGINS", "http://a.local, http://b.local")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Engine.Session.SEThreshold != 0.25 {
		t.Errorf("Engine.Session.SEThreshold = %v, want 0.25", cfg.Engine.Session.SEThreshold)
	}
	if cfg.Database.Path != ":memory:" {
		t.Errorf("Database.Path = %q, want :memory:", cfg.Database.Path)
	}

	// Comma-separated env slices are split and trimmed.
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "http://b.local" {
		t.Errorf("Server.CORSOrigins = %v, want [http://a.local http://b.local]", cfg.Server.CORSOrigins)
	}

	// Defaults still apply for unset values.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0 (default)", cfg.Server.Host)
	}
	if cfg.Database.MaxMemory != "2GB" {
		t.Errorf("Database.MaxMemory = %q, want 2GB (default)", cfg.Database.MaxMemory)
	}
}

// TestLoadConfigFile tests loading configuration from a YAML file, with
// environment variables taking precedence over file values.
func TestLoadConfigFile(t *testing.T) {
	os.Clearenv()
	tmpDir := t.TempDir()

	configContent := `
server:
  port: 8888
  host: "127.0.0.1"

engine:
  session:
    se_threshold: 0.4
    default_target_items: 12

logging:
  level: warn
`
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}

	os.Setenv(ConfigPathEnvVar, configPath)
	os.Setenv("CALIPER_HTTP_PORT", "7777") // env beats file

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want 7777 (env over file)", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want 127.0.0.1 (from file)", cfg.Server.Host)
	}
	if cfg.Engine.Session.SEThreshold != 0.4 {
		t.Errorf("Engine.Session.SEThreshold = %v, want 0.4 (from file)", cfg.Engine.Session.SEThreshold)
	}
	if cfg.Engine.Session.DefaultTargetItems != 12 {
		t.Errorf("Engine.Session.DefaultTargetItems = %d, want 12 (from file)", cfg.Engine.Session.DefaultTargetItems)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn (from file)", cfg.Logging.Level)
	}
}

// TestValidate exercises the validation rules with invalid settings.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "CALIPER_HTTP_PORT",
		},
		{
			name:    "bad environment",
			mutate:  func(c *Config) { c.Server.Environment = "prod" },
			wantErr: "CALIPER_ENVIRONMENT",
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "CALIPER_DUCKDB_PATH",
		},
		{
			name:    "negative prior variance",
			mutate:  func(c *Config) { c.Engine.IRT.PriorVar = -1 },
			wantErr: "CALIPER_IRT_PRIOR_VAR",
		},
		{
			name:    "zero se threshold",
			mutate:  func(c *Config) { c.Engine.Session.SEThreshold = 0 },
			wantErr: "CALIPER_SE_THRESHOLD",
		},
		{
			name:    "target below minimum",
			mutate:  func(c *Config) { c.Engine.Session.DefaultTargetItems = 2 },
			wantErr: "CALIPER_DEFAULT_TARGET_ITEMS",
		},
		{
			name: "max target below default",
			mutate: func(c *Config) {
				c.Engine.Session.DefaultTargetItems = 20
				c.Engine.Session.MaxTargetItems = 10
			},
			wantErr: "CALIPER_MAX_TARGET_ITEMS",
		},
		{
			name:    "cache ttl zero while enabled",
			mutate:  func(c *Config) { c.Cache.TTL = 0 },
			wantErr: "CALIPER_CACHE_TTL",
		},
		{
			name: "cache ttl ignored when disabled",
			mutate: func(c *Config) {
				c.Cache.Enabled = false
				c.Cache.TTL = 0
			},
			wantErr: "",
		},
		{
			name: "journal path required",
			mutate: func(c *Config) {
				c.Journal.Enabled = true
				c.Journal.InMemory = false
				c.Journal.Path = ""
			},
			wantErr: "CALIPER_JOURNAL_PATH",
		},
		{
			name: "in-memory journal needs no path",
			mutate: func(c *Config) {
				c.Journal.InMemory = true
				c.Journal.Path = ""
			},
			wantErr: "",
		},
		{
			name: "ping must beat pong",
			mutate: func(c *Config) {
				c.WebSocket.PingInterval = 2 * time.Minute
				c.WebSocket.PongTimeout = time.Minute
			},
			wantErr: "CALIPER_WS_PING_INTERVAL",
		},
		{
			name:    "import rate zero",
			mutate:  func(c *Config) { c.Import.RecordsPerSecond = 0 },
			wantErr: "CALIPER_IMPORT_RATE",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "CALIPER_LOG_LEVEL",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "text" },
			wantErr: "CALIPER_LOG_FORMAT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error mentioning %s", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
