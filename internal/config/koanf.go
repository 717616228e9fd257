// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/caliper/config.yaml",
	"/etc/caliper/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CALIPER_CONFIG_PATH"

// DefaultConfig returns a Config with all defaults applied. These are
// loaded first, then overridden by the config file and env vars.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              1968,
			Host:              "0.0.0.0",
			Timeout:           30 * time.Second,
			Environment:       "development",
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Database: DatabaseConfig{
			Path:                   "/data/caliper.duckdb",
			MaxMemory:              "2GB",
			Threads:                0, // 0 = use runtime.NumCPU()
			PreserveInsertionOrder: true,
			SeedMockData:           false,
		},
		Engine: EngineConfig{
			IRT: IRTConfig{
				PriorVar:      1.0,
				MaxIterations: 25,
				Tolerance:     1e-3,
			},
			Selector: SelectorConfig{
				Seed: 0, // 0 = clock-seeded
			},
			Session: SessionConfig{
				SEThreshold:        0.30,
				DefaultTargetItems: 10,
				MaxTargetItems:     50,
			},
		},
		Cache: CacheConfig{
			Enabled:            true,
			TTL:                30 * time.Second,
			RefreshConcurrency: 4,
			RefreshInterval:    5 * time.Minute,
		},
		Events: EventsConfig{
			BufferSize:   256,
			CloseTimeout: 5 * time.Second,
		},
		Journal: JournalConfig{
			Enabled:    true,
			Path:       "/data/journal",
			InMemory:   false,
			GCInterval: 10 * time.Minute,
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			WriteTimeout:   10 * time.Second,
			PongTimeout:    60 * time.Second,
			PingInterval:   54 * time.Second,
			MaxMessageSize: 512,
			SendBufferSize: 32,
		},
		Import: ImportConfig{
			RecordsPerSecond: 200,
			Burst:            50,
			MaxErrors:        20,
			MaxBodyBytes:     32 << 20, // 32MB
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources:
//
//  1. Defaults from DefaultConfig
//  2. Optional YAML config file (if one exists)
//  3. Environment variables (highest priority)
//
// Precedence is ENV > file > defaults. The result is validated before
// being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment variable names map to koanf paths through an explicit
	// whitelist: CALIPER_DUCKDB_PATH -> database.path. Unknown variables
	// are dropped so ambient environment noise cannot reach the config.
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, honoring the env override
// first, then the default paths. Returns "" when none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when they arrive as strings from the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices
// for the known slice fields. Env vars come in as strings but the
// config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML): nothing to do.
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps CALIPER_* environment variable names to koanf
// config paths.
//
// Examples:
//   - CALIPER_HTTP_PORT -> server.port
//   - CALIPER_DUCKDB_PATH -> database.path
//   - CALIPER_SE_THRESHOLD -> engine.session.se_threshold
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"caliper_http_port":           "server.port",
		"caliper_http_host":           "server.host",
		"caliper_http_timeout":        "server.timeout",
		"caliper_environment":         "server.environment",
		"caliper_cors_origins":        "server.cors_origins",
		"caliper_rate_limit_reqs":     "server.rate_limit_reqs",
		"caliper_rate_limit_window":   "server.rate_limit_window",
		"caliper_rate_limit_disabled": "server.rate_limit_disabled",

		// Database mappings
		"caliper_duckdb_path":       "database.path",
		"caliper_duckdb_max_memory": "database.max_memory",
		"caliper_duckdb_threads":    "database.threads",
		"caliper_seed_demo_bank":    "database.seed_mock_data",

		// Engine mappings
		"caliper_irt_prior_var":        "engine.irt.prior_var",
		"caliper_irt_max_iterations":   "engine.irt.max_iterations",
		"caliper_irt_tolerance":        "engine.irt.tolerance",
		"caliper_selector_seed":        "engine.selector.seed",
		"caliper_se_threshold":         "engine.session.se_threshold",
		"caliper_default_target_items": "engine.session.default_target_items",
		"caliper_max_target_items":     "engine.session.max_target_items",

		// Catalogue cache mappings
		"caliper_cache_enabled":             "cache.enabled",
		"caliper_cache_ttl":                 "cache.ttl",
		"caliper_cache_refresh_concurrency": "cache.refresh_concurrency",
		"caliper_cache_refresh_interval":    "cache.refresh_interval",

		// Event bus mappings
		"caliper_events_buffer_size":   "events.buffer_size",
		"caliper_events_close_timeout": "events.close_timeout",

		// Journal mappings
		"caliper_journal_enabled":     "journal.enabled",
		"caliper_journal_path":        "journal.path",
		"caliper_journal_in_memory":   "journal.in_memory",
		"caliper_journal_gc_interval": "journal.gc_interval",

		// WebSocket mappings
		"caliper_ws_enabled":          "websocket.enabled",
		"caliper_ws_write_timeout":    "websocket.write_timeout",
		"caliper_ws_pong_timeout":     "websocket.pong_timeout",
		"caliper_ws_ping_interval":    "websocket.ping_interval",
		"caliper_ws_max_message_size": "websocket.max_message_size",
		"caliper_ws_send_buffer":      "websocket.send_buffer_size",

		// Import mappings
		"caliper_import_rate":           "import.records_per_second",
		"caliper_import_burst":          "import.burst",
		"caliper_import_max_errors":     "import.max_errors",
		"caliper_import_max_body_bytes": "import.max_body_bytes",

		// Logging mappings
		"caliper_log_level":  "logging.level",
		"caliper_log_format": "logging.format",
		"caliper_log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so random environment variables cannot
	// pollute the config.
	return ""
}
