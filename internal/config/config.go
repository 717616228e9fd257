// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

// Package config loads and validates application configuration.
//
// Configuration is layered with Koanf v2, later layers overriding
// earlier ones:
//
//  1. Defaults: built-in values from DefaultConfig
//  2. Config file: optional YAML file (config.yaml)
//  3. Environment variables: CALIPER_* overrides
//
// Config is immutable after Load and safe for concurrent reads.
package config

import (
	"time"
)

// Config holds all application configuration.
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("failed to load config:", err)
//	}
//	db, err := database.New(&cfg.Database)
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Engine    EngineConfig    `koanf:"engine"`
	Cache     CacheConfig     `koanf:"cache"`
	Events    EventsConfig    `koanf:"events"`
	Journal   JournalConfig   `koanf:"journal"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Import    ImportConfig    `koanf:"import"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - CALIPER_HTTP_PORT: Listen port (default: 1968)
//   - CALIPER_HTTP_HOST: Bind address (default: 0.0.0.0)
//   - CALIPER_HTTP_TIMEOUT: Read/write timeout (default: 30s)
//   - CALIPER_ENVIRONMENT: development, staging, or production
//   - CALIPER_CORS_ORIGINS: Comma-separated allowed origins
//   - CALIPER_RATE_LIMIT_REQS: Requests per window per IP (default: 100)
//   - CALIPER_RATE_LIMIT_WINDOW: Rate limit window (default: 1m)
//   - CALIPER_RATE_LIMIT_DISABLED: Disable rate limiting entirely
type ServerConfig struct {
	Port              int           `koanf:"port"`
	Host              string        `koanf:"host"`
	Timeout           time.Duration `koanf:"timeout"`
	Environment       string        `koanf:"environment"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// DatabaseConfig holds DuckDB settings.
//
// Environment Variables:
//   - CALIPER_DUCKDB_PATH: Database file path, or :memory: (default: /data/caliper.duckdb)
//   - CALIPER_DUCKDB_MAX_MEMORY: DuckDB memory limit (default: 2GB)
//   - CALIPER_DUCKDB_THREADS: DuckDB thread count, 0 = NumCPU (default: 0)
//   - CALIPER_SEED_DEMO_BANK: Seed the demo item bank on startup
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"` // 0 = use runtime.NumCPU()
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
	SeedMockData           bool   `koanf:"seed_mock_data"`
	SkipIndexes            bool   `koanf:"skip_indexes"` // test-only: skip secondary indexes
}

// EngineConfig groups the adaptive engine tunables.
type EngineConfig struct {
	IRT      IRTConfig      `koanf:"irt"`
	Selector SelectorConfig `koanf:"selector"`
	Session  SessionConfig  `koanf:"session"`
}

// IRTConfig holds the Newton MAP estimator settings. The prior mean is
// not configurable: every update re-centers the prior on the stored
// profile theta.
type IRTConfig struct {
	PriorVar      float64 `koanf:"prior_var"`      // variance of the normal prior on theta
	MaxIterations int     `koanf:"max_iterations"` // Newton loop bound
	Tolerance     float64 `koanf:"tolerance"`      // step size convergence threshold
}

// SelectorConfig holds item selection settings.
type SelectorConfig struct {
	// Seed fixes the tie-break RNG for reproducible runs. 0 seeds
	// from the clock.
	Seed int64 `koanf:"seed"`
}

// SessionConfig holds session lifecycle settings.
//
// Environment Variables:
//   - CALIPER_SE_THRESHOLD: Stop when mean SE falls below this (default: 0.30)
//   - CALIPER_DEFAULT_TARGET_ITEMS: Target when the request omits it (default: 10)
//   - CALIPER_MAX_TARGET_ITEMS: Upper bound on requested session length (default: 50)
type SessionConfig struct {
	SEThreshold        float64 `koanf:"se_threshold"`
	DefaultTargetItems int     `koanf:"default_target_items"`
	MaxTargetItems     int     `koanf:"max_target_items"`
}

// CacheConfig holds catalogue snapshot cache settings.
type CacheConfig struct {
	Enabled            bool          `koanf:"enabled"`
	TTL                time.Duration `koanf:"ttl"`
	RefreshConcurrency int           `koanf:"refresh_concurrency"`
	RefreshInterval    time.Duration `koanf:"refresh_interval"` // background refresh cadence
}

// EventsConfig holds the in-process event bus settings.
type EventsConfig struct {
	BufferSize   int           `koanf:"buffer_size"`   // per-subscriber channel buffer
	CloseTimeout time.Duration `koanf:"close_timeout"` // graceful shutdown bound
}

// JournalConfig holds the Badger session journal settings.
type JournalConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Path       string        `koanf:"path"`
	InMemory   bool          `koanf:"in_memory"` // test-only: no files on disk
	GCInterval time.Duration `koanf:"gc_interval"`
}

// WebSocketConfig holds live feed settings.
type WebSocketConfig struct {
	Enabled        bool          `koanf:"enabled"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	PongTimeout    time.Duration `koanf:"pong_timeout"`
	PingInterval   time.Duration `koanf:"ping_interval"` // must be shorter than PongTimeout
	MaxMessageSize int64         `koanf:"max_message_size"`
	SendBufferSize int           `koanf:"send_buffer_size"`
}

// ImportConfig holds JSONL item import settings.
type ImportConfig struct {
	RecordsPerSecond float64 `koanf:"records_per_second"`
	Burst            int     `koanf:"burst"`
	MaxErrors        int     `koanf:"max_errors"` // first N record errors kept in the report
	MaxBodyBytes     int64   `koanf:"max_body_bytes"`
}

// LoggingConfig holds log output settings.
//
// Environment Variables:
//   - CALIPER_LOG_LEVEL: trace, debug, info, warn, error, fatal (default: info)
//   - CALIPER_LOG_FORMAT: json or console (default: json)
//   - CALIPER_LOG_CALLER: Include caller file:line in entries
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
