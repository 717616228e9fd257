// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package config

import (
	"fmt"
)

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateEngine(); err != nil {
		return err
	}

	if err := c.validateCache(); err != nil {
		return err
	}

	if err := c.validateJournal(); err != nil {
		return err
	}

	if err := c.validateWebSocket(); err != nil {
		return err
	}

	if err := c.validateImport(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validEnvironments lists the accepted CALIPER_ENVIRONMENT values.
var validEnvironments = map[string]bool{
	"development": true,
	"staging":     true,
	"production":  true,
	"test":        true,
}

// validateServer validates the HTTP server configuration.
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("CALIPER_HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("CALIPER_HTTP_TIMEOUT must be positive")
	}
	if !validEnvironments[c.Server.Environment] {
		return fmt.Errorf("CALIPER_ENVIRONMENT must be one of development, staging, production, test; got %q", c.Server.Environment)
	}
	if !c.Server.RateLimitDisabled {
		if c.Server.RateLimitReqs < 1 {
			return fmt.Errorf("CALIPER_RATE_LIMIT_REQS must be at least 1")
		}
		if c.Server.RateLimitWindow <= 0 {
			return fmt.Errorf("CALIPER_RATE_LIMIT_WINDOW must be positive")
		}
	}
	return nil
}

// validateDatabase validates the DuckDB configuration.
func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("CALIPER_DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("CALIPER_DUCKDB_THREADS must not be negative")
	}
	if c.Database.MaxMemory == "" {
		return fmt.Errorf("CALIPER_DUCKDB_MAX_MEMORY is required (e.g. 2GB)")
	}
	return nil
}

// validateEngine validates the adaptive engine tunables.
func (c *Config) validateEngine() error {
	if c.Engine.IRT.PriorVar <= 0 {
		return fmt.Errorf("CALIPER_IRT_PRIOR_VAR must be positive")
	}
	if c.Engine.IRT.MaxIterations < 1 {
		return fmt.Errorf("CALIPER_IRT_MAX_ITERATIONS must be at least 1")
	}
	if c.Engine.IRT.Tolerance <= 0 {
		return fmt.Errorf("CALIPER_IRT_TOLERANCE must be positive")
	}
	if c.Engine.Session.SEThreshold <= 0 {
		return fmt.Errorf("CALIPER_SE_THRESHOLD must be positive")
	}
	if c.Engine.Session.DefaultTargetItems < 3 {
		return fmt.Errorf("CALIPER_DEFAULT_TARGET_ITEMS must be at least 3")
	}
	if c.Engine.Session.MaxTargetItems < c.Engine.Session.DefaultTargetItems {
		return fmt.Errorf("CALIPER_MAX_TARGET_ITEMS must be at least CALIPER_DEFAULT_TARGET_ITEMS (%d)",
			c.Engine.Session.DefaultTargetItems)
	}
	return nil
}

// validateCache validates the catalogue cache configuration.
func (c *Config) validateCache() error {
	if !c.Cache.Enabled {
		return nil
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CALIPER_CACHE_TTL must be positive when the cache is enabled")
	}
	if c.Cache.RefreshConcurrency < 1 {
		return fmt.Errorf("CALIPER_CACHE_REFRESH_CONCURRENCY must be at least 1")
	}
	return nil
}

// validateJournal validates the session journal configuration.
func (c *Config) validateJournal() error {
	if !c.Journal.Enabled || c.Journal.InMemory {
		return nil
	}
	if c.Journal.Path == "" {
		return fmt.Errorf("CALIPER_JOURNAL_PATH is required when the journal is enabled")
	}
	if c.Journal.GCInterval <= 0 {
		return fmt.Errorf("CALIPER_JOURNAL_GC_INTERVAL must be positive")
	}
	return nil
}

// validateWebSocket validates the live feed configuration.
func (c *Config) validateWebSocket() error {
	if !c.WebSocket.Enabled {
		return nil
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("CALIPER_WS_WRITE_TIMEOUT must be positive")
	}
	if c.WebSocket.PingInterval >= c.WebSocket.PongTimeout {
		return fmt.Errorf("CALIPER_WS_PING_INTERVAL (%s) must be shorter than CALIPER_WS_PONG_TIMEOUT (%s)",
			c.WebSocket.PingInterval, c.WebSocket.PongTimeout)
	}
	if c.WebSocket.SendBufferSize < 1 {
		return fmt.Errorf("CALIPER_WS_SEND_BUFFER must be at least 1")
	}
	return nil
}

// validateImport validates the item import configuration.
func (c *Config) validateImport() error {
	if c.Import.RecordsPerSecond <= 0 {
		return fmt.Errorf("CALIPER_IMPORT_RATE must be positive")
	}
	if c.Import.Burst < 1 {
		return fmt.Errorf("CALIPER_IMPORT_BURST must be at least 1")
	}
	if c.Import.MaxErrors < 0 {
		return fmt.Errorf("CALIPER_IMPORT_MAX_ERRORS must not be negative")
	}
	if c.Import.MaxBodyBytes < 1 {
		return fmt.Errorf("CALIPER_IMPORT_MAX_BODY_BYTES must be at least 1")
	}
	return nil
}

// validLogLevels lists the accepted CALIPER_LOG_LEVEL values.
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
	"fatal": true,
}

// validateLogging validates the log output configuration.
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("CALIPER_LOG_LEVEL must be one of trace, debug, info, warn, error, fatal; got %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("CALIPER_LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
