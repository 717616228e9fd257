// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package database

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/opencaliper/caliper/internal/logging"
	"github.com/opencaliper/caliper/internal/metrics"
)

// retryBackoff is the pause before the single retry of a transient failure.
const retryBackoff = 25 * time.Millisecond

// configureConnectionPool sets connection pool parameters.
func (db *DB) configureConnectionPool() error {
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
	return nil
}

// withRetry runs op and, when it fails with a transient storage error,
// retries exactly once after a short backoff. A second failure surfaces
// as-is; anything non-transient surfaces immediately.
func (db *DB) withRetry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || !isTransientError(err) {
		return err
	}

	logging.Warn().Err(err).Msg("Transient storage error, retrying once")
	metrics.DBRetries.Inc()

	select {
	case <-time.After(retryBackoff):
	case <-ctx.Done():
		return ctx.Err()
	}

	return op()
}

// isTransientError reports whether an error is worth a single retry:
// transaction conflicts, lock contention, or a dropped connection.
// DuckDB INTERNAL errors are excluded; those are bugs, not weather.
func isTransientError(err error) bool {
	if err == nil || isInternalError(err) {
		return false
	}
	return isTransactionConflict(err) ||
		isConnectionError(err) ||
		strings.Contains(err.Error(), "database is locked")
}

// isTransactionConflict checks if an error is a DuckDB transaction conflict.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Transaction conflict") ||
		strings.Contains(errStr, "Conflict on update") ||
		strings.Contains(errStr, "cannot update a table that has been altered")
}

// isInternalError checks if an error is a DuckDB INTERNAL error.
func isInternalError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "INTERNAL Error")
}

// isConnectionError checks if an error indicates database connection loss.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "connection reset") ||
		strings.Contains(errMsg, "broken pipe") ||
		strings.Contains(errMsg, "bad connection") ||
		strings.Contains(errMsg, "database is closed")
}
