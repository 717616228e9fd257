// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package database

import (
	"context"
	"fmt"
	"time"
)

// ensureContext adds a 30-second timeout to contexts without a deadline,
// so no database operation can hang indefinitely.
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 30*time.Second)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, 30*time.Second)
	}

	return ctx, func() {}
}

// Checkpoint forces a WAL checkpoint.
func (db *DB) Checkpoint(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, "CHECKPOINT")
	if err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// Path returns the configured database file path.
func (db *DB) Path() string {
	return db.cfg.Path
}

// RecordCounts returns the row counts of the core tables, reported by
// the engine stats endpoint.
func (db *DB) RecordCounts(ctx context.Context) (items, sessions, responses int64, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if err = db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&items); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count items: %w", err)
	}
	if err = db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM test_sessions").Scan(&sessions); err != nil {
		return items, 0, 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	if err = db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM session_responses").Scan(&responses); err != nil {
		return items, sessions, 0, fmt.Errorf("failed to count responses: %w", err)
	}
	return items, sessions, responses, nil
}
