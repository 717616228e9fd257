// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

/*
schema.go - Database Schema Management

This file manages the DuckDB schema: table creation and index management.

Tables:
  - subjects, topics, learning_outcomes: the curriculum hierarchy
  - items, item_options, item_tags: the item bank and its topic tagging
  - item_irt: 3PL calibration per item (any parameter may be missing)
  - item_stats: answer-flow aggregates (p-value, latency, exposure)
  - ability_profiles: per-(student, topic) theta/SE estimates
  - test_sessions, session_items, session_responses: test delivery
  - selection_rules: JSON condition/action pairs steering item selection

Schema Strategy (Pre-Release):
All columns are defined in the initial CREATE TABLE statements. Versioned
migrations in migrations.go take over after the first public release.

Index Strategy:
Indexes cover the answer-path lookups (session items by session, responses
by session item), the mastery/cooldown history scans (responses by student
and recency), and catalogue loads by subject.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range db.getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// getTableCreationQueries returns the table creation SQL statements.
// DuckDB sequences provide the integer keys; UUIDs (sessions) are
// generated client-side.
func (db *DB) getTableCreationQueries() []string {
	return []string{
		// Sequences for integer primary keys
		`CREATE SEQUENCE IF NOT EXISTS seq_subject_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_topic_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_learning_outcome_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_item_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_item_option_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_session_item_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_session_response_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_selection_rule_id START 1`,

		// ============================================
		// Curriculum hierarchy
		// ============================================
		`CREATE TABLE IF NOT EXISTS subjects (
			id INTEGER PRIMARY KEY DEFAULT nextval('seq_subject_id'),
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS topics (
			id INTEGER PRIMARY KEY DEFAULT nextval('seq_topic_id'),
			subject_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			UNIQUE (subject_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS learning_outcomes (
			id INTEGER PRIMARY KEY DEFAULT nextval('seq_learning_outcome_id'),
			topic_id INTEGER NOT NULL,
			code TEXT NOT NULL,
			description TEXT,
			UNIQUE (topic_id, code)
		)`,

		// ============================================
		// Item bank
		// ============================================
		`CREATE TABLE IF NOT EXISTS items (
			id INTEGER PRIMARY KEY DEFAULT nextval('seq_item_id'),
			subject_id INTEGER NOT NULL,
			stem TEXT NOT NULL,
			difficulty_tag TEXT,
			time_avg_sec INTEGER,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS item_options (
			id INTEGER PRIMARY KEY DEFAULT nextval('seq_item_option_id'),
			item_id INTEGER NOT NULL,
			label TEXT NOT NULL,
			body TEXT NOT NULL,
			is_correct BOOLEAN NOT NULL DEFAULT false,
			UNIQUE (item_id, label)
		)`,
		`CREATE TABLE IF NOT EXISTS item_tags (
			item_id INTEGER NOT NULL,
			topic_id INTEGER NOT NULL,
			learning_outcome_id INTEGER,
			UNIQUE (item_id, topic_id)
		)`,
		`CREATE TABLE IF NOT EXISTS item_irt (
			item_id INTEGER PRIMARY KEY,
			a DOUBLE,
			b DOUBLE,
			c DOUBLE
		)`,
		`CREATE TABLE IF NOT EXISTS item_stats (
			item_id INTEGER PRIMARY KEY,
			p_value DOUBLE NOT NULL DEFAULT 0,
			time_avg_sec DOUBLE NOT NULL DEFAULT 0,
			exposure_rate DOUBLE NOT NULL DEFAULT 0,
			answers INTEGER NOT NULL DEFAULT 0
		)`,

		// ============================================
		// Ability estimates
		// ============================================
		`CREATE TABLE IF NOT EXISTS ability_profiles (
			student_id INTEGER NOT NULL,
			topic_id INTEGER NOT NULL,
			theta DOUBLE NOT NULL DEFAULT 0,
			se DOUBLE NOT NULL DEFAULT 1,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (student_id, topic_id)
		)`,

		// ============================================
		// Test delivery
		// ============================================
		`CREATE TABLE IF NOT EXISTS test_sessions (
			id UUID PRIMARY KEY,
			student_id INTEGER NOT NULL,
			subject_id INTEGER NOT NULL,
			topic_id INTEGER,
			mode TEXT NOT NULL,
			target_items INTEGER NOT NULL,
			status TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS session_items (
			id INTEGER PRIMARY KEY DEFAULT nextval('seq_session_item_id'),
			session_id UUID NOT NULL,
			item_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			served_at TIMESTAMP NOT NULL,
			UNIQUE (session_id, item_id),
			UNIQUE (session_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS session_responses (
			id INTEGER PRIMARY KEY DEFAULT nextval('seq_session_response_id'),
			session_item_id INTEGER NOT NULL UNIQUE,
			option_id INTEGER NOT NULL,
			is_correct BOOLEAN NOT NULL,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			answered_at TIMESTAMP NOT NULL
		)`,

		// ============================================
		// Selection rules
		// ============================================
		`CREATE TABLE IF NOT EXISTS selection_rules (
			id INTEGER PRIMARY KEY DEFAULT nextval('seq_selection_rule_id'),
			name TEXT NOT NULL,
			condition_json TEXT NOT NULL,
			action_json TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT true,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
}

// createIndexes creates indexes for frequent query patterns. Skipped when
// the config asks for a fast test setup.
func (db *DB) createIndexes() error {
	if db.cfg != nil && db.cfg.SkipIndexes {
		return nil
	}

	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_topics_subject ON topics (subject_id)`,
		`CREATE INDEX IF NOT EXISTS idx_items_subject_active ON items (subject_id, is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_item_options_item ON item_options (item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_item_tags_item ON item_tags (item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_item_tags_topic ON item_tags (topic_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_student_subject ON test_sessions (student_id, subject_id)`,
		`CREATE INDEX IF NOT EXISTS idx_session_items_session ON session_items (session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_answered_at ON session_responses (answered_at)`,
	}

	for _, idx := range indexes {
		if _, err := db.conn.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", idx, err)
		}
	}

	return nil
}
