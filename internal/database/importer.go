// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/opencaliper/caliper/internal/metrics"
	"github.com/opencaliper/caliper/internal/models"
)

// ItemBundle is one item with everything that hangs off it, inserted
// atomically by the importer and the seeder.
type ItemBundle struct {
	SubjectID     int64
	Stem          string
	DifficultyTag string
	TimeAvgSec    int
	Active        bool
	TopicIDs      []int64
	Options       []models.ItemOption // labels/bodies/correct; IDs assigned on insert
	IRT           *models.ItemIRT     // nil when the item is uncalibrated
}

// UpsertSubject returns the ID of the named subject, creating it if needed.
func (db *DB) UpsertSubject(ctx context.Context, name string) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO subjects (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert subject: %w", err)
	}

	var id int64
	if err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM subjects WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to resolve subject id: %w", err)
	}
	return id, nil
}

// UpsertTopic returns the ID of the named topic within a subject, creating
// it if needed.
func (db *DB) UpsertTopic(ctx context.Context, subjectID int64, name string) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO topics (subject_id, name) VALUES (?, ?) ON CONFLICT (subject_id, name) DO NOTHING`,
		subjectID, name)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert topic: %w", err)
	}

	var id int64
	if err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM topics WHERE subject_id = ? AND name = ?`, subjectID, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to resolve topic id: %w", err)
	}
	return id, nil
}

// InsertItemBundle inserts an item with its options, topic tags, and
// calibration in one transaction, returning the new item ID.
func (db *DB) InsertItemBundle(ctx context.Context, b *ItemBundle) (int64, error) {
	defer metrics.ObserveDBQuery("insert_item", time.Now())

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var itemID int64
	err := db.withRetry(ctx, func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer rollbackQuietly(tx)

		var difficultyTag any
		if b.DifficultyTag != "" {
			difficultyTag = b.DifficultyTag
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO items (subject_id, stem, difficulty_tag, time_avg_sec, is_active, created_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			RETURNING id`,
			b.SubjectID, b.Stem, difficultyTag, b.TimeAvgSec, b.Active).Scan(&itemID)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}

		for _, opt := range b.Options {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO item_options (item_id, label, body, is_correct)
				VALUES (?, ?, ?, ?)`,
				itemID, opt.Label, opt.Body, opt.Correct)
			if err != nil {
				return fmt.Errorf("failed to insert option %s: %w", opt.Label, err)
			}
		}

		for _, topicID := range b.TopicIDs {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO item_tags (item_id, topic_id) VALUES (?, ?)`,
				itemID, topicID)
			if err != nil {
				return fmt.Errorf("failed to insert tag: %w", err)
			}
		}

		if b.IRT != nil {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO item_irt (item_id, a, b, c) VALUES (?, ?, ?, ?)`,
				itemID, b.IRT.A, b.IRT.B, b.IRT.C)
			if err != nil {
				return fmt.Errorf("failed to insert calibration: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit item: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return itemID, nil
}

// InsertRule inserts a selection rule. Used by the seeder; rule authoring
// otherwise happens out of band.
func (db *DB) InsertRule(ctx context.Context, name, conditionJSON, actionJSON string, active bool) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var id int64
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO selection_rules (name, condition_json, action_json, is_active, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		RETURNING id`,
		name, conditionJSON, actionJSON, active).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert rule: %w", err)
	}
	return id, nil
}
