// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opencaliper/caliper/internal/catalog"
	"github.com/opencaliper/caliper/internal/irt"
	"github.com/opencaliper/caliper/internal/metrics"
	"github.com/opencaliper/caliper/internal/models"
)

// LoadCatalog builds a fresh snapshot of one subject's item bank: active
// items, their options, topic tags, IRT calibration, and the subject's
// topics, loaded in parallel. Implements catalog.Loader.
func (db *DB) LoadCatalog(ctx context.Context, subjectID int64) (*catalog.Snapshot, error) {
	defer metrics.ObserveDBQuery("load_catalog", time.Now())

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		items   []models.Item
		options map[int64][]models.ItemOption
		tags    map[int64][]int64
		params  map[int64]irt.Params
		topics  map[int64]models.Topic
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		items, err = db.loadItems(gctx, subjectID)
		return err
	})
	g.Go(func() (err error) {
		options, err = db.loadItemOptions(gctx, subjectID)
		return err
	})
	g.Go(func() (err error) {
		tags, err = db.loadItemTags(gctx, subjectID)
		return err
	})
	g.Go(func() (err error) {
		params, err = db.loadItemIRT(gctx, subjectID)
		return err
	})
	g.Go(func() (err error) {
		topics, err = db.loadTopics(gctx, subjectID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return catalog.NewSnapshot(subjectID, items, options, tags, params, topics), nil
}

func (db *DB) loadItems(ctx context.Context, subjectID int64) ([]models.Item, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, subject_id, stem, COALESCE(difficulty_tag, ''), COALESCE(time_avg_sec, 0), is_active, created_at
		FROM items
		WHERE subject_id = ? AND is_active
		ORDER BY id`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(&item.ID, &item.SubjectID, &item.Stem, &item.DifficultyTag,
			&item.TimeAvgSec, &item.Active, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (db *DB) loadItemOptions(ctx context.Context, subjectID int64) (map[int64][]models.ItemOption, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT o.id, o.item_id, o.label, o.body, o.is_correct
		FROM item_options o
		JOIN items i ON i.id = o.item_id
		WHERE i.subject_id = ? AND i.is_active
		ORDER BY o.item_id, o.label`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query item options: %w", err)
	}
	defer rows.Close()

	options := make(map[int64][]models.ItemOption)
	for rows.Next() {
		var opt models.ItemOption
		if err := rows.Scan(&opt.ID, &opt.ItemID, &opt.Label, &opt.Body, &opt.Correct); err != nil {
			return nil, fmt.Errorf("failed to scan item option: %w", err)
		}
		options[opt.ItemID] = append(options[opt.ItemID], opt)
	}
	return options, rows.Err()
}

func (db *DB) loadItemTags(ctx context.Context, subjectID int64) (map[int64][]int64, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT t.item_id, t.topic_id
		FROM item_tags t
		JOIN items i ON i.id = t.item_id
		WHERE i.subject_id = ? AND i.is_active
		ORDER BY t.item_id, t.topic_id`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query item tags: %w", err)
	}
	defer rows.Close()

	tags := make(map[int64][]int64)
	for rows.Next() {
		var itemID, topicID int64
		if err := rows.Scan(&itemID, &topicID); err != nil {
			return nil, fmt.Errorf("failed to scan item tag: %w", err)
		}
		tags[itemID] = append(tags[itemID], topicID)
	}
	return tags, rows.Err()
}

func (db *DB) loadItemIRT(ctx context.Context, subjectID int64) (map[int64]irt.Params, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT r.item_id, r.a, r.b, r.c
		FROM item_irt r
		JOIN items i ON i.id = r.item_id
		WHERE i.subject_id = ? AND i.is_active`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query item calibration: %w", err)
	}
	defer rows.Close()

	params := make(map[int64]irt.Params)
	for rows.Next() {
		var itemID int64
		var a, b, c sql.NullFloat64
		if err := rows.Scan(&itemID, &a, &b, &c); err != nil {
			return nil, fmt.Errorf("failed to scan item calibration: %w", err)
		}
		var p irt.Params
		if a.Valid {
			p.A = &a.Float64
		}
		if b.Valid {
			p.B = &b.Float64
		}
		if c.Valid {
			p.C = &c.Float64
		}
		params[itemID] = p
	}
	return params, rows.Err()
}

func (db *DB) loadTopics(ctx context.Context, subjectID int64) (map[int64]models.Topic, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, subject_id, name
		FROM topics
		WHERE subject_id = ?
		ORDER BY id`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query topics: %w", err)
	}
	defer rows.Close()

	topics := make(map[int64]models.Topic)
	for rows.Next() {
		var t models.Topic
		if err := rows.Scan(&t.ID, &t.SubjectID, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics[t.ID] = t
	}
	return topics, rows.Err()
}

// ListSubjectIDs returns the IDs of all subjects, ascending. Implements
// catalog.Loader.
func (db *DB) ListSubjectIDs(ctx context.Context) ([]int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT id FROM subjects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subjects: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan subject id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SubjectExists reports whether a subject row exists.
func (db *DB) SubjectExists(ctx context.Context, subjectID int64) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var one int
	err := db.conn.QueryRowContext(ctx, `SELECT 1 FROM subjects WHERE id = ?`, subjectID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check subject: %w", err)
	}
	return true, nil
}

// TopicInSubject reports whether the topic exists and belongs to the subject.
func (db *DB) TopicInSubject(ctx context.Context, topicID, subjectID int64) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var one int
	err := db.conn.QueryRowContext(ctx, `SELECT 1 FROM topics WHERE id = ? AND subject_id = ?`, topicID, subjectID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check topic: %w", err)
	}
	return true, nil
}

// SampleItemIDs returns a uniform random sample of active item IDs in the
// subject, optionally filtered by difficulty tag. Fixed-form sessions use
// it to draw their whole form at once.
func (db *DB) SampleItemIDs(ctx context.Context, subjectID int64, difficultyTag string, n int) ([]int64, error) {
	defer metrics.ObserveDBQuery("sample_items", time.Now())

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id FROM items WHERE subject_id = ? AND is_active`
	args := []any{subjectID}
	if difficultyTag != "" {
		query += ` AND difficulty_tag = ?`
		args = append(args, difficultyTag)
	}
	query += ` ORDER BY random() LIMIT ?`
	args = append(args, n)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to sample items: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan sampled item: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
