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

// ActiveRules returns all active selection rules ordered by ID. Implements
// the rule evaluator's store.
func (db *DB) ActiveRules(ctx context.Context) ([]models.SelectionRule, error) {
	defer metrics.ObserveDBQuery("active_rules", time.Now())

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, condition_json, action_json, is_active, updated_at
		FROM selection_rules
		WHERE is_active
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query selection rules: %w", err)
	}
	defer rows.Close()

	var rules []models.SelectionRule
	for rows.Next() {
		var r models.SelectionRule
		var condition, action []byte
		if err := rows.Scan(&r.ID, &r.Name, &condition, &action, &r.Active, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan selection rule: %w", err)
		}
		r.Condition = condition
		r.Action = action
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// RecentResponses returns the student's most recent answers in the subject
// expanded per tagged topic, newest first, drawn from at most `limit`
// responses. Feeds the mastery window of the rule evaluator.
func (db *DB) RecentResponses(ctx context.Context, studentID, subjectID int64, limit int) ([]models.TopicResponse, error) {
	defer metrics.ObserveDBQuery("recent_responses", time.Now())

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		WITH recent AS (
			SELECT si.item_id, sr.is_correct, sr.answered_at
			FROM session_responses sr
			JOIN session_items si ON si.id = sr.session_item_id
			JOIN test_sessions ts ON ts.id = si.session_id
			WHERE ts.student_id = ? AND ts.subject_id = ?
			ORDER BY sr.answered_at DESC
			LIMIT ?
		)
		SELECT t.topic_id, r.item_id, r.is_correct, r.answered_at
		FROM recent r
		JOIN item_tags t ON t.item_id = r.item_id
		ORDER BY r.answered_at DESC`, studentID, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent responses: %w", err)
	}
	defer rows.Close()

	var responses []models.TopicResponse
	for rows.Next() {
		var tr models.TopicResponse
		if err := rows.Scan(&tr.TopicID, &tr.ItemID, &tr.Correct, &tr.AnsweredAt); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		responses = append(responses, tr)
	}
	return responses, rows.Err()
}

// AnsweredItemIDs returns the items the student answered in the subject
// at or after `since`, across all of their sessions. Feeds the exposure
// cooldown rule.
func (db *DB) AnsweredItemIDs(ctx context.Context, studentID, subjectID int64, since time.Time) ([]int64, error) {
	defer metrics.ObserveDBQuery("answered_items", time.Now())

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT DISTINCT si.item_id
		FROM session_responses sr
		JOIN session_items si ON si.id = sr.session_item_id
		JOIN test_sessions ts ON ts.id = si.session_id
		WHERE ts.student_id = ? AND ts.subject_id = ? AND sr.answered_at >= ?
		ORDER BY si.item_id`, studentID, subjectID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query answered items: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan answered item: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
