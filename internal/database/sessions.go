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

	"github.com/google/uuid"

	"github.com/opencaliper/caliper/internal/irt"
	"github.com/opencaliper/caliper/internal/metrics"
	"github.com/opencaliper/caliper/internal/models"
)

// ServedItemRow is the delivery state of one item within a session.
type ServedItemRow struct {
	SessionItemID int64
	Position      int
	Answered      bool
}

// AnswerWrite is everything one scored answer persists atomically: the
// response row, the item's running stats, the re-estimated ability
// profiles, and either the next served item or the session's finish.
type AnswerWrite struct {
	SessionID     uuid.UUID
	SessionItemID int64
	ItemID        int64
	OptionID      int64
	Correct       bool
	LatencyMS     int
	AnsweredAt    time.Time

	StudentID int64
	Abilities map[int64]irt.Estimate

	NextItem   *models.SessionItem
	Finish     bool
	FinishedAt time.Time
}

// FixedAnswer is one answer of a fixed-form submission.
type FixedAnswer struct {
	SessionItemID int64
	ItemID        int64
	OptionID      int64
	Correct       bool
	LatencyMS     int
}

// FixedSubmission persists a whole fixed-form test in one transaction.
type FixedSubmission struct {
	SessionID  uuid.UUID
	Answers    []FixedAnswer
	AnsweredAt time.Time
	FinishedAt time.Time
}

// CreateSession inserts a session row together with its initially served
// items (one for CAT, the whole form for FIXED). All rows commit or none
// do, so a failed first selection leaves no orphan session behind.
func (db *DB) CreateSession(ctx context.Context, s *models.Session, served []models.SessionItem) error {
	defer metrics.ObserveDBQuery("create_session", time.Now())

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return db.withRetry(ctx, func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer rollbackQuietly(tx)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO test_sessions (id, student_id, subject_id, topic_id, mode, target_items, status, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.StudentID, s.SubjectID, s.TopicID, s.Mode, s.TargetItems, s.Status, s.StartedAt, s.FinishedAt)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}

		for _, item := range served {
			if err := insertSessionItem(ctx, tx, &item); err != nil {
				return err
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit session: %w", err)
		}
		return nil
	})
}

// Session loads one session by ID. Returns ErrNotFound for unknown IDs.
func (db *DB) Session(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	defer metrics.ObserveDBQuery("get_session", time.Now())

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var s models.Session
	var topicID sql.NullInt64
	var finishedAt sql.NullTime
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, student_id, subject_id, topic_id, mode, target_items, status, started_at, finished_at
		FROM test_sessions
		WHERE id = ?`, id).Scan(
		&s.ID, &s.StudentID, &s.SubjectID, &topicID, &s.Mode, &s.TargetItems,
		&s.Status, &s.StartedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if topicID.Valid {
		s.TopicID = &topicID.Int64
	}
	if finishedAt.Valid {
		s.FinishedAt = &finishedAt.Time
	}
	return &s, nil
}

// SessionItems returns the served items of a session ordered by position.
func (db *DB) SessionItems(ctx context.Context, sessionID uuid.UUID) ([]models.SessionItem, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, session_id, item_id, position, served_at
		FROM session_items
		WHERE session_id = ?
		ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session items: %w", err)
	}
	defer rows.Close()

	var items []models.SessionItem
	for rows.Next() {
		var it models.SessionItem
		if err := rows.Scan(&it.ID, &it.SessionID, &it.ItemID, &it.Position, &it.ServedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ServedItemIDs returns the set of item IDs already served in the session.
// The selector excludes them from every candidate pass.
func (db *DB) ServedItemIDs(ctx context.Context, sessionID uuid.UUID) (map[int64]struct{}, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT item_id FROM session_items WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query served items: %w", err)
	}
	defer rows.Close()

	served := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan served item: %w", err)
		}
		served[id] = struct{}{}
	}
	return served, rows.Err()
}

// ServedItem returns the delivery state of one item in a session: its
// session_items row ID, position, and whether a response exists. Returns
// ErrNotFound when the item was never served in this session.
func (db *DB) ServedItem(ctx context.Context, sessionID uuid.UUID, itemID int64) (*ServedItemRow, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var row ServedItemRow
	err := db.conn.QueryRowContext(ctx, `
		SELECT si.id, si.position, sr.id IS NOT NULL
		FROM session_items si
		LEFT JOIN session_responses sr ON sr.session_item_id = si.id
		WHERE si.session_id = ? AND si.item_id = ?`, sessionID, itemID).Scan(
		&row.SessionItemID, &row.Position, &row.Answered)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get served item: %w", err)
	}
	return &row, nil
}

// ServedCount returns how many items the session has served.
func (db *DB) ServedCount(ctx context.Context, sessionID uuid.UUID) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM session_items WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count served items: %w", err)
	}
	return n, nil
}

// AnsweredCount returns how many served items carry a response.
func (db *DB) AnsweredCount(ctx context.Context, sessionID uuid.UUID) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM session_responses sr
		JOIN session_items si ON si.id = sr.session_item_id
		WHERE si.session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count responses: %w", err)
	}
	return n, nil
}

// RecordAnswer persists one scored answer atomically: response row, item
// stats, ability upserts, and the session's continuation (next served item
// or FINISHED status). Transient failures retry the whole transaction once.
func (db *DB) RecordAnswer(ctx context.Context, w *AnswerWrite) error {
	defer metrics.ObserveDBQuery("record_answer", time.Now())

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return db.withRetry(ctx, func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer rollbackQuietly(tx)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_responses (session_item_id, option_id, is_correct, latency_ms, answered_at)
			VALUES (?, ?, ?, ?, ?)`,
			w.SessionItemID, w.OptionID, w.Correct, w.LatencyMS, w.AnsweredAt)
		if err != nil {
			return fmt.Errorf("failed to insert response: %w", err)
		}

		if err := updateItemStats(ctx, tx, w.ItemID, w.Correct, w.LatencyMS); err != nil {
			return err
		}

		for topicID, est := range w.Abilities {
			if err := upsertAbility(ctx, tx, w.StudentID, topicID, est.Theta, est.SE, w.AnsweredAt); err != nil {
				return err
			}
		}

		if w.NextItem != nil {
			if err := insertSessionItem(ctx, tx, w.NextItem); err != nil {
				return err
			}
		}

		if w.Finish {
			if err := finishSession(ctx, tx, w.SessionID, w.FinishedAt); err != nil {
				return err
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit answer: %w", err)
		}
		return nil
	})
}

// SubmitFixed persists a fixed-form submission: every response, the item
// stats, and the FINISHED status, in one transaction.
func (db *DB) SubmitFixed(ctx context.Context, sub *FixedSubmission) error {
	defer metrics.ObserveDBQuery("submit_fixed", time.Now())

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return db.withRetry(ctx, func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer rollbackQuietly(tx)

		for _, a := range sub.Answers {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO session_responses (session_item_id, option_id, is_correct, latency_ms, answered_at)
				VALUES (?, ?, ?, ?, ?)`,
				a.SessionItemID, a.OptionID, a.Correct, a.LatencyMS, sub.AnsweredAt)
			if err != nil {
				return fmt.Errorf("failed to insert response: %w", err)
			}
			if err := updateItemStats(ctx, tx, a.ItemID, a.Correct, a.LatencyMS); err != nil {
				return err
			}
		}

		if err := finishSession(ctx, tx, sub.SessionID, sub.FinishedAt); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit submission: %w", err)
		}
		return nil
	})
}

func insertSessionItem(ctx context.Context, tx *sql.Tx, item *models.SessionItem) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO session_items (session_id, item_id, position, served_at)
		VALUES (?, ?, ?, ?)`,
		item.SessionID, item.ItemID, item.Position, item.ServedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session item: %w", err)
	}
	return nil
}

func finishSession(ctx context.Context, tx *sql.Tx, sessionID uuid.UUID, finishedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE test_sessions SET status = ?, finished_at = ? WHERE id = ?`,
		models.StatusFinished, finishedAt, sessionID)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	return nil
}

// updateItemStats folds one answer into the item's running aggregates:
// classical p-value and mean latency as running means, exposure as served
// sessions over the subject's total sessions.
func updateItemStats(ctx context.Context, tx *sql.Tx, itemID int64, correct bool, latencyMS int) error {
	correctVal := 0.0
	if correct {
		correctVal = 1.0
	}
	latencySec := float64(latencyMS) / 1000.0

	_, err := tx.ExecContext(ctx, `
		INSERT INTO item_stats (item_id, p_value, time_avg_sec, exposure_rate, answers)
		VALUES (?, ?, ?, 0, 1)
		ON CONFLICT (item_id) DO UPDATE SET
			p_value = (item_stats.p_value * item_stats.answers + EXCLUDED.p_value) / (item_stats.answers + 1),
			time_avg_sec = (item_stats.time_avg_sec * item_stats.answers + EXCLUDED.time_avg_sec) / (item_stats.answers + 1),
			answers = item_stats.answers + 1`,
		itemID, correctVal, latencySec)
	if err != nil {
		return fmt.Errorf("failed to update item stats: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE item_stats
		SET exposure_rate = (
			SELECT COUNT(*) * 1.0 FROM session_items si WHERE si.item_id = item_stats.item_id
		) / GREATEST(1, (
			SELECT COUNT(*) FROM test_sessions ts
			WHERE ts.subject_id = (SELECT i.subject_id FROM items i WHERE i.id = item_stats.item_id)
		))
		WHERE item_id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("failed to update exposure rate: %w", err)
	}
	return nil
}

// rollbackQuietly rolls back a transaction, ignoring the error returned
// after a successful commit.
func rollbackQuietly(tx *sql.Tx) {
	_ = tx.Rollback()
}
