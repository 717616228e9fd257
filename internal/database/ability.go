// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/opencaliper/caliper/internal/metrics"
	"github.com/opencaliper/caliper/internal/models"
)

// AbilityProfiles returns the stored ability estimates of one student for
// every topic of the subject. Topics the student never touched have no row;
// callers apply the theta 0 / SE 1 default themselves.
func (db *DB) AbilityProfiles(ctx context.Context, studentID, subjectID int64) ([]models.AbilityProfile, error) {
	defer metrics.ObserveDBQuery("ability_profiles", time.Now())

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT ap.student_id, ap.topic_id, ap.theta, ap.se, ap.updated_at
		FROM ability_profiles ap
		JOIN topics t ON t.id = ap.topic_id
		WHERE ap.student_id = ? AND t.subject_id = ?
		ORDER BY ap.topic_id`, studentID, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ability profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.AbilityProfile
	for rows.Next() {
		var p models.AbilityProfile
		if err := rows.Scan(&p.StudentID, &p.TopicID, &p.Theta, &p.SE, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ability profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// upsertAbility writes one (student, topic) estimate inside the caller's
// transaction, stamping updated_at.
func upsertAbility(ctx context.Context, tx *sql.Tx, studentID, topicID int64, theta, se float64, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ability_profiles (student_id, topic_id, theta, se, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (student_id, topic_id) DO UPDATE SET
			theta = EXCLUDED.theta,
			se = EXCLUDED.se,
			updated_at = EXCLUDED.updated_at`,
		studentID, topicID, theta, se, now)
	if err != nil {
		return fmt.Errorf("failed to upsert ability profile: %w", err)
	}
	return nil
}
