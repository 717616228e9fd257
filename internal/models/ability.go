// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package models

import "time"

// AbilityProfile is the persisted ability estimate for one (student, topic)
// pair: theta on the standard logit scale and its standard error. Students
// without a stored profile are treated as theta 0, SE 1; defaults are never
// written back on read.
type AbilityProfile struct {
	StudentID int64     `json:"student_id"`
	TopicID   int64     `json:"topic_id"`
	Theta     float64   `json:"theta"`
	SE        float64   `json:"se"`
	UpdatedAt time.Time `json:"updated_at"`
}
