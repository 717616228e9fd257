// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package models

import (
	"time"

	"github.com/google/uuid"
)

// Session modes.
const (
	ModeCAT   = "CAT"   // adaptive: one item at a time, ability-driven
	ModeFixed = "FIXED" // fixed form: sampled up front, scored on submit
)

// Session statuses.
const (
	StatusOngoing  = "ONGOING"
	StatusFinished = "FINISHED"
)

// Stop reasons reported when a session finishes. The first three apply
// to adaptive sessions; submitted marks a graded fixed form.
const (
	StopReasonSEThreshold   = "se_threshold"
	StopReasonTargetReached = "target_reached"
	StopReasonPoolExhausted = "item_pool_exhausted"
	StopReasonSubmitted     = "submitted"
)

// Session is one test run for a student. TopicID narrows an adaptive
// session to items tagged with that topic; nil means subject-wide.
type Session struct {
	ID          uuid.UUID  `json:"id"`
	StudentID   int64      `json:"student_id"`
	SubjectID   int64      `json:"subject_id"`
	TopicID     *int64     `json:"topic_id,omitempty"`
	Mode        string     `json:"mode"`
	TargetItems int        `json:"target_items"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Ongoing reports whether the session still accepts answers.
func (s *Session) Ongoing() bool {
	return s.Status == StatusOngoing
}

// SessionItem records that an item was served at a position.
// (session, item) and (session, position) are both unique.
type SessionItem struct {
	ID        int64     `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	ItemID    int64     `json:"item_id"`
	Position  int       `json:"position"`
	ServedAt  time.Time `json:"served_at"`
}

// SessionResponse records the student's answer to a served item.
type SessionResponse struct {
	ID            int64     `json:"id"`
	SessionItemID int64     `json:"session_item_id"`
	OptionID      int64     `json:"option_id"`
	Correct       bool      `json:"correct"`
	LatencyMS     int       `json:"latency_ms"`
	AnsweredAt    time.Time `json:"answered_at"`
}

// TopicResponse is one historical answer joined with its topic, as used
// by mastery computation: newest-first windows per topic.
type TopicResponse struct {
	TopicID    int64     `json:"topic_id"`
	ItemID     int64     `json:"item_id"`
	Correct    bool      `json:"correct"`
	AnsweredAt time.Time `json:"answered_at"`
}
