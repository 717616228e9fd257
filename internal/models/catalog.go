// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

// Package models defines data structures used throughout the Caliper engine.
// These models represent the item bank, student ability profiles, test
// sessions, selection rules, and API responses.
package models

import "time"

// Subject is a top-level content area (e.g. "Mathematics").
type Subject struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Topic is a teachable unit within a subject. Topic names are unique
// within their subject. Ability is estimated per (student, topic).
type Topic struct {
	ID        int64  `json:"id"`
	SubjectID int64  `json:"subject_id"`
	Name      string `json:"name"`
}

// LearningOutcome is an optional fine-grained objective under a topic.
// Items may be tagged with an outcome in addition to their topic.
type LearningOutcome struct {
	ID          int64  `json:"id"`
	TopicID     int64  `json:"topic_id"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

// Item is a multiple-choice question in the bank.
//
// Key fields:
//   - DifficultyTag: coarse author-assigned label ("easy", "medium", "hard"),
//     used by fixed-form sampling; adaptive selection uses calibrated IRT b.
//   - TimeAvgSec: authoring estimate of time to answer, surfaced to clients.
//   - Active: inactive items are invisible to every selection path.
type Item struct {
	ID            int64     `json:"id"`
	SubjectID     int64     `json:"subject_id"`
	Stem          string    `json:"stem"`
	DifficultyTag string    `json:"difficulty_tag,omitempty"`
	TimeAvgSec    int       `json:"time_avg_sec,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// ItemOption is one answer choice for an item. Labels are single letters
// ("A", "B", ...) and unique per item. Exactly one option per item should
// have Correct set; the engine validates ownership, not keying discipline.
type ItemOption struct {
	ID      int64  `json:"id"`
	ItemID  int64  `json:"item_id"`
	Label   string `json:"label"`
	Body    string `json:"body"`
	Correct bool   `json:"-"`
}

// ItemTag links an item to a topic (and optionally a learning outcome).
// An item may be tagged with several topics; each answer updates the
// ability estimate of every tagged topic.
type ItemTag struct {
	ItemID            int64  `json:"item_id"`
	TopicID           int64  `json:"topic_id"`
	LearningOutcomeID *int64 `json:"learning_outcome_id,omitempty"`
}

// ItemIRT holds the 3PL calibration for an item. Any subset of the
// parameters may be missing: such items answer with probability 0.5,
// contribute no Fisher information, and are excluded from information
// scoring (they remain reachable through the random fallback).
type ItemIRT struct {
	ItemID int64    `json:"item_id"`
	A      *float64 `json:"a,omitempty"` // discrimination
	B      *float64 `json:"b,omitempty"` // difficulty
	C      *float64 `json:"c,omitempty"` // pseudo-guessing
}

// Complete reports whether all three parameters are present.
func (p *ItemIRT) Complete() bool {
	return p != nil && p.A != nil && p.B != nil && p.C != nil
}

// ItemStats holds observed aggregates for an item, maintained by the
// answer flow: classical p-value (share correct), mean answer latency,
// and exposure rate (share of sessions that served the item).
type ItemStats struct {
	ItemID       int64   `json:"item_id"`
	PValue       float64 `json:"p_value"`
	TimeAvgSec   float64 `json:"time_avg_sec"`
	ExposureRate float64 `json:"exposure_rate"`
	Answers      int64   `json:"answers"`
}

// ServedItem is the client-facing projection of an item: the stem and
// options without correctness flags or calibration.
type ServedItem struct {
	ID            int64              `json:"id"`
	Stem          string             `json:"stem"`
	DifficultyTag string             `json:"difficulty_tag,omitempty"`
	TimeAvgSec    int                `json:"time_avg_sec,omitempty"`
	Options       []ServedItemOption `json:"options"`
}

// ServedItemOption is one answer choice as presented to the student.
type ServedItemOption struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
	Body  string `json:"body"`
}
