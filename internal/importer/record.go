// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package importer

import (
	"fmt"

	"github.com/opencaliper/caliper/internal/database"
	"github.com/opencaliper/caliper/internal/models"
)

// Record is one JSONL line of the item bank interchange format.
// Either "topic" or "topics" may be used; normalize folds the singular
// form into Topics before validation.
type Record struct {
	Stem          string         `json:"stem" validate:"required,min=1,max=400"`
	Subject       string         `json:"subject" validate:"required,min=1,max=120"`
	Topic         string         `json:"topic" validate:"omitempty,max=120"`
	Topics        []string       `json:"topics" validate:"omitempty,max=8,dive,required,max=120"`
	Options       []RecordOption `json:"options" validate:"required,min=2,max=6,dive"`
	IRT           *RecordIRT     `json:"irt" validate:"omitempty"`
	DifficultyTag string         `json:"difficulty_tag" validate:"omitempty,oneof=easy medium hard"`
	TimeAvgSec    int            `json:"time_avg_sec" validate:"omitempty,gt=0,lte=3600"`
	Active        *bool          `json:"active"` // defaults to true
}

// RecordOption is one answer option of an imported item.
type RecordOption struct {
	Label   string `json:"label" validate:"required,min=1,max=8"`
	Body    string `json:"body" validate:"required,min=1,max=400"`
	Correct bool   `json:"correct"`
}

// RecordIRT carries 3PL calibration. All three parameters must be given
// together; an item without the block is served only through the
// uniform fallback until calibrated.
type RecordIRT struct {
	A float64 `json:"a" validate:"required,gt=0,lte=5"`
	B float64 `json:"b" validate:"gte=-4,lte=4"`
	C float64 `json:"c" validate:"gte=0,lt=1"`
}

// normalize folds the singular topic field into Topics. Runs before
// validation so a record using either spelling passes the same checks.
func (r *Record) normalize() {
	if r.Topic != "" {
		r.Topics = append(r.Topics, r.Topic)
		r.Topic = ""
	}
}

// check enforces the constraints struct tags cannot express.
func (r *Record) check() error {
	if len(r.Topics) == 0 {
		return fmt.Errorf("record needs at least one topic")
	}

	seenTopics := make(map[string]struct{}, len(r.Topics))
	for _, topic := range r.Topics {
		if _, dup := seenTopics[topic]; dup {
			return fmt.Errorf("duplicate topic %q", topic)
		}
		seenTopics[topic] = struct{}{}
	}

	correct := 0
	seenLabels := make(map[string]struct{}, len(r.Options))
	for _, opt := range r.Options {
		if _, dup := seenLabels[opt.Label]; dup {
			return fmt.Errorf("duplicate option label %q", opt.Label)
		}
		seenLabels[opt.Label] = struct{}{}
		if opt.Correct {
			correct++
		}
	}
	if correct != 1 {
		return fmt.Errorf("record must mark exactly one option correct, found %d", correct)
	}
	return nil
}

// active returns the effective active flag.
func (r *Record) active() bool {
	if r.Active == nil {
		return true
	}
	return *r.Active
}

// bundle converts a validated record into an insertable item bundle.
// Subject and topic names have already been resolved to IDs.
func (r *Record) bundle(subjectID int64, topicIDs []int64) *database.ItemBundle {
	options := make([]models.ItemOption, len(r.Options))
	for i, opt := range r.Options {
		options[i] = models.ItemOption{
			Label:   opt.Label,
			Body:    opt.Body,
			Correct: opt.Correct,
		}
	}

	b := &database.ItemBundle{
		SubjectID:     subjectID,
		Stem:          r.Stem,
		DifficultyTag: r.DifficultyTag,
		TimeAvgSec:    r.TimeAvgSec,
		Active:        r.active(),
		TopicIDs:      topicIDs,
		Options:       options,
	}
	if r.IRT != nil {
		a, bParam, c := r.IRT.A, r.IRT.B, r.IRT.C
		b.IRT = &models.ItemIRT{A: &a, B: &bParam, C: &c}
	}
	return b
}
