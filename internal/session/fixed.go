// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package session

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"

	"github.com/opencaliper/caliper/internal/database"
	"github.com/opencaliper/caliper/internal/events"
	"github.com/opencaliper/caliper/internal/metrics"
	"github.com/opencaliper/caliper/internal/models"
)

// FixedInput describes a new fixed-form session: a random sample of
// Count active items, optionally narrowed to a difficulty tag. Count
// zero means the configured default.
type FixedInput struct {
	StudentID     int64  `json:"student_id"`
	SubjectID     int64  `json:"subject_id"`
	Count         int    `json:"count,omitempty"`
	DifficultyTag string `json:"difficulty_tag,omitempty"`
}

// FixedState is a freshly started fixed form with every item served up
// front. TargetItems may be smaller than the requested count when the
// bank cannot fill the form.
type FixedState struct {
	SessionID   uuid.UUID           `json:"session_id"`
	StudentID   int64               `json:"student_id"`
	SubjectID   int64               `json:"subject_id"`
	TargetItems int                 `json:"target_items"`
	Items       []models.ServedItem `json:"items"`
}

// SubmitInput grades a whole fixed form in one call.
type SubmitInput struct {
	SessionID uuid.UUID      `json:"session_id"`
	Answers   []SubmitAnswer `json:"answers"`
}

// SubmitAnswer is one answer of a fixed-form submission.
type SubmitAnswer struct {
	ItemID   int64 `json:"item_id"`
	OptionID int64 `json:"option_id"`
}

// GradedAnswer reports per-item correctness after submission.
type GradedAnswer struct {
	ItemID   int64 `json:"item_id"`
	OptionID int64 `json:"option_id"`
	Correct  bool  `json:"correct"`
}

// FixedResult is the score of a submitted form. Total counts the served
// items, so unanswered ones weigh in as incorrect; Score10 is the 0..10
// scale rounded to the nearest integer.
type FixedResult struct {
	SessionID uuid.UUID      `json:"session_id"`
	Total     int            `json:"total"`
	Correct   int            `json:"correct"`
	Score10   int            `json:"score10"`
	Answers   []GradedAnswer `json:"answers"`
}

// StartFixed opens a fixed-form session. Items are sampled uniformly
// from the subject's active pool and served all at once; ability
// estimates play no part in the draw and are not touched by grading.
func (c *Controller) StartFixed(ctx context.Context, in FixedInput) (*FixedState, error) {
	if in.StudentID <= 0 {
		return nil, newError(KindBadRequest, "student_id must be positive")
	}
	if in.SubjectID <= 0 {
		return nil, newError(KindBadRequest, "subject_id must be positive")
	}
	if in.Count == 0 {
		in.Count = c.cfg.Session.DefaultTargetItems
	}
	if in.Count < 1 {
		return nil, newError(KindBadRequest, "count must be positive")
	}
	if in.Count > c.cfg.Session.MaxTargetItems {
		return nil, newError(KindBadRequest, "count must not exceed %d", c.cfg.Session.MaxTargetItems)
	}

	exists, err := c.store.SubjectExists(ctx, in.SubjectID)
	if err != nil {
		return nil, wrapError(err, "failed to check subject %d", in.SubjectID)
	}
	if !exists {
		return nil, newError(KindBadRequest, "subject %d does not exist", in.SubjectID)
	}

	ids, err := c.store.SampleItemIDs(ctx, in.SubjectID, in.DifficultyTag, in.Count)
	if err != nil {
		return nil, wrapError(err, "failed to sample items for subject %d", in.SubjectID)
	}
	snap, err := c.snapshot(ctx, in.SubjectID)
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	s := &models.Session{
		ID:        uuid.New(),
		StudentID: in.StudentID,
		SubjectID: in.SubjectID,
		Mode:      models.ModeFixed,
		Status:    models.StatusOngoing,
		StartedAt: now,
	}

	// Items sampled between catalogue refreshes may be missing from the
	// snapshot; they are dropped rather than served blind.
	served := make([]models.SessionItem, 0, len(ids))
	projections := make([]models.ServedItem, 0, len(ids))
	for _, itemID := range ids {
		proj := servedProjection(snap, itemID)
		if proj == nil {
			continue
		}
		served = append(served, models.SessionItem{
			SessionID: s.ID,
			ItemID:    itemID,
			Position:  len(served) + 1,
			ServedAt:  now,
		})
		projections = append(projections, *proj)
	}
	if len(served) == 0 {
		return nil, newError(KindNoEligibleItem, "no items available for subject %d", in.SubjectID)
	}
	s.TargetItems = len(served)

	if err := c.store.CreateSession(ctx, s, served); err != nil {
		return nil, wrapError(err, "failed to create session")
	}

	metrics.SessionsStarted.WithLabelValues(models.ModeFixed).Inc()
	c.log.Info().
		Str("session_id", s.ID.String()).
		Int64("student_id", s.StudentID).
		Int64("subject_id", s.SubjectID).
		Int("items", len(served)).
		Str("difficulty_tag", in.DifficultyTag).
		Msg("Fixed form started")

	c.publish(ctx, events.NewSessionEvent(events.TypeSessionStarted, s.ID, s.StudentID, s.SubjectID))

	return &FixedState{
		SessionID:   s.ID,
		StudentID:   s.StudentID,
		SubjectID:   s.SubjectID,
		TargetItems: s.TargetItems,
		Items:       projections,
	}, nil
}

// SubmitFixed grades a fixed form and finishes the session. Every answer
// must name a served item; items left unanswered score as incorrect.
func (c *Controller) SubmitFixed(ctx context.Context, in SubmitInput) (*FixedResult, error) {
	if in.SessionID == uuid.Nil {
		return nil, newError(KindBadRequest, "session_id is required")
	}
	if len(in.Answers) == 0 {
		return nil, newError(KindBadRequest, "answers must not be empty")
	}
	seen := make(map[int64]struct{}, len(in.Answers))
	for _, a := range in.Answers {
		if a.ItemID <= 0 {
			return nil, newError(KindBadRequest, "item_id must be positive")
		}
		if a.OptionID <= 0 {
			return nil, newError(KindBadRequest, "option_id must be positive")
		}
		if _, dup := seen[a.ItemID]; dup {
			return nil, newError(KindBadRequest, "duplicate answer for item %d", a.ItemID)
		}
		seen[a.ItemID] = struct{}{}
	}

	key := in.SessionID.String()
	unlock := c.store.LockSession(key)
	finished := false
	defer func() {
		unlock()
		if finished {
			c.store.ReleaseSessionLock(key)
		}
	}()

	s, err := c.store.Session(ctx, in.SessionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindNotFound, "session %s does not exist", in.SessionID)
		}
		return nil, wrapError(err, "failed to load session %s", in.SessionID)
	}
	if !s.Ongoing() {
		return nil, newError(KindSessionNotOngoing, "session %s is already finished", in.SessionID)
	}
	if s.Mode != models.ModeFixed {
		return nil, newError(KindBadRequest, "session %s is adaptive; answer items one at a time", in.SessionID)
	}

	items, err := c.store.SessionItems(ctx, in.SessionID)
	if err != nil {
		return nil, wrapError(err, "failed to load session items")
	}
	rowByItem := make(map[int64]int64, len(items))
	for _, it := range items {
		rowByItem[it.ItemID] = it.ID
	}

	snap, err := c.snapshot(ctx, s.SubjectID)
	if err != nil {
		return nil, err
	}

	answers := make([]database.FixedAnswer, 0, len(in.Answers))
	graded := make([]GradedAnswer, 0, len(in.Answers))
	correctCount := 0
	for _, a := range in.Answers {
		sessionItemID, ok := rowByItem[a.ItemID]
		if !ok {
			return nil, newError(KindItemNotServed, "item %d was not served in session %s", a.ItemID, in.SessionID)
		}
		opt, ok := snap.Option(a.ItemID, a.OptionID)
		if !ok {
			return nil, newError(KindOptionMismatch, "option %d does not belong to item %d", a.OptionID, a.ItemID)
		}
		if opt.Correct {
			correctCount++
		}
		answers = append(answers, database.FixedAnswer{
			SessionItemID: sessionItemID,
			ItemID:        a.ItemID,
			OptionID:      a.OptionID,
			Correct:       opt.Correct,
		})
		graded = append(graded, GradedAnswer{
			ItemID:   a.ItemID,
			OptionID: a.OptionID,
			Correct:  opt.Correct,
		})
	}

	now := c.now().UTC()
	sub := &database.FixedSubmission{
		SessionID:  in.SessionID,
		Answers:    answers,
		AnsweredAt: now,
		FinishedAt: now,
	}
	if err := c.store.SubmitFixed(ctx, sub); err != nil {
		return nil, wrapError(err, "failed to submit fixed form")
	}
	finished = true

	for _, g := range graded {
		metrics.RecordAnswer(g.Correct)
	}
	metrics.SessionsFinished.WithLabelValues(models.StopReasonSubmitted).Inc()

	total := len(items)
	score10 := int(math.Round(10 * float64(correctCount) / float64(total)))
	c.log.Info().
		Str("session_id", s.ID.String()).
		Int("total", total).
		Int("correct", correctCount).
		Int("score10", score10).
		Msg("Fixed form submitted")

	ev := events.NewSessionEvent(events.TypeSessionFinished, s.ID, s.StudentID, s.SubjectID)
	ev.Position = len(graded)
	ev.StopReason = models.StopReasonSubmitted
	c.publish(ctx, ev)

	return &FixedResult{
		SessionID: in.SessionID,
		Total:     total,
		Correct:   correctCount,
		Score10:   score10,
		Answers:   graded,
	}, nil
}
