// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package session

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/opencaliper/caliper/internal/ability"
	"github.com/opencaliper/caliper/internal/catalog"
	"github.com/opencaliper/caliper/internal/database"
	"github.com/opencaliper/caliper/internal/events"
	"github.com/opencaliper/caliper/internal/irt"
	"github.com/opencaliper/caliper/internal/metrics"
	"github.com/opencaliper/caliper/internal/models"
	"github.com/opencaliper/caliper/internal/rules"
	"github.com/opencaliper/caliper/internal/selector"
)

// minTargetItems is the floor for a session's item target. Below this an
// SE-based stop decision has nothing to stand on.
const minTargetItems = 3

// StartInput describes a new adaptive session. TargetItems zero means
// the configured default; TopicID nil means subject-wide.
type StartInput struct {
	StudentID   int64  `json:"student_id"`
	SubjectID   int64  `json:"subject_id"`
	TopicID     *int64 `json:"topic_id,omitempty"`
	TargetItems int    `json:"target_items,omitempty"`
}

// State is a session as reported to clients. Position is the highest
// served position. NextItem is the pending adaptive item; Items lists a
// fixed form's items. Both are nil once the session finishes.
type State struct {
	SessionID   uuid.UUID           `json:"session_id"`
	StudentID   int64               `json:"student_id"`
	SubjectID   int64               `json:"subject_id"`
	TopicID     *int64              `json:"topic_id,omitempty"`
	Mode        string              `json:"mode"`
	Status      string              `json:"status"`
	Position    int                 `json:"position"`
	TargetItems int                 `json:"target_items"`
	Abilities   []TopicEstimate     `json:"abilities"`
	NextItem    *models.ServedItem  `json:"next_item,omitempty"`
	Items       []models.ServedItem `json:"items,omitempty"`
}

// AnswerInput grades one served item of an adaptive session.
type AnswerInput struct {
	SessionID uuid.UUID `json:"session_id"`
	ItemID    int64     `json:"item_id"`
	OptionID  int64     `json:"option_id"`
	LatencyMS int       `json:"latency_ms,omitempty"`
}

// Outcome is the result of grading one answer. Position is the count of
// answered items. When Stop is set the session is finished, StopReason
// says why, and NextItem is nil.
type Outcome struct {
	SessionID   uuid.UUID          `json:"session_id"`
	Correct     bool               `json:"correct"`
	Position    int                `json:"position"`
	TargetItems int                `json:"target_items"`
	Abilities   []TopicEstimate    `json:"abilities"`
	NextItem    *models.ServedItem `json:"next_item,omitempty"`
	Stop        bool               `json:"stop"`
	StopReason  string             `json:"stop_reason,omitempty"`
}

// StartCAT opens an adaptive session and serves its first item. The
// first selection runs before anything is persisted, so an empty pool
// leaves no session behind.
func (c *Controller) StartCAT(ctx context.Context, in StartInput) (*State, error) {
	if err := c.validateStart(ctx, &in); err != nil {
		return nil, err
	}

	snap, err := c.snapshot(ctx, in.SubjectID)
	if err != nil {
		return nil, err
	}
	vec, err := c.abilities(ctx, in.StudentID, in.SubjectID)
	if err != nil {
		return nil, err
	}

	sc, err := c.rules.Evaluate(ctx, rules.Input{
		StudentID: in.StudentID,
		SubjectID: in.SubjectID,
		Abilities: vec,
		Snapshot:  snap,
	})
	if err != nil {
		return nil, wrapError(err, "failed to evaluate selection rules")
	}

	choice, err := c.pick(ctx, selector.Input{
		Snapshot:  snap,
		Abilities: vec,
		AvgTheta:  vec.Mean(),
		Context:   sc,
		Used:      map[int64]struct{}{},
		TopicID:   in.TopicID,
		Position:  1,
	})
	if err != nil {
		return nil, wrapError(err, "failed to select first item for subject %d", in.SubjectID)
	}

	now := c.now().UTC()
	s := &models.Session{
		ID:          uuid.New(),
		StudentID:   in.StudentID,
		SubjectID:   in.SubjectID,
		TopicID:     in.TopicID,
		Mode:        models.ModeCAT,
		TargetItems: in.TargetItems,
		Status:      models.StatusOngoing,
		StartedAt:   now,
	}
	served := []models.SessionItem{{
		SessionID: s.ID,
		ItemID:    choice.Item.ID,
		Position:  1,
		ServedAt:  now,
	}}
	if err := c.store.CreateSession(ctx, s, served); err != nil {
		return nil, wrapError(err, "failed to create session")
	}

	metrics.SessionsStarted.WithLabelValues(models.ModeCAT).Inc()
	c.log.Info().
		Str("session_id", s.ID.String()).
		Int64("student_id", s.StudentID).
		Int64("subject_id", s.SubjectID).
		Int64("item_id", choice.Item.ID).
		Int("target_items", s.TargetItems).
		Msg("Adaptive session started")

	c.publish(ctx, events.NewSessionEvent(events.TypeSessionStarted, s.ID, s.StudentID, s.SubjectID))
	c.publish(ctx, servedEvent(s, choice.Item.ID, 1))

	return &State{
		SessionID:   s.ID,
		StudentID:   s.StudentID,
		SubjectID:   s.SubjectID,
		TopicID:     s.TopicID,
		Mode:        s.Mode,
		Status:      s.Status,
		Position:    1,
		TargetItems: s.TargetItems,
		Abilities:   estimates(vec),
		NextItem:    servedProjection(snap, choice.Item.ID),
	}, nil
}

func (c *Controller) validateStart(ctx context.Context, in *StartInput) error {
	if in.StudentID <= 0 {
		return newError(KindBadRequest, "student_id must be positive")
	}
	if in.SubjectID <= 0 {
		return newError(KindBadRequest, "subject_id must be positive")
	}
	if in.TargetItems == 0 {
		in.TargetItems = c.cfg.Session.DefaultTargetItems
	}
	if in.TargetItems < minTargetItems {
		return newError(KindBadRequest, "target_items must be at least %d", minTargetItems)
	}
	if in.TargetItems > c.cfg.Session.MaxTargetItems {
		return newError(KindBadRequest, "target_items must not exceed %d", c.cfg.Session.MaxTargetItems)
	}

	exists, err := c.store.SubjectExists(ctx, in.SubjectID)
	if err != nil {
		return wrapError(err, "failed to check subject %d", in.SubjectID)
	}
	if !exists {
		return newError(KindBadRequest, "subject %d does not exist", in.SubjectID)
	}
	if in.TopicID != nil {
		ok, err := c.store.TopicInSubject(ctx, *in.TopicID, in.SubjectID)
		if err != nil {
			return wrapError(err, "failed to check topic %d", *in.TopicID)
		}
		if !ok {
			return &Error{Kind: KindBadRequest, Err: ErrTopicNotInSubject}
		}
	}
	return nil
}

// AnswerCAT grades one answer, updates the ability estimates of the
// item's topics, and either serves the next item or finishes the
// session. The whole operation runs under the session lock and persists
// in a single transaction.
func (c *Controller) AnswerCAT(ctx context.Context, in AnswerInput) (*Outcome, error) {
	if in.SessionID == uuid.Nil {
		return nil, newError(KindBadRequest, "session_id is required")
	}
	if in.ItemID <= 0 {
		return nil, newError(KindBadRequest, "item_id must be positive")
	}
	if in.OptionID <= 0 {
		return nil, newError(KindBadRequest, "option_id must be positive")
	}
	if in.LatencyMS < 0 {
		return nil, newError(KindBadRequest, "latency_ms must not be negative")
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
	if s.Mode != models.ModeCAT {
		return nil, newError(KindBadRequest, "session %s is a fixed form; grade it by submission", in.SessionID)
	}

	row, err := c.store.ServedItem(ctx, in.SessionID, in.ItemID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindItemNotServed, "item %d was not served in session %s", in.ItemID, in.SessionID)
		}
		return nil, wrapError(err, "failed to load served item %d", in.ItemID)
	}
	if row.Answered {
		return nil, newError(KindItemNotServed, "item %d in session %s is already answered", in.ItemID, in.SessionID)
	}

	snap, err := c.snapshot(ctx, s.SubjectID)
	if err != nil {
		return nil, err
	}
	opt, ok := snap.Option(in.ItemID, in.OptionID)
	if !ok {
		return nil, newError(KindOptionMismatch, "option %d does not belong to item %d", in.OptionID, in.ItemID)
	}
	correct := opt.Correct

	vec, err := c.abilities(ctx, s.StudentID, s.SubjectID)
	if err != nil {
		return nil, err
	}
	topics := snap.TopicIDs(in.ItemID)
	updates := ability.Updates(vec, topics, irt.Response{
		Correct: correct,
		Params:  snap.Params(in.ItemID),
	}, c.irtConfig())
	next := vec.Clone()
	for topicID, est := range updates {
		next[topicID] = est
	}

	served, err := c.store.ServedCount(ctx, in.SessionID)
	if err != nil {
		return nil, wrapError(err, "failed to count served items")
	}

	stop := false
	var stopReason string
	if meanSE, ok := next.MeanSE(topics); ok && meanSE < c.cfg.Session.SEThreshold {
		stop, stopReason = true, models.StopReasonSEThreshold
	} else if served >= s.TargetItems {
		stop, stopReason = true, models.StopReasonTargetReached
	}

	now := c.now().UTC()
	var nextServed *models.SessionItem
	if !stop {
		nextServed, err = c.selectNext(ctx, s, snap, next, served+1)
		if err != nil {
			return nil, err
		}
		if nextServed == nil {
			stop, stopReason = true, models.StopReasonPoolExhausted
		} else {
			nextServed.ServedAt = now
		}
	}

	write := &database.AnswerWrite{
		SessionID:     in.SessionID,
		SessionItemID: row.SessionItemID,
		ItemID:        in.ItemID,
		OptionID:      in.OptionID,
		Correct:       correct,
		LatencyMS:     in.LatencyMS,
		AnsweredAt:    now,
		StudentID:     s.StudentID,
		Abilities:     updates,
		NextItem:      nextServed,
		Finish:        stop,
		FinishedAt:    now,
	}
	if err := c.store.RecordAnswer(ctx, write); err != nil {
		return nil, wrapError(err, "failed to record answer")
	}

	metrics.RecordAnswer(correct)
	if n := len(updates); n > 0 {
		metrics.AbilityUpdates.Add(float64(n))
	}
	if stop {
		finished = true
		metrics.SessionsFinished.WithLabelValues(stopReason).Inc()
		c.log.Info().
			Str("session_id", s.ID.String()).
			Str("stop_reason", stopReason).
			Int("answered", row.Position).
			Msg("Adaptive session finished")
	} else {
		c.log.Debug().
			Str("session_id", s.ID.String()).
			Int64("item_id", in.ItemID).
			Bool("correct", correct).
			Int("position", row.Position).
			Msg("Answer recorded")
	}

	c.publish(ctx, answeredEvent(s, in.ItemID, row.Position, correct, updates))
	if nextServed != nil {
		c.publish(ctx, servedEvent(s, nextServed.ItemID, nextServed.Position))
	}
	if stop {
		c.publish(ctx, finishedEvent(s, row.Position, stopReason, next))
	}

	out := &Outcome{
		SessionID:   in.SessionID,
		Correct:     correct,
		Position:    row.Position,
		TargetItems: s.TargetItems,
		Abilities:   estimates(next),
		Stop:        stop,
		StopReason:  stopReason,
	}
	if nextServed != nil {
		out.NextItem = servedProjection(snap, nextServed.ItemID)
	}
	return out, nil
}

// selectNext picks the item for the given position, re-evaluating rules
// against the updated ability vector. A nil item with nil error means
// the pool is exhausted.
func (c *Controller) selectNext(ctx context.Context, s *models.Session, snap *catalog.Snapshot, vec ability.Vector, position int) (*models.SessionItem, error) {
	used, err := c.store.ServedItemIDs(ctx, s.ID)
	if err != nil {
		return nil, wrapError(err, "failed to load served item ids")
	}
	sc, err := c.rules.Evaluate(ctx, rules.Input{
		StudentID: s.StudentID,
		SubjectID: s.SubjectID,
		Abilities: vec,
		Snapshot:  snap,
	})
	if err != nil {
		return nil, wrapError(err, "failed to evaluate selection rules")
	}
	choice, err := c.pick(ctx, selector.Input{
		Snapshot:  snap,
		Abilities: vec,
		AvgTheta:  vec.Mean(),
		Context:   sc,
		Used:      used,
		TopicID:   s.TopicID,
		Position:  position,
	})
	if errors.Is(err, selector.ErrNoEligibleItem) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError(err, "failed to select item for position %d", position)
	}
	return &models.SessionItem{
		SessionID: s.ID,
		ItemID:    choice.Item.ID,
		Position:  position,
	}, nil
}

// Get returns the current state of a session, including the pending item
// for ongoing adaptive runs and the full form for ongoing fixed ones.
func (c *Controller) Get(ctx context.Context, id uuid.UUID) (*State, error) {
	if id == uuid.Nil {
		return nil, newError(KindBadRequest, "session_id is required")
	}
	s, err := c.store.Session(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindNotFound, "session %s does not exist", id)
		}
		return nil, wrapError(err, "failed to load session %s", id)
	}

	vec, err := c.abilities(ctx, s.StudentID, s.SubjectID)
	if err != nil {
		return nil, err
	}
	items, err := c.store.SessionItems(ctx, id)
	if err != nil {
		return nil, wrapError(err, "failed to load session items")
	}

	st := &State{
		SessionID:   s.ID,
		StudentID:   s.StudentID,
		SubjectID:   s.SubjectID,
		TopicID:     s.TopicID,
		Mode:        s.Mode,
		Status:      s.Status,
		Position:    len(items),
		TargetItems: s.TargetItems,
		Abilities:   estimates(vec),
	}
	if !s.Ongoing() || len(items) == 0 {
		return st, nil
	}

	snap, err := c.snapshot(ctx, s.SubjectID)
	if err != nil {
		return nil, err
	}
	switch s.Mode {
	case models.ModeCAT:
		answered, err := c.store.AnsweredCount(ctx, id)
		if err != nil {
			return nil, wrapError(err, "failed to count answered items")
		}
		if len(items) > answered {
			st.NextItem = servedProjection(snap, items[len(items)-1].ItemID)
		}
	case models.ModeFixed:
		st.Items = make([]models.ServedItem, 0, len(items))
		for _, it := range items {
			if proj := servedProjection(snap, it.ItemID); proj != nil {
				st.Items = append(st.Items, *proj)
			}
		}
	}
	return st, nil
}

func servedEvent(s *models.Session, itemID int64, position int) events.SessionEvent {
	ev := events.NewSessionEvent(events.TypeItemServed, s.ID, s.StudentID, s.SubjectID)
	ev.Position = position
	ev.ItemID = &itemID
	return ev
}

func answeredEvent(s *models.Session, itemID int64, position int, correct bool, updates map[int64]irt.Estimate) events.SessionEvent {
	ev := events.NewSessionEvent(events.TypeItemAnswered, s.ID, s.StudentID, s.SubjectID)
	ev.Position = position
	ev.ItemID = &itemID
	ev.Correct = &correct
	ev.Abilities = topicAbilities(updates)
	return ev
}

func finishedEvent(s *models.Session, position int, stopReason string, vec ability.Vector) events.SessionEvent {
	ev := events.NewSessionEvent(events.TypeSessionFinished, s.ID, s.StudentID, s.SubjectID)
	ev.Position = position
	ev.StopReason = stopReason
	ev.Abilities = topicAbilities(vec)
	return ev
}
