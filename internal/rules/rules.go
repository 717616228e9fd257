// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

// Package rules evaluates stored selection rules into a SelectionContext:
// topic boosts, an optional difficulty band, and a blocked-item set that
// together shape the next item choice. Rules live in the database as
// opaque condition/action JSON and are decoded into typed variants here;
// malformed or unknown rules are skipped, never fatal.
package rules

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/opencaliper/caliper/internal/ability"
	"github.com/opencaliper/caliper/internal/catalog"
	"github.com/opencaliper/caliper/internal/logging"
	"github.com/opencaliper/caliper/internal/models"
)

// Condition kinds understood by the evaluator.
const (
	KindMasteryBelow = "topic_mastery_below"
	KindThetaBelow   = "topic_theta_below"
	KindSessionStage = "session_stage"
	KindCooldown     = "exposure_cooldown"
	KindBlockTopic   = "block_topic"
)

// Action kinds paired with the conditions above.
const (
	ActionBoostTopic = "boost_topic_probability"
	ActionSetBand    = "set_difficulty_range"
	ActionBlockItems = "block_items"
)

// Defaults applied when a rule's JSON omits a field.
const (
	defaultMasteryThreshold = 0.5
	defaultThetaThreshold   = 0.0
	defaultMasteryWeight    = 1.2
	defaultThetaWeight      = 1.5
	defaultLTEPosition      = 5
	defaultCooldownDays     = 7

	// historyLimit bounds the response window mastery is computed from;
	// topicWindow bounds how many of those count per topic.
	historyLimit = 200
	topicWindow  = 20
)

// Store is the persistence surface the evaluator reads from.
type Store interface {
	// ActiveRules returns all rules with is_active set.
	ActiveRules(ctx context.Context) ([]models.SelectionRule, error)

	// RecentResponses returns the student's most recent answers in the
	// subject, newest first, joined with the topics tagged on each
	// answered item. At most limit distinct responses are covered.
	RecentResponses(ctx context.Context, studentID, subjectID int64, limit int) ([]models.TopicResponse, error)

	// AnsweredItemIDs returns the distinct items the student answered in
	// the subject since the given time, across all of their sessions.
	AnsweredItemIDs(ctx context.Context, studentID, subjectID int64, since time.Time) ([]int64, error)
}

// DifficultyBand restricts candidates to items whose IRT difficulty b
// lies inside [BMin, BMax] while the session position is at most
// LTEPosition. Nil edges are unbounded; a nil LTEPosition keeps the band
// active for the whole session.
type DifficultyBand struct {
	BMin        *float64
	BMax        *float64
	LTEPosition *int
}

// AppliesAt reports whether the band is in force at a 1-based session
// position. Position 0 means unknown and leaves the band active.
func (b *DifficultyBand) AppliesAt(position int) bool {
	if b == nil {
		return false
	}
	if b.LTEPosition == nil || position <= 0 {
		return true
	}
	return position <= *b.LTEPosition
}

// Admits reports whether an item's difficulty passes the band edges.
// Items without a calibrated b never pass an active band.
func (b *DifficultyBand) Admits(difficulty *float64) bool {
	if b == nil {
		return true
	}
	if difficulty == nil {
		return false
	}
	if b.BMin != nil && *difficulty < *b.BMin {
		return false
	}
	if b.BMax != nil && *difficulty > *b.BMax {
		return false
	}
	return true
}

// SelectionContext is the evaluator's output: everything the selector
// needs to know about the active rules.
type SelectionContext struct {
	// TopicBoosts multiplies the information score of items tagged with
	// the topic. Values are always >= 1.
	TopicBoosts map[int64]float64

	// Band is the merged difficulty band, nil when no session_stage rule
	// is active.
	Band *DifficultyBand

	// BlockedItems are item IDs that must not be served.
	BlockedItems map[int64]struct{}
}

// Blocked reports whether an item is excluded by the context.
func (c *SelectionContext) Blocked(itemID int64) bool {
	_, ok := c.BlockedItems[itemID]
	return ok
}

// Boost returns the accumulated multiplier for a topic, 1.0 by default.
func (c *SelectionContext) Boost(topicID int64) float64 {
	if w, ok := c.TopicBoosts[topicID]; ok {
		return w
	}
	return 1.0
}

// boost merges a weight for a topic, keeping the maximum and never
// letting the stored multiplier drop below 1.
func (c *SelectionContext) boost(topicID int64, weight float64) {
	current, ok := c.TopicBoosts[topicID]
	if !ok {
		current = 1.0
	}
	if weight > current {
		current = weight
	}
	c.TopicBoosts[topicID] = current
}

// mergeBand folds another difficulty band in, keeping the narrowest
// edges (max of the lower bounds, min of the upper bounds) and the
// smallest finite position cutoff.
func (c *SelectionContext) mergeBand(band DifficultyBand) {
	if c.Band == nil {
		merged := band
		c.Band = &merged
		return
	}
	if band.BMin != nil && (c.Band.BMin == nil || *band.BMin > *c.Band.BMin) {
		c.Band.BMin = band.BMin
	}
	if band.BMax != nil && (c.Band.BMax == nil || *band.BMax < *c.Band.BMax) {
		c.Band.BMax = band.BMax
	}
	if band.LTEPosition != nil && (c.Band.LTEPosition == nil || *band.LTEPosition < *c.Band.LTEPosition) {
		c.Band.LTEPosition = band.LTEPosition
	}
}

// Input carries the per-evaluation facts about the student and catalog.
type Input struct {
	StudentID int64
	SubjectID int64

	// Abilities is the student's current per-topic estimate vector.
	Abilities ability.Vector

	// Snapshot resolves topic-to-item references for block_topic rules.
	Snapshot *catalog.Snapshot
}

// Evaluator turns stored rules plus student history into a
// SelectionContext. Safe for concurrent use.
type Evaluator struct {
	store Store
	now   func() time.Time

	// unknownKinds tracks condition types already warned about, so a
	// misconfigured rule logs once instead of once per answer.
	unknownKinds sync.Map
}

// NewEvaluator creates an evaluator over the given store.
func NewEvaluator(store Store) *Evaluator {
	return &Evaluator{
		store: store,
		now:   time.Now,
	}
}

// Evaluate loads the active rules and applies them against the student's
// ability vector and recent history. Storage failures abort with an
// error; individual bad rules are skipped with a warning.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) (SelectionContext, error) {
	stored, err := e.store.ActiveRules(ctx)
	if err != nil {
		return SelectionContext{}, fmt.Errorf("load selection rules: %w", err)
	}

	sc := SelectionContext{
		TopicBoosts:  make(map[int64]float64),
		BlockedItems: make(map[int64]struct{}),
	}

	var (
		variants    []any
		needMastery bool
		maxCooldown time.Duration
	)
	for _, r := range stored {
		v, err := decode(r)
		if err != nil {
			logging.Warn().Err(err).
				Int64("rule_id", r.ID).
				Str("rule", r.Name).
				Msg("skipping malformed selection rule")
			continue
		}
		if v == nil {
			e.warnUnknownOnce(r)
			continue
		}
		switch v := v.(type) {
		case masteryBelow:
			needMastery = true
		case exposureCooldown:
			if v.Window > maxCooldown {
				maxCooldown = v.Window
			}
		}
		variants = append(variants, v)
	}

	var mastery map[int64]float64
	if needMastery {
		recent, err := e.store.RecentResponses(ctx, in.StudentID, in.SubjectID, historyLimit)
		if err != nil {
			return SelectionContext{}, fmt.Errorf("load response history: %w", err)
		}
		mastery = masteryByTopic(recent)
	}

	if maxCooldown > 0 {
		since := e.now().Add(-maxCooldown)
		blocked, err := e.store.AnsweredItemIDs(ctx, in.StudentID, in.SubjectID, since)
		if err != nil {
			return SelectionContext{}, fmt.Errorf("load cooldown items: %w", err)
		}
		for _, id := range blocked {
			sc.BlockedItems[id] = struct{}{}
		}
	}

	for _, v := range variants {
		switch v := v.(type) {
		case masteryBelow:
			m, ok := mastery[v.TopicID]
			if !ok || m < v.Threshold {
				sc.boost(v.TopicID, v.Weight)
			}
		case thetaBelow:
			theta, ok := in.Abilities.Theta(v.TopicID)
			if !ok || theta < v.Threshold {
				sc.boost(v.TopicID, v.Weight)
			}
		case sessionStage:
			sc.mergeBand(v.Band)
		case blockTopic:
			if in.Snapshot == nil {
				continue
			}
			for _, id := range in.Snapshot.ItemsTagged(v.TopicID) {
				sc.BlockedItems[id] = struct{}{}
			}
		case exposureCooldown:
			// Folded into the single window query above.
		}
	}

	return sc, nil
}

func (e *Evaluator) warnUnknownOnce(r models.SelectionRule) {
	kind := conditionType(r.Condition)
	if _, loaded := e.unknownKinds.LoadOrStore(kind, struct{}{}); loaded {
		return
	}
	logging.Warn().
		Str("condition_type", kind).
		Int64("rule_id", r.ID).
		Str("rule", r.Name).
		Msg("ignoring selection rule with unknown condition type")
}

// masteryByTopic computes mean correctness per topic over at most
// topicWindow of the newest responses for each topic. Input rows arrive
// newest first.
func masteryByTopic(recent []models.TopicResponse) map[int64]float64 {
	counts := make(map[int64]int)
	correct := make(map[int64]int)
	for _, r := range recent {
		if counts[r.TopicID] >= topicWindow {
			continue
		}
		counts[r.TopicID]++
		if r.Correct {
			correct[r.TopicID]++
		}
	}

	out := make(map[int64]float64, len(counts))
	for topicID, n := range counts {
		out[topicID] = float64(correct[topicID]) / float64(n)
	}
	return out
}

// Typed rule variants, one per condition kind.

type masteryBelow struct {
	TopicID   int64
	Threshold float64
	Weight    float64
}

type thetaBelow struct {
	TopicID   int64
	Threshold float64
	Weight    float64
}

type sessionStage struct {
	Band DifficultyBand
}

type exposureCooldown struct {
	Window time.Duration
}

type blockTopic struct {
	TopicID int64
}

// ruleCondition and ruleAction mirror the persisted JSON shapes. Pointer
// fields distinguish absent values so defaults can be applied.
type ruleCondition struct {
	Type        string   `json:"type"`
	TopicID     *int64   `json:"topic_id"`
	Threshold   *float64 `json:"threshold"`
	LTEPosition *int     `json:"lte_position"`
	Days        *int     `json:"days"`
}

type ruleAction struct {
	Type   string   `json:"type"`
	Weight *float64 `json:"weight"`
	BMin   *float64 `json:"b_min"`
	BMax   *float64 `json:"b_max"`
}

// decode narrows a stored rule to its typed variant. Returns (nil, nil)
// for unknown condition types, an error for malformed or inconsistent
// rules.
func decode(r models.SelectionRule) (any, error) {
	var cond ruleCondition
	if err := json.Unmarshal(r.Condition, &cond); err != nil {
		return nil, fmt.Errorf("condition: %w", err)
	}
	var act ruleAction
	if err := json.Unmarshal(r.Action, &act); err != nil {
		return nil, fmt.Errorf("action: %w", err)
	}

	switch cond.Type {
	case KindMasteryBelow:
		if act.Type != ActionBoostTopic {
			return nil, actionMismatch(cond.Type, act.Type)
		}
		if cond.TopicID == nil {
			return nil, errors.New("topic_mastery_below: missing topic_id")
		}
		return masteryBelow{
			TopicID:   *cond.TopicID,
			Threshold: floatOr(cond.Threshold, defaultMasteryThreshold),
			Weight:    floatOr(act.Weight, defaultMasteryWeight),
		}, nil

	case KindThetaBelow:
		if act.Type != ActionBoostTopic {
			return nil, actionMismatch(cond.Type, act.Type)
		}
		if cond.TopicID == nil {
			return nil, errors.New("topic_theta_below: missing topic_id")
		}
		return thetaBelow{
			TopicID:   *cond.TopicID,
			Threshold: floatOr(cond.Threshold, defaultThetaThreshold),
			Weight:    floatOr(act.Weight, defaultThetaWeight),
		}, nil

	case KindSessionStage:
		if act.Type != ActionSetBand {
			return nil, actionMismatch(cond.Type, act.Type)
		}
		lte := intOr(cond.LTEPosition, defaultLTEPosition)
		return sessionStage{
			Band: DifficultyBand{
				BMin:        act.BMin,
				BMax:        act.BMax,
				LTEPosition: &lte,
			},
		}, nil

	case KindCooldown:
		if act.Type != ActionBlockItems {
			return nil, actionMismatch(cond.Type, act.Type)
		}
		days := intOr(cond.Days, defaultCooldownDays)
		if days <= 0 {
			return nil, fmt.Errorf("exposure_cooldown: non-positive days %d", days)
		}
		return exposureCooldown{
			Window: time.Duration(days) * 24 * time.Hour,
		}, nil

	case KindBlockTopic:
		if act.Type != ActionBlockItems {
			return nil, actionMismatch(cond.Type, act.Type)
		}
		if cond.TopicID == nil {
			return nil, errors.New("block_topic: missing topic_id")
		}
		return blockTopic{TopicID: *cond.TopicID}, nil
	}

	return nil, nil
}

// conditionType extracts just the type tag for diagnostics.
func conditionType(raw json.RawMessage) string {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Type == "" {
		return "invalid"
	}
	return probe.Type
}

func actionMismatch(cond, act string) error {
	return fmt.Errorf("condition %q paired with action %q", cond, act)
}

func floatOr(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

func intOr(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}
