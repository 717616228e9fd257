// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

// Package session drives test sessions end to end: starting adaptive and
// fixed runs, grading answers, updating ability estimates, deciding when
// to stop, and emitting the event stream other components consume.
//
// Every failure the package returns is wrapped in *Error; transports map
// Kind to a status code and never inspect messages. All session writes
// happen under the per-session lock held by the storage layer, so two
// concurrent answers to one session serialize and the loser fails the
// served-item check instead of double grading.
package session

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opencaliper/caliper/internal/ability"
	"github.com/opencaliper/caliper/internal/catalog"
	"github.com/opencaliper/caliper/internal/config"
	"github.com/opencaliper/caliper/internal/database"
	"github.com/opencaliper/caliper/internal/events"
	"github.com/opencaliper/caliper/internal/irt"
	"github.com/opencaliper/caliper/internal/logging"
	"github.com/opencaliper/caliper/internal/metrics"
	"github.com/opencaliper/caliper/internal/models"
	"github.com/opencaliper/caliper/internal/rules"
	"github.com/opencaliper/caliper/internal/selector"
)

// Store is the storage surface the controller needs. *database.DB
// implements it; tests may wrap it to inject failures.
type Store interface {
	CreateSession(ctx context.Context, s *models.Session, served []models.SessionItem) error
	Session(ctx context.Context, id uuid.UUID) (*models.Session, error)
	SessionItems(ctx context.Context, sessionID uuid.UUID) ([]models.SessionItem, error)
	ServedItemIDs(ctx context.Context, sessionID uuid.UUID) (map[int64]struct{}, error)
	ServedItem(ctx context.Context, sessionID uuid.UUID, itemID int64) (*database.ServedItemRow, error)
	ServedCount(ctx context.Context, sessionID uuid.UUID) (int, error)
	AnsweredCount(ctx context.Context, sessionID uuid.UUID) (int, error)
	RecordAnswer(ctx context.Context, w *database.AnswerWrite) error
	SubmitFixed(ctx context.Context, sub *database.FixedSubmission) error
	AbilityProfiles(ctx context.Context, studentID, subjectID int64) ([]models.AbilityProfile, error)
	SampleItemIDs(ctx context.Context, subjectID int64, difficultyTag string, n int) ([]int64, error)
	SubjectExists(ctx context.Context, subjectID int64) (bool, error)
	TopicInSubject(ctx context.Context, topicID, subjectID int64) (bool, error)
	LockSession(sessionID string) func()
	ReleaseSessionLock(sessionID string)
}

// Catalog supplies item-bank snapshots. *catalog.Manager implements it.
type Catalog interface {
	Get(ctx context.Context, subjectID int64) (*catalog.Snapshot, error)
}

// Publisher receives session events. *events.Bus implements it. Publish
// failures are logged and never fail the operation that produced them.
type Publisher interface {
	Publish(ctx context.Context, ev events.SessionEvent) error
}

// Controller owns session lifecycle logic. Construct with NewController;
// the zero value is not usable. Safe for concurrent use.
type Controller struct {
	store    Store
	catalog  Catalog
	rules    *rules.Evaluator
	selector *selector.Selector
	events   Publisher
	cfg      config.EngineConfig
	log      zerolog.Logger
	now      func() time.Time
}

// NewController wires a controller. Zero engine-config fields fall back
// to the shipped defaults so partially built configs stay usable.
func NewController(store Store, cat Catalog, eval *rules.Evaluator, sel *selector.Selector, pub Publisher, cfg config.EngineConfig) *Controller {
	return &Controller{
		store:    store,
		catalog:  cat,
		rules:    eval,
		selector: sel,
		events:   pub,
		cfg:      normalizeEngine(cfg),
		log:      logging.With().Str("component", "session").Logger(),
		now:      time.Now,
	}
}

func normalizeEngine(cfg config.EngineConfig) config.EngineConfig {
	def := config.DefaultConfig().Engine
	if cfg.IRT.PriorVar <= 0 {
		cfg.IRT.PriorVar = def.IRT.PriorVar
	}
	if cfg.IRT.MaxIterations <= 0 {
		cfg.IRT.MaxIterations = def.IRT.MaxIterations
	}
	if cfg.IRT.Tolerance <= 0 {
		cfg.IRT.Tolerance = def.IRT.Tolerance
	}
	if cfg.Session.SEThreshold <= 0 {
		cfg.Session.SEThreshold = def.Session.SEThreshold
	}
	if cfg.Session.DefaultTargetItems <= 0 {
		cfg.Session.DefaultTargetItems = def.Session.DefaultTargetItems
	}
	if cfg.Session.MaxTargetItems < cfg.Session.DefaultTargetItems {
		cfg.Session.MaxTargetItems = def.Session.MaxTargetItems
	}
	return cfg
}

// TopicEstimate is one entry of a student's ability vector as reported
// to clients, ordered by topic.
type TopicEstimate struct {
	TopicID int64   `json:"topic_id"`
	Theta   float64 `json:"theta"`
	SE      float64 `json:"se"`
}

func (c *Controller) irtConfig() irt.Config {
	return irt.Config{
		PriorVar:      c.cfg.IRT.PriorVar,
		MaxIterations: c.cfg.IRT.MaxIterations,
		Tolerance:     c.cfg.IRT.Tolerance,
	}
}

func (c *Controller) snapshot(ctx context.Context, subjectID int64) (*catalog.Snapshot, error) {
	snap, err := c.catalog.Get(ctx, subjectID)
	if err != nil {
		return nil, wrapError(err, "failed to load catalogue for subject %d", subjectID)
	}
	return snap, nil
}

func (c *Controller) abilities(ctx context.Context, studentID, subjectID int64) (ability.Vector, error) {
	profiles, err := c.store.AbilityProfiles(ctx, studentID, subjectID)
	if err != nil {
		return nil, wrapError(err, "failed to load ability profiles for student %d", studentID)
	}
	return ability.FromProfiles(profiles), nil
}

// pick runs one selection and records its duration. ErrNoEligibleItem
// passes through untouched for the caller to interpret.
func (c *Controller) pick(ctx context.Context, in selector.Input) (*selector.Choice, error) {
	start := time.Now()
	choice, err := c.selector.Pick(ctx, in)
	if err != nil {
		return nil, err
	}
	metrics.ObserveSelection(start, choice.Fallback)
	return choice, nil
}

func (c *Controller) publish(ctx context.Context, ev events.SessionEvent) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(ctx, ev); err != nil {
		c.log.Warn().Err(err).
			Str("event_type", string(ev.Type)).
			Str("session_id", ev.SessionID.String()).
			Msg("Failed to publish session event")
	}
}

// servedProjection builds the client view of an item from the snapshot.
// Returns nil when the snapshot no longer carries the item.
func servedProjection(snap *catalog.Snapshot, itemID int64) *models.ServedItem {
	item, ok := snap.Item(itemID)
	if !ok {
		return nil
	}
	options := snap.OptionsFor(itemID)
	served := &models.ServedItem{
		ID:            item.ID,
		Stem:          item.Stem,
		DifficultyTag: item.DifficultyTag,
		TimeAvgSec:    item.TimeAvgSec,
		Options:       make([]models.ServedItemOption, 0, len(options)),
	}
	for _, opt := range options {
		served.Options = append(served.Options, models.ServedItemOption{
			ID:    opt.ID,
			Label: opt.Label,
			Body:  opt.Body,
		})
	}
	return served
}

// estimates flattens an ability vector for client responses, ordered by
// topic so output is stable.
func estimates(vec ability.Vector) []TopicEstimate {
	out := make([]TopicEstimate, 0, len(vec))
	for topicID, est := range vec {
		out = append(out, TopicEstimate{TopicID: topicID, Theta: est.Theta, SE: est.SE})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TopicID < out[j].TopicID })
	return out
}

// topicAbilities converts ability updates into event payload entries,
// ordered by topic.
func topicAbilities(updates map[int64]irt.Estimate) []events.TopicAbility {
	out := make([]events.TopicAbility, 0, len(updates))
	for topicID, est := range updates {
		out = append(out, events.TopicAbility{TopicID: topicID, Theta: est.Theta, SE: est.SE})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TopicID < out[j].TopicID })
	return out
}
