// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

// Package selector chooses the next item for an adaptive session: the
// candidate maximising Fisher information at the student's estimated
// ability, weighted by rule boosts, under exposure, topic, and
// difficulty-band constraints. Tie-break randomness is the only
// stochastic element; everything else is deterministic in the inputs.
package selector

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/opencaliper/caliper/internal/ability"
	"github.com/opencaliper/caliper/internal/catalog"
	"github.com/opencaliper/caliper/internal/irt"
	"github.com/opencaliper/caliper/internal/models"
	"github.com/opencaliper/caliper/internal/rules"
)

// ErrNoEligibleItem means neither information scoring nor the random
// fallback found a servable item.
var ErrNoEligibleItem = errors.New("no eligible item")

// tieEpsilon bounds the score distance within which candidates count as
// tied and are picked among uniformly at random.
const tieEpsilon = 1e-9

// Input is everything one selection decision depends on.
type Input struct {
	// Snapshot is the subject's item bank.
	Snapshot *catalog.Snapshot

	// Abilities is the student's per-topic estimate vector; AvgTheta is
	// its mean, used for items whose topics carry no estimates.
	Abilities ability.Vector
	AvgTheta  float64

	// Context carries the active rule effects.
	Context rules.SelectionContext

	// Used holds items already served in this session.
	Used map[int64]struct{}

	// TopicID locks selection to items tagged with the topic, when set.
	TopicID *int64

	// Position is the 1-based slot being filled; the difficulty band is
	// gated on it. Zero means unknown and keeps an active band applied.
	Position int
}

// Choice is a selected item. Score is the winning info-times-boost value;
// Fallback marks a pick made by the uniform no-calibration fallback,
// where Score is meaningless.
type Choice struct {
	Item     models.Item
	Score    float64
	Fallback bool
}

// Selector picks items. The embedded RNG is used only to break score
// ties (and for the uniform fallback); constructing with a fixed seed
// makes every pick reproducible. Safe for concurrent use.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Selector seeded from the clock.
func New() *Selector {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded creates a Selector with a deterministic tie-break sequence.
func NewSeeded(seed int64) *Selector {
	return &Selector{rng: rand.New(rand.NewSource(seed))}
}

// Pick returns the next item for the session, or ErrNoEligibleItem when
// the pool is exhausted under the given constraints.
//
// Candidates are filtered in one pass: active, unserved, unblocked, and
// tagged with the session topic when one is locked. Candidates inside
// the difficulty band (when active at this position) and carrying a
// complete calibration are scored by Fisher information at the per-item
// theta times the product of topic boosts; scores within tieEpsilon of
// the maximum form the tie set. When nothing scores, the fallback picks
// uniformly among all filtered candidates, ignoring calibration and the
// band entirely.
func (s *Selector) Pick(ctx context.Context, in Input) (*Choice, error) {
	if in.Snapshot == nil {
		return nil, ErrNoEligibleItem
	}

	band := in.Context.Band
	bandActive := band.AppliesAt(in.Position)

	best := -1.0
	var tied []models.Item
	var fallback []models.Item

	for _, item := range in.Snapshot.Items() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !item.Active {
			continue
		}
		if _, served := in.Used[item.ID]; served {
			continue
		}
		if in.Context.Blocked(item.ID) {
			continue
		}

		topics := in.Snapshot.TopicIDs(item.ID)
		if in.TopicID != nil && !hasTopic(topics, *in.TopicID) {
			continue
		}

		// Past this point the item is servable by the fallback even if
		// it never scores.
		fallback = append(fallback, item)

		params := in.Snapshot.Params(item.ID)
		if bandActive && !band.Admits(params.B) {
			continue
		}
		if !params.Complete() {
			continue
		}

		theta := in.AvgTheta
		if mean, ok := in.Abilities.MeanTheta(topics); ok {
			theta = mean
		}

		info := irt.Information(theta, params)
		if info <= 0 {
			continue
		}

		score := info
		for _, topicID := range topics {
			score *= in.Context.Boost(topicID)
		}

		switch {
		case score > best+tieEpsilon:
			best = score
			tied = append(tied[:0], item)
		case math.Abs(score-best) <= tieEpsilon:
			tied = append(tied, item)
		}
	}

	if len(tied) > 0 {
		return &Choice{Item: tied[s.intn(len(tied))], Score: best}, nil
	}
	if len(fallback) > 0 {
		return &Choice{Item: fallback[s.intn(len(fallback))], Fallback: true}, nil
	}
	return nil, ErrNoEligibleItem
}

func (s *Selector) intn(n int) int {
	if n <= 1 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

func hasTopic(topics []int64, want int64) bool {
	for _, id := range topics {
		if id == want {
			return true
		}
	}
	return false
}
