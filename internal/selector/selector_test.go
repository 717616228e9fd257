// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package selector

import (
	"context"
	"errors"
	"testing"

	"github.com/opencaliper/caliper/internal/ability"
	"github.com/opencaliper/caliper/internal/catalog"
	"github.com/opencaliper/caliper/internal/irt"
	"github.com/opencaliper/caliper/internal/models"
	"github.com/opencaliper/caliper/internal/rules"
)

func item(id int64) models.Item {
	return models.Item{ID: id, SubjectID: 1, Active: true}
}

func bank(items []models.Item, tags map[int64][]int64, params map[int64]irt.Params) *catalog.Snapshot {
	return catalog.NewSnapshot(1, items, nil, tags, params, nil)
}

func f(v float64) *float64 { return &v }

func TestPickHighestInformation(t *testing.T) {
	// At theta 0 the item with difficulty nearest 0 carries the most
	// information.
	snap := bank(
		[]models.Item{item(1), item(2), item(3)},
		map[int64][]int64{1: {10}, 2: {10}, 3: {10}},
		map[int64]irt.Params{
			1: irt.NewParams(1.0, 2.5, 0),
			2: irt.NewParams(1.0, 0.1, 0),
			3: irt.NewParams(1.0, -2.5, 0),
		},
	)

	choice, err := NewSeeded(1).Pick(context.Background(), Input{
		Snapshot:  snap,
		Abilities: ability.Vector{10: {Theta: 0, SE: 1}},
		AvgTheta:  0,
	})
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	if choice.Item.ID != 2 {
		t.Fatalf("Pick() item = %d, want 2", choice.Item.ID)
	}
	if choice.Fallback {
		t.Fatal("Pick() used fallback, want scored pick")
	}
	if choice.Score <= 0 {
		t.Fatalf("Pick() score = %v, want > 0", choice.Score)
	}
}

func TestPickAppliesTopicBoosts(t *testing.T) {
	// Item 1 (b=0) out-informs item 2 (b=1) at theta 0, but a 1.5x boost
	// on item 2's topic flips the ranking: 0.1966*1.5 > 0.25.
	snap := bank(
		[]models.Item{item(1), item(2)},
		map[int64][]int64{1: {10}, 2: {11}},
		map[int64]irt.Params{
			1: irt.NewParams(1.0, 0, 0),
			2: irt.NewParams(1.0, 1.0, 0),
		},
	)
	in := Input{
		Snapshot:  snap,
		Abilities: ability.Vector{10: {Theta: 0, SE: 1}, 11: {Theta: 0, SE: 1}},
		Context:   rules.SelectionContext{TopicBoosts: map[int64]float64{11: 1.5}},
	}

	choice, err := NewSeeded(1).Pick(context.Background(), in)
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	if choice.Item.ID != 2 {
		t.Fatalf("Pick() item = %d, want boosted item 2", choice.Item.ID)
	}

	in.Context = rules.SelectionContext{}
	choice, err = NewSeeded(1).Pick(context.Background(), in)
	if err != nil {
		t.Fatalf("Pick() without boost error = %v", err)
	}
	if choice.Item.ID != 1 {
		t.Fatalf("Pick() without boost item = %d, want 1", choice.Item.ID)
	}
}

func TestPickSkipsServedAndBlocked(t *testing.T) {
	snap := bank(
		[]models.Item{item(1), item(2), item(3)},
		map[int64][]int64{1: {10}, 2: {10}, 3: {10}},
		map[int64]irt.Params{
			1: irt.NewParams(1.0, 0, 0),
			2: irt.NewParams(1.0, 0, 0),
			3: irt.NewParams(1.0, 2.0, 0),
		},
	)

	choice, err := NewSeeded(1).Pick(context.Background(), Input{
		Snapshot:  snap,
		Abilities: ability.Vector{10: {Theta: 0, SE: 1}},
		Used:      map[int64]struct{}{1: {}},
		Context:   rules.SelectionContext{BlockedItems: map[int64]struct{}{2: {}}},
	})
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	if choice.Item.ID != 3 {
		t.Fatalf("Pick() item = %d, want 3 (1 served, 2 blocked)", choice.Item.ID)
	}
}

func TestPickSkipsInactive(t *testing.T) {
	inactive := item(1)
	inactive.Active = false
	snap := bank(
		[]models.Item{inactive},
		map[int64][]int64{1: {10}},
		map[int64]irt.Params{1: irt.NewParams(1.0, 0, 0)},
	)

	_, err := NewSeeded(1).Pick(context.Background(), Input{Snapshot: snap})
	if !errors.Is(err, ErrNoEligibleItem) {
		t.Fatalf("Pick() error = %v, want ErrNoEligibleItem", err)
	}
}

func TestPickTopicLock(t *testing.T) {
	snap := bank(
		[]models.Item{item(1), item(2)},
		map[int64][]int64{1: {10}, 2: {11}},
		map[int64]irt.Params{
			1: irt.NewParams(1.0, 0, 0),
			2: irt.NewParams(1.0, 2.0, 0),
		},
	)
	abilities := ability.Vector{10: {Theta: 0, SE: 1}, 11: {Theta: 0, SE: 1}}

	lock := int64(11)
	choice, err := NewSeeded(1).Pick(context.Background(), Input{
		Snapshot:  snap,
		Abilities: abilities,
		TopicID:   &lock,
	})
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	if choice.Item.ID != 2 {
		t.Fatalf("Pick() item = %d, want 2 (only item tagged 11)", choice.Item.ID)
	}

	empty := int64(12)
	_, err = NewSeeded(1).Pick(context.Background(), Input{
		Snapshot:  snap,
		Abilities: abilities,
		TopicID:   &empty,
	})
	if !errors.Is(err, ErrNoEligibleItem) {
		t.Fatalf("Pick() with untagged topic error = %v, want ErrNoEligibleItem", err)
	}
}

func TestPickDifficultyBandGatesEarlyPositions(t *testing.T) {
	// Item 1 is the information-optimal pick at theta 0, but the opening
	// band only admits difficulties in [1.5, 3.0] through position 2.
	snap := bank(
		[]models.Item{item(1), item(2)},
		map[int64][]int64{1: {10}, 2: {10}},
		map[int64]irt.Params{
			1: irt.NewParams(1.0, 0, 0),
			2: irt.NewParams(1.0, 2.0, 0),
		},
	)
	lte := 2
	in := Input{
		Snapshot:  snap,
		Abilities: ability.Vector{10: {Theta: 0, SE: 1}},
		Context: rules.SelectionContext{
			Band: &rules.DifficultyBand{BMin: f(1.5), BMax: f(3.0), LTEPosition: &lte},
		},
	}

	for _, pos := range []int{1, 2} {
		in.Position = pos
		choice, err := NewSeeded(1).Pick(context.Background(), in)
		if err != nil {
			t.Fatalf("Pick() position %d error = %v", pos, err)
		}
		if choice.Item.ID != 2 {
			t.Fatalf("Pick() position %d item = %d, want in-band item 2", pos, choice.Item.ID)
		}
	}

	in.Position = 3
	choice, err := NewSeeded(1).Pick(context.Background(), in)
	if err != nil {
		t.Fatalf("Pick() position 3 error = %v", err)
	}
	if choice.Item.ID != 1 {
		t.Fatalf("Pick() position 3 item = %d, want 1 (band expired)", choice.Item.ID)
	}
}

func TestPickTieBreakSeededAndCovering(t *testing.T) {
	// Identical calibrations produce an exact score tie.
	snap := bank(
		[]models.Item{item(1), item(2)},
		map[int64][]int64{1: {10}, 2: {10}},
		map[int64]irt.Params{
			1: irt.NewParams(1.0, 0, 0),
			2: irt.NewParams(1.0, 0, 0),
		},
	)
	in := Input{Snapshot: snap, Abilities: ability.Vector{10: {Theta: 0, SE: 1}}}

	first, err := NewSeeded(42).Pick(context.Background(), in)
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	second, err := NewSeeded(42).Pick(context.Background(), in)
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	if first.Item.ID != second.Item.ID {
		t.Fatalf("same seed picked %d then %d", first.Item.ID, second.Item.ID)
	}

	seen := map[int64]bool{}
	for seed := int64(0); seed < 20; seed++ {
		choice, err := NewSeeded(seed).Pick(context.Background(), in)
		if err != nil {
			t.Fatalf("Pick() seed %d error = %v", seed, err)
		}
		seen[choice.Item.ID] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("tie-break never chose one side: seen = %v", seen)
	}
}

func TestPickFallbackWithoutCalibration(t *testing.T) {
	snap := bank(
		[]models.Item{item(1), item(2)},
		map[int64][]int64{1: {10}, 2: {10}},
		nil,
	)

	choice, err := NewSeeded(1).Pick(context.Background(), Input{Snapshot: snap})
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	if !choice.Fallback {
		t.Fatal("Pick() Fallback = false, want true for uncalibrated pool")
	}
	if choice.Score != 0 {
		t.Fatalf("Pick() fallback score = %v, want 0", choice.Score)
	}
}

func TestPickFallbackIgnoresBand(t *testing.T) {
	// The band admits nothing, so the scored pass comes up empty and the
	// fallback serves the calibrated item anyway.
	snap := bank(
		[]models.Item{item(1)},
		map[int64][]int64{1: {10}},
		map[int64]irt.Params{1: irt.NewParams(1.0, 0, 0)},
	)

	choice, err := NewSeeded(1).Pick(context.Background(), Input{
		Snapshot:  snap,
		Abilities: ability.Vector{10: {Theta: 0, SE: 1}},
		Context: rules.SelectionContext{
			Band: &rules.DifficultyBand{BMin: f(1.5), BMax: f(3.0)},
		},
		Position: 1,
	})
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	if !choice.Fallback {
		t.Fatal("Pick() Fallback = false, want true when band excludes the pool")
	}
	if choice.Item.ID != 1 {
		t.Fatalf("Pick() item = %d, want 1", choice.Item.ID)
	}
}

func TestPickUsesAvgThetaForUnknownTopics(t *testing.T) {
	// Both items sit at difficulty 2. Item 1's topic has no estimate, so
	// it is scored at AvgTheta 2.0 and out-informs item 2, whose topic
	// estimate is far below the difficulty.
	snap := bank(
		[]models.Item{item(1), item(2)},
		map[int64][]int64{1: {99}, 2: {10}},
		map[int64]irt.Params{
			1: irt.NewParams(1.0, 2.0, 0),
			2: irt.NewParams(1.0, 2.0, 0),
		},
	)

	choice, err := NewSeeded(1).Pick(context.Background(), Input{
		Snapshot:  snap,
		Abilities: ability.Vector{10: {Theta: -2.0, SE: 1}},
		AvgTheta:  2.0,
	})
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	if choice.Item.ID != 1 {
		t.Fatalf("Pick() item = %d, want 1 (scored at AvgTheta)", choice.Item.ID)
	}
}

func TestPickExhaustedPool(t *testing.T) {
	snap := bank(
		[]models.Item{item(1)},
		map[int64][]int64{1: {10}},
		map[int64]irt.Params{1: irt.NewParams(1.0, 0, 0)},
	)

	_, err := NewSeeded(1).Pick(context.Background(), Input{
		Snapshot: snap,
		Used:     map[int64]struct{}{1: {}},
	})
	if !errors.Is(err, ErrNoEligibleItem) {
		t.Fatalf("Pick() error = %v, want ErrNoEligibleItem", err)
	}

	_, err = NewSeeded(1).Pick(context.Background(), Input{Snapshot: nil})
	if !errors.Is(err, ErrNoEligibleItem) {
		t.Fatalf("Pick() nil snapshot error = %v, want ErrNoEligibleItem", err)
	}
}

func TestPickHonorsContextCancellation(t *testing.T) {
	snap := bank(
		[]models.Item{item(1)},
		map[int64][]int64{1: {10}},
		map[int64]irt.Params{1: irt.NewParams(1.0, 0, 0)},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSeeded(1).Pick(ctx, Input{Snapshot: snap})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Pick() error = %v, want context.Canceled", err)
	}
}
