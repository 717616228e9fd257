// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package ability

import (
	"math"
	"testing"

	"github.com/opencaliper/caliper/internal/irt"
	"github.com/opencaliper/caliper/internal/models"
)

func TestFromProfiles(t *testing.T) {
	v := FromProfiles([]models.AbilityProfile{
		{TopicID: 1, Theta: 0.5, SE: 0.4},
		{TopicID: 2, Theta: -1.2, SE: 0.9},
	})

	if len(v) != 2 {
		t.Fatalf("len = %d, want 2", len(v))
	}
	if got := v.Estimate(1); got.Theta != 0.5 || got.SE != 0.4 {
		t.Errorf("Estimate(1) = %+v, want {0.5 0.4}", got)
	}
}

func TestEstimateDefault(t *testing.T) {
	v := Vector{}

	got := v.Estimate(42)
	if got.Theta != 0.0 || got.SE != 1.0 {
		t.Errorf("Estimate(42) = %+v, want default {0 1}", got)
	}
}

func TestTheta(t *testing.T) {
	v := Vector{7: {Theta: -0.3, SE: 0.5}}

	if theta, ok := v.Theta(7); !ok || theta != -0.3 {
		t.Errorf("Theta(7) = %v, %v, want -0.3, true", theta, ok)
	}
	if _, ok := v.Theta(8); ok {
		t.Error("Theta(8) present, want absent")
	}
}

func TestMean(t *testing.T) {
	tests := []struct {
		name string
		v    Vector
		want float64
	}{
		{name: "empty", v: Vector{}, want: 0.0},
		{name: "single", v: Vector{1: {Theta: 0.8}}, want: 0.8},
		{
			name: "several",
			v:    Vector{1: {Theta: 1.0}, 2: {Theta: -0.5}, 3: {Theta: 0.4}},
			want: 0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Mean(); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Mean() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMeanTheta(t *testing.T) {
	v := Vector{1: {Theta: 1.0}, 2: {Theta: 0.0}}

	got, ok := v.MeanTheta([]int64{1, 2, 99})
	if !ok || math.Abs(got-0.5) > 1e-12 {
		t.Errorf("MeanTheta = %v, %v, want 0.5, true (absent topics skipped)", got, ok)
	}

	if _, ok := v.MeanTheta([]int64{98, 99}); ok {
		t.Error("MeanTheta over absent topics reported ok, want false")
	}
	if _, ok := v.MeanTheta(nil); ok {
		t.Error("MeanTheta over no topics reported ok, want false")
	}
}

func TestMeanSE(t *testing.T) {
	v := Vector{1: {SE: 0.2}, 2: {SE: 0.4}}

	got, ok := v.MeanSE([]int64{1, 2})
	if !ok || math.Abs(got-0.3) > 1e-12 {
		t.Errorf("MeanSE = %v, %v, want 0.3, true", got, ok)
	}

	// Missing entries count as the default SE of 1.
	got, ok = v.MeanSE([]int64{1, 99})
	if !ok || math.Abs(got-0.6) > 1e-12 {
		t.Errorf("MeanSE with absent topic = %v, %v, want 0.6, true", got, ok)
	}

	if _, ok := v.MeanSE(nil); ok {
		t.Error("MeanSE over no topics reported ok, want false")
	}
}

func TestClone(t *testing.T) {
	v := Vector{1: {Theta: 0.5, SE: 0.4}}

	c := v.Clone()
	c[1] = irt.Estimate{Theta: 9.0, SE: 9.0}
	c[2] = irt.Estimate{}

	if v[1].Theta != 0.5 || len(v) != 1 {
		t.Errorf("Clone mutation leaked into original: %+v", v)
	}
}

func TestUpdates(t *testing.T) {
	v := Vector{1: {Theta: 0.0, SE: 1.0}}
	resp := irt.Response{Correct: true, Params: irt.NewParams(1.0, 0.0, 0.25)}

	got := Updates(v, []int64{1, 2}, resp, irt.DefaultConfig())
	if len(got) != 2 {
		t.Fatalf("len(Updates) = %d, want 2", len(got))
	}

	// Topic 1 updates from its stored prior, topic 2 from the default
	// prior; both start at theta 0 so the estimates coincide.
	if got[1] != got[2] {
		t.Errorf("updates diverged: topic1 %+v, topic2 %+v", got[1], got[2])
	}
	if got[1].Theta <= 0.0 {
		t.Errorf("correct answer: Theta = %v, want > 0", got[1].Theta)
	}
	if got[1].SE >= 1.0 {
		t.Errorf("SE = %v, want < 1", got[1].SE)
	}
}

func TestUpdatesUsesStoredPrior(t *testing.T) {
	v := Vector{1: {Theta: 2.0, SE: 0.5}, 2: {Theta: -2.0, SE: 0.5}}
	resp := irt.Response{Correct: true, Params: irt.NewParams(1.0, 0.0, 0.2)}

	got := Updates(v, []int64{1, 2}, resp, irt.DefaultConfig())
	if got[1].Theta <= got[2].Theta {
		t.Errorf("high prior ended below low prior: %v <= %v", got[1].Theta, got[2].Theta)
	}
}

func TestUpdatesNeverLowerOnCorrect(t *testing.T) {
	// A strong student answering an easy item correctly must not lose
	// theta to the prior.
	v := Vector{1: {Theta: 3.0, SE: 0.4}}
	resp := irt.Response{Correct: true, Params: irt.NewParams(1.0, -1.0, 0.25)}

	got := Updates(v, []int64{1}, resp, irt.DefaultConfig())
	if got[1].Theta < 3.0 {
		t.Errorf("correct answer lowered theta: %v < 3.0", got[1].Theta)
	}
}

func TestUpdatesSkipsUncalibratedItems(t *testing.T) {
	v := Vector{1: {Theta: 0.0, SE: 1.0}}
	resp := irt.Response{Correct: true, Params: irt.Params{A: f(1.0)}}

	if got := Updates(v, []int64{1}, resp, irt.DefaultConfig()); got != nil {
		t.Errorf("Updates = %v, want nil for incomplete calibration", got)
	}
}

func f(v float64) *float64 { return &v }
