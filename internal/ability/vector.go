// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

// Package ability models a student's per-topic ability vector and the
// update semantics applied after each answer. Persistence of the vector
// lives in the database layer; everything here is pure.
package ability

import (
	"github.com/opencaliper/caliper/internal/irt"
	"github.com/opencaliper/caliper/internal/models"
)

// Vector maps topic ID to the student's current ability estimate for that
// topic within one subject.
type Vector map[int64]irt.Estimate

// DefaultEstimate is the prior for a topic with no recorded answers:
// theta 0 with unit uncertainty.
func DefaultEstimate() irt.Estimate {
	return irt.Estimate{Theta: 0.0, SE: 1.0}
}

// FromProfiles builds a vector from stored ability profiles.
func FromProfiles(profiles []models.AbilityProfile) Vector {
	v := make(Vector, len(profiles))
	for _, p := range profiles {
		v[p.TopicID] = irt.Estimate{Theta: p.Theta, SE: p.SE}
	}
	return v
}

// Estimate returns the entry for a topic, or the default prior when the
// topic has never been touched.
func (v Vector) Estimate(topicID int64) irt.Estimate {
	if est, ok := v[topicID]; ok {
		return est
	}
	return DefaultEstimate()
}

// Theta returns the ability entry for a topic and whether it exists.
// Selection rules treat a missing entry differently from a low one.
func (v Vector) Theta(topicID int64) (float64, bool) {
	est, ok := v[topicID]
	return est.Theta, ok
}

// Mean returns the average theta across all entries. An empty vector
// averages to 0, the prior mean.
func (v Vector) Mean() float64 {
	if len(v) == 0 {
		return 0.0
	}
	var sum float64
	for _, est := range v {
		sum += est.Theta
	}
	return sum / float64(len(v))
}

// MeanTheta returns the average theta across the given topics, skipping
// topics with no entry. The second return is false when none of the topics
// has an entry.
func (v Vector) MeanTheta(topicIDs []int64) (float64, bool) {
	var sum float64
	var n int
	for _, id := range topicIDs {
		if est, ok := v[id]; ok {
			sum += est.Theta
			n++
		}
	}
	if n == 0 {
		return 0.0, false
	}
	return sum / float64(n), true
}

// MeanSE returns the average standard error across the given topics, with
// missing entries counting as the default SE of 1. The second return is
// false when topicIDs is empty, in which case no precision statement can
// be made.
func (v Vector) MeanSE(topicIDs []int64) (float64, bool) {
	if len(topicIDs) == 0 {
		return 0.0, false
	}
	var sum float64
	for _, id := range topicIDs {
		sum += v.Estimate(id).SE
	}
	return sum / float64(len(topicIDs)), true
}

// Clone returns an independent copy of the vector.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for id, est := range v {
		out[id] = est
	}
	return out
}

// Updates computes the per-topic re-estimates produced by one scored
// answer. Each tagged topic's theta is updated independently using the
// single new response, with the prior re-centered on that topic's current
// estimate so one answer moves theta in the direction of the evidence.
// Items without a complete IRT calibration produce no updates at all.
func Updates(v Vector, topicIDs []int64, resp irt.Response, cfg irt.Config) map[int64]irt.Estimate {
	if !resp.Params.Complete() {
		return nil
	}

	out := make(map[int64]irt.Estimate, len(topicIDs))
	for _, topicID := range topicIDs {
		prior := v.Estimate(topicID)
		topicCfg := cfg
		topicCfg.PriorMean = prior.Theta
		out[topicID] = irt.NewtonUpdate(prior.Theta, []irt.Response{resp}, topicCfg)
	}
	return out
}
