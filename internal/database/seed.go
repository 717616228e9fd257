// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package database

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/opencaliper/caliper/internal/logging"
	"github.com/opencaliper/caliper/internal/models"
)

// seedQuestion is one demo item: a stem, the correct answer, and three
// distractors.
type seedQuestion struct {
	stem    string
	correct string
	wrong   [3]string
}

// Seed populates an empty database with a small demo bank: one subject,
// five topics, calibrated multiple-choice items, and three selection
// rules. It is deterministic (fixed RNG seed) and idempotent: a database
// that already has subjects is left untouched.
func (db *DB) Seed(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var existing int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM subjects`).Scan(&existing); err != nil {
		return fmt.Errorf("failed to check existing subjects: %w", err)
	}
	if existing > 0 {
		logging.Debug().Msg("Seed skipped, database already has subjects")
		return nil
	}

	logging.Info().Msg("Seeding demo item bank")

	subjectID, err := db.UpsertSubject(ctx, "Mathematics")
	if err != nil {
		return err
	}

	bank := map[string][]seedQuestion{
		"Fractions": {
			{"What is 1/2 + 1/4?", "3/4", [3]string{"2/6", "1/6", "2/4"}},
			{"Simplify 6/8 to lowest terms.", "3/4", [3]string{"2/3", "6/8", "4/6"}},
			{"What is 2/3 of 18?", "12", [3]string{"9", "6", "15"}},
			{"Which fraction is largest?", "5/6", [3]string{"3/4", "2/3", "7/12"}},
			{"What is 3/5 divided by 1/5?", "3", [3]string{"3/25", "1/3", "15"}},
			{"Convert 7/4 to a mixed number.", "1 3/4", [3]string{"1 1/4", "2 1/4", "3 1/7"}},
		},
		"Decimals": {
			{"What is 0.25 + 0.5?", "0.75", [3]string{"0.30", "0.55", "0.70"}},
			{"Round 3.456 to one decimal place.", "3.5", [3]string{"3.4", "3.46", "3.0"}},
			{"What is 0.2 multiplied by 0.4?", "0.08", [3]string{"0.8", "0.6", "0.008"}},
			{"Which decimal equals 3/8?", "0.375", [3]string{"0.38", "0.35", "0.125"}},
			{"What is 1.2 divided by 0.3?", "4", [3]string{"0.4", "3.6", "40"}},
			{"Order from smallest: 0.3, 0.09, 0.25", "0.09, 0.25, 0.3", [3]string{"0.3, 0.25, 0.09", "0.09, 0.3, 0.25", "0.25, 0.09, 0.3"}},
		},
		"Percentages": {
			{"What is 20% of 150?", "30", [3]string{"20", "25", "35"}},
			{"A price rises from 80 to 100. What is the increase in percent?", "25%", [3]string{"20%", "80%", "125%"}},
			{"Express 0.65 as a percentage.", "65%", [3]string{"6.5%", "0.65%", "650%"}},
			{"30 is what percent of 120?", "25%", [3]string{"30%", "40%", "20%"}},
			{"A jacket costs 60 after a 25% discount. What was the original price?", "80", [3]string{"75", "85", "45"}},
			{"What is 15% of 15% of 400?", "9", [3]string{"60", "30", "90"}},
		},
		"Linear Equations": {
			{"Solve for x: 2x + 3 = 11", "4", [3]string{"7", "3", "5.5"}},
			{"Solve for x: 5x - 7 = 3x + 5", "6", [3]string{"1", "-6", "12"}},
			{"What is the slope of y = 3x - 2?", "3", [3]string{"-2", "2", "1/3"}},
			{"Solve for x: x/4 + 2 = 7", "20", [3]string{"5", "36", "1.25"}},
			{"Which point lies on the line y = 2x + 1?", "(2, 5)", [3]string{"(1, 2)", "(5, 2)", "(2, 4)"}},
			{"Solve the system: x + y = 10, x - y = 4. What is x?", "7", [3]string{"3", "6", "14"}},
		},
		"Geometry": {
			{"What is the area of a rectangle 6 by 4?", "24", [3]string{"20", "10", "48"}},
			{"How many degrees in the angles of a triangle?", "180", [3]string{"360", "90", "270"}},
			{"What is the circumference of a circle with radius 5? (use pi)", "10π", [3]string{"5π", "25π", "100π"}},
			{"A right triangle has legs 3 and 4. What is the hypotenuse?", "5", [3]string{"7", "6", "12"}},
			{"What is the volume of a cube with side 3?", "27", [3]string{"9", "18", "81"}},
			{"What is the area of a triangle with base 10 and height 6?", "30", [3]string{"60", "16", "26"}},
		},
	}

	// Fixed seed keeps the demo calibration identical across installs.
	rng := rand.New(rand.NewSource(42))

	topicOrder := []string{"Fractions", "Decimals", "Percentages", "Linear Equations", "Geometry"}
	topicIDs := make(map[string]int64, len(topicOrder))
	for _, name := range topicOrder {
		id, err := db.UpsertTopic(ctx, subjectID, name)
		if err != nil {
			return err
		}
		topicIDs[name] = id
	}

	items := 0
	for _, topicName := range topicOrder {
		for i, q := range bank[topicName] {
			bundle := &ItemBundle{
				SubjectID:  subjectID,
				Stem:       q.stem,
				TimeAvgSec: 45 + rng.Intn(60),
				Active:     true,
				TopicIDs:   []int64{topicIDs[topicName]},
				Options:    shuffledOptions(rng, q),
			}

			// Spread difficulty across the topic; leave every sixth item
			// uncalibrated to exercise the selector's random fallback.
			if i%6 != 5 {
				a := 0.8 + rng.Float64()*0.8
				b := -2.0 + float64(i)*0.8 + rng.Float64()*0.4
				c := 0.2 + rng.Float64()*0.05
				bundle.IRT = &models.ItemIRT{A: &a, B: &b, C: &c}
				bundle.DifficultyTag = tagForDifficulty(b)
			} else {
				bundle.DifficultyTag = "medium"
			}

			if _, err := db.InsertItemBundle(ctx, bundle); err != nil {
				return err
			}
			items++
		}
	}

	rules := []struct {
		name      string
		condition string
		action    string
	}{
		{
			"boost weak topics",
			`{"type": "topic_theta_below", "topic_id": ` + fmt.Sprint(topicIDs["Fractions"]) + `, "threshold": 0.0}`,
			`{"type": "boost_topic_probability", "weight": 1.5}`,
		},
		{
			"gentle opening window",
			`{"type": "session_stage", "lte_position": 3}`,
			`{"type": "set_difficulty_range", "b_min": -1.5, "b_max": 1.0}`,
		},
		{
			"one week exposure cooldown",
			`{"type": "exposure_cooldown", "days": 7}`,
			`{"type": "block_items"}`,
		},
	}
	for _, r := range rules {
		if _, err := db.InsertRule(ctx, r.name, r.condition, r.action, true); err != nil {
			return err
		}
	}

	logging.Info().
		Int("items", items).
		Int("topics", len(topicOrder)).
		Int("rules", len(rules)).
		Msg("Demo item bank seeded")

	return nil
}

// shuffledOptions lays the correct answer and distractors out under
// shuffled A-D labels.
func shuffledOptions(rng *rand.Rand, q seedQuestion) []models.ItemOption {
	bodies := []string{q.correct, q.wrong[0], q.wrong[1], q.wrong[2]}
	correct := []bool{true, false, false, false}
	rng.Shuffle(len(bodies), func(i, j int) {
		bodies[i], bodies[j] = bodies[j], bodies[i]
		correct[i], correct[j] = correct[j], correct[i]
	})

	labels := []string{"A", "B", "C", "D"}
	options := make([]models.ItemOption, len(bodies))
	for i := range bodies {
		options[i] = models.ItemOption{Label: labels[i], Body: bodies[i], Correct: correct[i]}
	}
	return options
}

// tagForDifficulty maps a calibrated b onto the coarse authoring tag.
func tagForDifficulty(b float64) string {
	switch {
	case b < -0.5:
		return "easy"
	case b < 1.0:
		return "medium"
	default:
		return "hard"
	}
}
