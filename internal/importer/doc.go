// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

// Package importer loads item banks from JSONL streams.
//
// Each input line is one JSON object describing an item with its
// options, topic tags, and optional 3PL calibration:
//
//	{"stem": "Solve 2x + 3 = 7 for x.",
//	 "subject": "Mathematics",
//	 "topics": ["Linear equations"],
//	 "options": [{"label": "A", "body": "x = 2", "correct": true},
//	             {"label": "B", "body": "x = 5"}],
//	 "irt": {"a": 1.2, "b": -0.3, "c": 0.2},
//	 "difficulty_tag": "easy",
//	 "time_avg_sec": 45}
//
// Subjects and topics are created on first reference, so a bank can be
// loaded into an empty database in one pass. Items without an "irt"
// block are stored uncalibrated and reach students only through the
// selector's uniform fallback.
//
// # Validation
//
// Records are validated twice: struct tags (internal/validation) check
// field shapes and ranges, then a semantic pass checks what tags
// cannot, such as exactly one option being marked correct. A failing
// record is skipped and reported with its line number; it never aborts
// the run. Storage failures do abort, returning the partial report.
//
// # Rate Limiting
//
// Inserts are paced with golang.org/x/time/rate so a bulk import
// cannot starve live session traffic of database time. The rate and
// burst come from the import config.
//
// # Example Usage
//
//	imp := importer.New(db, catalogManager, cfg.Import)
//
//	report, err := imp.Import(ctx, file)
//	if err != nil {
//	    log.Error().Err(err).Msg("Import aborted")
//	}
//	log.Info().Int("imported", report.Imported).Int("skipped", report.Skipped).Msg("Done")
package importer
