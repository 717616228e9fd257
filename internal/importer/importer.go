// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package importer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/opencaliper/caliper/internal/config"
	"github.com/opencaliper/caliper/internal/database"
	"github.com/opencaliper/caliper/internal/logging"
	"github.com/opencaliper/caliper/internal/metrics"
	"github.com/opencaliper/caliper/internal/validation"
)

// maxLineBytes caps a single JSONL record.
const maxLineBytes = 1 << 20

// Store is the storage surface the importer writes through.
type Store interface {
	UpsertSubject(ctx context.Context, name string) (int64, error)
	UpsertTopic(ctx context.Context, subjectID int64, name string) (int64, error)
	InsertItemBundle(ctx context.Context, b *database.ItemBundle) (int64, error)
}

// Invalidator drops cached catalogue snapshots once their subject's
// item bank has changed.
type Invalidator interface {
	Invalidate(subjectID int64)
}

// Report summarizes one import run.
type Report struct {
	Total    int           `json:"total"`
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []RecordError `json:"errors,omitempty"`
}

// RecordError pinpoints one rejected line. Only the first MaxErrors
// failures carry detail; Skipped counts all of them.
type RecordError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// Importer streams JSONL item records into the item bank.
type Importer struct {
	store   Store
	catalog Invalidator
	cfg     config.ImportConfig
	limiter *rate.Limiter
	log     zerolog.Logger
}

// New creates an importer. Zero config fields fall back to the
// defaults, so tests can pass a partial config.
func New(store Store, catalog Invalidator, cfg config.ImportConfig) *Importer {
	def := config.DefaultConfig().Import
	if cfg.RecordsPerSecond <= 0 {
		cfg.RecordsPerSecond = def.RecordsPerSecond
	}
	if cfg.Burst < 1 {
		cfg.Burst = def.Burst
	}
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = def.MaxErrors
	}

	return &Importer{
		store:   store,
		catalog: catalog,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RecordsPerSecond), cfg.Burst),
		log:     logging.With().Str("component", "importer").Logger(),
	}
}

type topicKey struct {
	subjectID int64
	name      string
}

// Import reads JSONL records from r until EOF. Records that fail to
// parse or validate are skipped and reported; a storage failure aborts
// the run with the partial report. Blank lines are ignored. Affected
// subjects have their catalogue snapshots invalidated even on abort,
// since earlier lines have already been inserted.
func (imp *Importer) Import(ctx context.Context, r io.Reader) (*Report, error) {
	start := time.Now()
	report := &Report{}
	subjects := make(map[string]int64)
	topics := make(map[topicKey]int64)
	touched := make(map[int64]struct{})

	defer func() {
		for subjectID := range touched {
			imp.catalog.Invalidate(subjectID)
		}
	}()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		report.Total++

		if err := imp.limiter.Wait(ctx); err != nil {
			return report, fmt.Errorf("rate limit wait: %w", err)
		}

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			imp.skip(report, line, fmt.Errorf("invalid JSON: %w", err))
			continue
		}
		rec.normalize()
		if verr := validation.ValidateStruct(&rec); verr != nil {
			imp.skip(report, line, verr)
			continue
		}
		if err := rec.check(); err != nil {
			imp.skip(report, line, err)
			continue
		}

		subjectID, err := imp.subjectID(ctx, subjects, rec.Subject)
		if err != nil {
			return report, err
		}
		topicIDs := make([]int64, 0, len(rec.Topics))
		for _, topic := range rec.Topics {
			topicID, err := imp.topicID(ctx, topics, subjectID, topic)
			if err != nil {
				return report, err
			}
			topicIDs = append(topicIDs, topicID)
		}

		if _, err := imp.store.InsertItemBundle(ctx, rec.bundle(subjectID, topicIDs)); err != nil {
			return report, fmt.Errorf("insert item at line %d: %w", line, err)
		}
		touched[subjectID] = struct{}{}
		report.Imported++
		metrics.ImportRecords.WithLabelValues("imported").Inc()
	}
	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("read input: %w", err)
	}

	imp.log.Info().
		Int("total", report.Total).
		Int("imported", report.Imported).
		Int("skipped", report.Skipped).
		Int("subjects", len(touched)).
		Dur("duration", time.Since(start)).
		Msg("Item bank import completed")

	return report, nil
}

// skip records one rejected line.
func (imp *Importer) skip(report *Report, line int, err error) {
	report.Skipped++
	metrics.ImportRecords.WithLabelValues("skipped").Inc()
	if len(report.Errors) < imp.cfg.MaxErrors {
		report.Errors = append(report.Errors, RecordError{Line: line, Message: err.Error()})
	}
	imp.log.Debug().Int("line", line).Err(err).Msg("Import record skipped")
}

// subjectID resolves a subject name, memoizing within the run.
func (imp *Importer) subjectID(ctx context.Context, cache map[string]int64, name string) (int64, error) {
	if id, ok := cache[name]; ok {
		return id, nil
	}
	id, err := imp.store.UpsertSubject(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("upsert subject %q: %w", name, err)
	}
	cache[name] = id
	return id, nil
}

// topicID resolves a topic name within a subject, memoizing within the run.
func (imp *Importer) topicID(ctx context.Context, cache map[topicKey]int64, subjectID int64, name string) (int64, error) {
	key := topicKey{subjectID: subjectID, name: name}
	if id, ok := cache[key]; ok {
		return id, nil
	}
	id, err := imp.store.UpsertTopic(ctx, subjectID, name)
	if err != nil {
		return 0, fmt.Errorf("upsert topic %q: %w", name, err)
	}
	cache[key] = id
	return id, nil
}
