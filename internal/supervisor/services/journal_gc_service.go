// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/opencaliper/caliper/internal/logging"
)

// JournalGC matches the journal's garbage collection entry point.
// Satisfied by *journal.Journal.
type JournalGC interface {
	RunGC() error
}

// JournalGCService reclaims Badger value-log space on a fixed cadence.
// Badger never garbage-collects on its own; without this loop the
// journal directory grows with every rewritten sequence entry.
type JournalGCService struct {
	journal  JournalGC
	interval time.Duration
	log      zerolog.Logger
	name     string
}

// NewJournalGCService wraps the journal. A non-positive interval falls
// back to 10 minutes.
func NewJournalGCService(journal JournalGC, interval time.Duration) *JournalGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &JournalGCService{
		journal:  journal,
		interval: interval,
		log:      logging.With().Str("component", "journal-gc").Logger(),
		name:     "journal-gc",
	}
}

// Serve implements suture.Service. GC failures are logged and retried
// on the next tick; a full disk recovers as soon as a later pass
// succeeds.
func (s *JournalGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			if err := s.journal.RunGC(); err != nil {
				s.log.Warn().Err(err).Msg("Journal GC pass failed")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (s *JournalGCService) String() string {
	return s.name
}
