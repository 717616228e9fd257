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

// CatalogRefresher matches the catalogue manager's refresh entry point.
// Satisfied by *catalog.Manager.
type CatalogRefresher interface {
	Refresh(ctx context.Context) error
}

// CatalogRefreshService re-reads cached catalogue snapshots on a fixed
// cadence. Imports invalidate eagerly; the periodic refresh is the
// backstop for changes made directly in the database, which otherwise
// stay invisible until a snapshot's TTL expires.
type CatalogRefreshService struct {
	catalog  CatalogRefresher
	interval time.Duration
	log      zerolog.Logger
	name     string
}

// NewCatalogRefreshService wraps the catalogue manager. A non-positive
// interval falls back to 5 minutes.
func NewCatalogRefreshService(catalog CatalogRefresher, interval time.Duration) *CatalogRefreshService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CatalogRefreshService{
		catalog:  catalog,
		interval: interval,
		log:      logging.With().Str("component", "catalog-refresh").Logger(),
		name:     "catalog-refresh",
	}
}

// Serve implements suture.Service. A failed refresh keeps the previous
// snapshots and is retried on the next tick, so it is logged rather
// than returned.
func (s *CatalogRefreshService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			if err := s.catalog.Refresh(ctx); err != nil {
				s.log.Warn().Err(err).Msg("Catalogue refresh failed, keeping previous snapshots")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (s *CatalogRefreshService) String() string {
	return s.name
}
