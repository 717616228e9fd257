// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package catalog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Loader produces catalogue snapshots from the backing store. Implemented
// by the database layer.
type Loader interface {
	// LoadCatalog builds a fresh snapshot of one subject's item bank.
	LoadCatalog(ctx context.Context, subjectID int64) (*Snapshot, error)

	// ListSubjectIDs returns the IDs of all subjects, ascending.
	ListSubjectIDs(ctx context.Context) ([]int64, error)
}

// ManagerConfig controls snapshot caching.
type ManagerConfig struct {
	// Enabled toggles the cache. When false every Get hits the loader.
	Enabled bool

	// TTL is how long a cached snapshot stays fresh.
	TTL time.Duration

	// RefreshConcurrency bounds parallel loads during Refresh.
	RefreshConcurrency int
}

// DefaultManagerConfig returns the standard cache configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Enabled:            true,
		TTL:                30 * time.Second,
		RefreshConcurrency: 4,
	}
}

// Manager serves catalogue snapshots with a per-subject TTL cache.
// Selection reads an immutable snapshot, so catalogue edits become visible
// only when the entry expires or is invalidated.
type Manager struct {
	config ManagerConfig
	loader Loader
	logger zerolog.Logger

	cacheMu sync.RWMutex
	cache   map[int64]cacheEntry

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
}

// cacheEntry holds one cached snapshot.
type cacheEntry struct {
	snapshot  *Snapshot
	expiresAt time.Time
}

// NewManager creates a snapshot manager over the given loader.
func NewManager(config ManagerConfig, loader Loader, logger zerolog.Logger) *Manager {
	return &Manager{
		config: config,
		loader: loader,
		logger: logger.With().Str("component", "catalog").Logger(),
		cache:  make(map[int64]cacheEntry),
	}
}

// Get returns the snapshot for a subject, loading it on cache miss or
// expiry. The returned snapshot is shared and read-only.
func (m *Manager) Get(ctx context.Context, subjectID int64) (*Snapshot, error) {
	if m.config.Enabled {
		if snap := m.checkCache(subjectID); snap != nil {
			m.cacheHits.Add(1)
			return snap, nil
		}
		m.cacheMisses.Add(1)
	}

	snap, err := m.loader.LoadCatalog(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("loading catalog for subject %d: %w", subjectID, err)
	}

	if m.config.Enabled {
		m.storeCache(subjectID, snap)
	}

	m.logger.Debug().
		Int64("subject_id", subjectID).
		Int("items", snap.Len()).
		Msg("catalog snapshot loaded")

	return snap, nil
}

// Invalidate drops the cached snapshot of one subject.
func (m *Manager) Invalidate(subjectID int64) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	delete(m.cache, subjectID)
}

// InvalidateAll drops every cached snapshot.
func (m *Manager) InvalidateAll() {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	m.cache = make(map[int64]cacheEntry)
}

// Refresh reloads snapshots for every subject, bounded by
// RefreshConcurrency. Used by the background refresh service to keep hot
// subjects from expiring mid-session.
func (m *Manager) Refresh(ctx context.Context) error {
	subjectIDs, err := m.loader.ListSubjectIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing subjects: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	limit := m.config.RefreshConcurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for _, subjectID := range subjectIDs {
		g.Go(func() error {
			snap, err := m.loader.LoadCatalog(gctx, subjectID)
			if err != nil {
				return fmt.Errorf("refreshing subject %d: %w", subjectID, err)
			}
			m.storeCache(subjectID, snap)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	m.logger.Debug().Int("subjects", len(subjectIDs)).Msg("catalog cache refreshed")
	return nil
}

// Stats returns cumulative cache hit and miss counts.
func (m *Manager) Stats() (hits, misses int64) {
	return m.cacheHits.Load(), m.cacheMisses.Load()
}

// checkCache returns a fresh cached snapshot or nil.
func (m *Manager) checkCache(subjectID int64) *Snapshot {
	m.cacheMu.RLock()
	defer m.cacheMu.RUnlock()

	entry, ok := m.cache[subjectID]
	if !ok {
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		return nil
	}
	return entry.snapshot
}

// storeCache stores a snapshot with the configured TTL.
func (m *Manager) storeCache(subjectID int64, snap *Snapshot) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	m.cache[subjectID] = cacheEntry{
		snapshot:  snap,
		expiresAt: time.Now().Add(m.config.TTL),
	}
}
