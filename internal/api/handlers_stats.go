// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package api

import (
	"net/http"
	"time"

	"github.com/opencaliper/caliper/internal/logging"
	"github.com/opencaliper/caliper/internal/middleware"
)

// engineStats is the response body for GET /api/v1/stats.
type engineStats struct {
	UptimeSeconds    int64                      `json:"uptime_seconds"`
	Database         databaseStats              `json:"database"`
	Catalog          catalogStats               `json:"catalog"`
	AbilityCache     abilityCacheStats          `json:"ability_cache"`
	WebSocketClients int                        `json:"websocket_clients"`
	Endpoints        []middleware.EndpointStats `json:"endpoints"`
}

type databaseStats struct {
	Items           int64 `json:"items"`
	Sessions        int64 `json:"sessions"`
	Responses       int64 `json:"responses"`
	SchemaVersion   int   `json:"schema_version"`
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
}

type catalogStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

type abilityCacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

// Stats handles GET /api/v1/stats. It reports engine-side counters for
// operators; Prometheus scraping covers the same ground with history,
// this endpoint is the quick curl-able view.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	hits, misses := h.catalog.Stats()
	cacheStats := h.abilities.GetStats()

	stats := engineStats{
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Database:      h.databaseStats(r),
		Catalog: catalogStats{
			Hits:   hits,
			Misses: misses,
		},
		AbilityCache: abilityCacheStats{
			Hits:      cacheStats.Hits,
			Misses:    cacheStats.Misses,
			Evictions: cacheStats.Evictions,
			HitRate:   h.abilities.HitRate(),
		},
		Endpoints: h.perfMon.GetStats(),
	}
	if h.wsHub != nil {
		stats.WebSocketClients = h.wsHub.GetClientCount()
	}

	respondSuccess(w, http.StatusOK, stats, started)
}

// databaseStats gathers store-side counters. Count queries that fail are
// logged and reported as zero; the stats endpoint itself never fails.
func (h *Handler) databaseStats(r *http.Request) databaseStats {
	var ds databaseStats
	if h.db == nil {
		return ds
	}

	pool := h.db.Conn().Stats()
	ds.OpenConnections = pool.OpenConnections
	ds.InUse = pool.InUse
	ds.Idle = pool.Idle

	items, sessions, responses, err := h.db.RecordCounts(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Record counts unavailable")
	} else {
		ds.Items, ds.Sessions, ds.Responses = items, sessions, responses
	}

	version, err := h.db.SchemaVersion(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Schema version unavailable")
	} else {
		ds.SchemaVersion = version
	}
	return ds
}
