// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opencaliper/caliper/internal/cache"
	"github.com/opencaliper/caliper/internal/catalog"
	"github.com/opencaliper/caliper/internal/config"
	"github.com/opencaliper/caliper/internal/database"
	"github.com/opencaliper/caliper/internal/importer"
	"github.com/opencaliper/caliper/internal/journal"
	"github.com/opencaliper/caliper/internal/logging"
	"github.com/opencaliper/caliper/internal/middleware"
	"github.com/opencaliper/caliper/internal/session"
	ws "github.com/opencaliper/caliper/internal/websocket"
)

// abilityCacheTTL bounds staleness of the ability report endpoint.
// Reports change only when the student answers, and answer handlers
// invalidate the affected entry, so the TTL is a backstop.
const abilityCacheTTL = 5 * time.Minute

// Handler carries the dependencies of every endpoint.
//
// Handler methods are split across files by concern:
//   - handlers.go: struct, constructor, WebSocket upgrade plumbing
//   - handlers_sessions.go: adaptive session endpoints
//   - handlers_fixed.go: fixed form endpoints
//   - handlers_students.go: ability report endpoint
//   - handlers_import.go: item bank import endpoint
//   - handlers_stats.go: engine statistics endpoint
//   - handlers_health.go: health and probe endpoints
type Handler struct {
	db        *database.DB
	sessions  *session.Controller
	importer  *importer.Importer
	catalog   *catalog.Manager
	journal   *journal.Journal
	wsHub     *ws.Hub
	config    *config.Config
	perfMon   *middleware.PerformanceMonitor
	abilities *cache.Cache
	startTime time.Time
}

// NewHandler creates the API handler.
//
// The journal and WebSocket hub may be nil; the event trail endpoint
// and the live feed then answer 503 while everything else works, which
// is how the engine runs with the journal disabled in config.
func NewHandler(
	db *database.DB,
	sessions *session.Controller,
	imp *importer.Importer,
	cat *catalog.Manager,
	jrn *journal.Journal,
	wsHub *ws.Hub,
	cfg *config.Config,
) *Handler {
	return &Handler{
		db:        db,
		sessions:  sessions,
		importer:  imp,
		catalog:   cat,
		journal:   jrn,
		wsHub:     wsHub,
		config:    cfg,
		perfMon:   middleware.NewPerformanceMonitor(1000),
		abilities: cache.New(abilityCacheTTL),
		startTime: time.Now(),
	}
}

// getUpgrader builds the WebSocket upgrader. The handshake timeout
// protects against clients that stall mid-upgrade.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates the Origin header against the
// configured CORS origins. Requests without an Origin header are
// allowed: they come from non-browser clients, which CORS does not
// apply to and which a fronting gateway already vetted.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if h.config == nil {
		return true
	}

	for _, allowed := range h.config.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
