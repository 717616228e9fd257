// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/opencaliper/caliper/internal/logging"
	ws "github.com/opencaliper/caliper/internal/websocket"
)

// WebSocket handles GET /api/v1/ws. The optional session_id query
// parameter narrows the feed to one session; without it the client
// receives every event the engine publishes.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		respondError(w, http.StatusServiceUnavailable, errCodeUnavailable, "live event feed is disabled", nil)
		return
	}

	sessionID := uuid.Nil
	if raw := r.URL.Query().Get("session_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, errCodeBadRequest, "session_id must be a UUID", nil)
			return
		}
		sessionID = parsed
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own handshake error.
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade rejected")
		return
	}

	client := ws.NewClient(h.wsHub, conn, sessionID)
	h.wsHub.Register <- client

	logging.Ctx(r.Context()).Debug().
		Uint64("client_id", client.ID()).
		Str("session_id", sessionID.String()).
		Msg("WebSocket client connected")

	// Start blocks until the connection closes, keeping the upgraded
	// request's goroutine as the write pump.
	client.Start()
}
