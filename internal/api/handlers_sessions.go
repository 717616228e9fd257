// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opencaliper/caliper/internal/events"
	"github.com/opencaliper/caliper/internal/session"
)

// StartSession handles POST /api/v1/sessions.
//
// The controller selects the first item before persisting anything, so
// a subject with an empty pool returns NO_ELIGIBLE_ITEM and leaves no
// session behind.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req StartSessionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	state, err := h.sessions.StartCAT(r.Context(), session.StartInput{
		StudentID:   req.StudentID,
		SubjectID:   req.SubjectID,
		TopicID:     req.TopicID,
		TargetItems: req.TargetItems,
	})
	if err != nil {
		respondSessionError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusCreated, state, started)
}

// GetSession handles GET /api/v1/sessions/{id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	sessionID, ok := h.sessionIDParam(w, r)
	if !ok {
		return
	}

	state, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		respondSessionError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, state, started)
}

// AnswerSession handles POST /api/v1/sessions/{id}/answers.
func (h *Handler) AnswerSession(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	sessionID, ok := h.sessionIDParam(w, r)
	if !ok {
		return
	}

	var req AnswerRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	outcome, err := h.sessions.AnswerCAT(r.Context(), session.AnswerInput{
		SessionID: sessionID,
		ItemID:    req.ItemID,
		OptionID:  req.OptionID,
		LatencyMS: req.LatencyMS,
	})
	if err != nil {
		respondSessionError(w, r, err)
		return
	}

	// Grading moved ability estimates; cached reports are stale now.
	h.abilities.Clear()

	respondSuccess(w, http.StatusOK, outcome, started)
}

// sessionEventTrail is the payload of the event trail endpoint.
type sessionEventTrail struct {
	SessionID uuid.UUID             `json:"session_id"`
	Count     int                   `json:"count"`
	Events    []events.SessionEvent `json:"events"`
}

// SessionEvents handles GET /api/v1/sessions/{id}/events, replaying
// the journaled trail of one session in emission order.
func (h *Handler) SessionEvents(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if h.journal == nil {
		respondError(w, http.StatusServiceUnavailable, errCodeUnavailable, "session journal is disabled", nil)
		return
	}

	sessionID, ok := h.sessionIDParam(w, r)
	if !ok {
		return
	}

	// The journal answers for any session ID, including ones that never
	// existed, so a 404 needs the controller's view first.
	if _, err := h.sessions.Get(r.Context(), sessionID); err != nil {
		respondSessionError(w, r, err)
		return
	}

	trail, err := h.journal.Replay(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, errCodeInternal, "failed to replay session events", err)
		return
	}

	respondSuccess(w, http.StatusOK, sessionEventTrail{
		SessionID: sessionID,
		Count:     len(trail),
		Events:    trail,
	}, started)
}

// sessionIDParam parses the {id} path segment. On failure it writes
// the error response and returns ok=false.
func (h *Handler) sessionIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	sessionID, err := uuid.Parse(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, errCodeBadRequest, "session id must be a UUID", nil)
		return uuid.Nil, false
	}
	return sessionID, true
}
