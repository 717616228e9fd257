// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package api

import (
	"net/http"
	"time"

	"github.com/opencaliper/caliper/internal/session"
)

// StartFixedTest handles POST /api/v1/fixed-tests.
//
// Fixed forms serve every item up front and are graded in one submit;
// ability estimates are untouched.
func (h *Handler) StartFixedTest(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req StartFixedTestRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	state, err := h.sessions.StartFixed(r.Context(), session.FixedInput{
		StudentID:     req.StudentID,
		SubjectID:     req.SubjectID,
		Count:         req.Count,
		DifficultyTag: req.DifficultyTag,
	})
	if err != nil {
		respondSessionError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusCreated, state, started)
}

// SubmitFixedTest handles POST /api/v1/fixed-tests/{id}/submit.
//
// Submission is terminal: the whole form is graded at once and the
// session finishes. Unanswered served items count as incorrect.
func (h *Handler) SubmitFixedTest(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	sessionID, ok := h.sessionIDParam(w, r)
	if !ok {
		return
	}

	var req SubmitFixedTestRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	answers := make([]session.SubmitAnswer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, session.SubmitAnswer{
			ItemID:   a.ItemID,
			OptionID: a.OptionID,
		})
	}

	result, err := h.sessions.SubmitFixed(r.Context(), session.SubmitInput{
		SessionID: sessionID,
		Answers:   answers,
	})
	if err != nil {
		respondSessionError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, result, started)
}
