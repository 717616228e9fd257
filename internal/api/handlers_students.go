// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opencaliper/caliper/internal/cache"
	"github.com/opencaliper/caliper/internal/logging"
	"github.com/opencaliper/caliper/internal/models"
)

// abilityReport is the response body for GET /api/v1/students/{id}/abilities.
type abilityReport struct {
	StudentID int64                   `json:"student_id"`
	SubjectID int64                   `json:"subject_id"`
	Abilities []models.AbilityProfile `json:"abilities"`
}

// StudentAbilities handles GET /api/v1/students/{id}/abilities?subject_id=N.
// It returns the per-topic ability profile the grading pipeline has
// accumulated for the student. Reports are cached briefly; any graded
// answer clears the cache so a fresh report reflects the latest update.
func (h *Handler) StudentAbilities(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	studentID, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errCodeBadRequest, "student id must be a positive integer", nil)
		return
	}
	subjectID := queryInt64(r, "subject_id")

	req := AbilitiesRequest{StudentID: studentID, SubjectID: subjectID}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	// A profile page is read far more often than it changes, so reports
	// are served from cache between grading updates.
	w.Header().Set("Cache-Control", "public, max-age=60")

	key := cache.GenerateKey("abilities", req)
	if cached, found := h.abilities.Get(key); found {
		if report, valid := cached.(*abilityReport); valid {
			respondCached(w, http.StatusOK, report, started)
			return
		}
	}

	profiles, err := h.db.AbilityProfiles(r.Context(), studentID, subjectID)
	if err != nil {
		logging.CtxErr(r.Context(), err).
			Int64("student_id", studentID).
			Int64("subject_id", subjectID).
			Msg("Failed to load ability profiles")
		respondError(w, http.StatusInternalServerError, errCodeInternal, "internal error", err)
		return
	}
	if profiles == nil {
		// A student with no graded answers has an empty report, not a
		// missing one.
		profiles = []models.AbilityProfile{}
	}

	report := &abilityReport{
		StudentID: studentID,
		SubjectID: subjectID,
		Abilities: profiles,
	}
	h.abilities.Set(key, report)

	respondSuccess(w, http.StatusOK, report, started)
}
