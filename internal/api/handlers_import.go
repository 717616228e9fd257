// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/opencaliper/caliper/internal/database"
	"github.com/opencaliper/caliper/internal/logging"
	"github.com/opencaliper/caliper/internal/models"
)

// ImportItems handles POST /api/v1/import/items. The body is JSONL, one
// item bundle per line. Malformed lines are skipped and reported; a
// storage failure aborts the run mid-stream. An aborted run still
// returns the partial report so the caller can see how far it got
// before deciding whether to resubmit the remainder.
func (h *Handler) ImportItems(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	body := http.MaxBytesReader(w, r.Body, h.config.Import.MaxBodyBytes)
	defer body.Close()

	report, err := h.importer.Import(r.Context(), body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondError(w, http.StatusRequestEntityTooLarge, errCodePayloadTooLarge,
				"request body exceeds the import size limit", err)
		case database.IsTransient(err):
			logging.Ctx(r.Context()).Warn().Err(err).
				Int("imported", report.Imported).
				Msg("Item import aborted on transient storage error")
			respondAbortedImport(w, http.StatusServiceUnavailable, errCodeStorageBusy,
				"import aborted, storage busy", report, started)
		default:
			logging.CtxErr(r.Context(), err).
				Int("imported", report.Imported).
				Msg("Item import aborted")
			respondAbortedImport(w, http.StatusInternalServerError, errCodeInternal,
				"import aborted", report, started)
		}
		return
	}

	respondSuccess(w, http.StatusOK, report, started)
}

// respondAbortedImport carries both the error and the partial report.
// Lines counted as imported are already committed, so the report is
// what tells the caller which remainder to resubmit.
func respondAbortedImport(w http.ResponseWriter, status int, code, message string, report interface{}, started time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "error",
		Data:   report,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(started).Milliseconds(),
		},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}
