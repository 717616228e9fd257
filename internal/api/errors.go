// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package api

import (
	"net/http"

	"github.com/opencaliper/caliper/internal/logging"
	"github.com/opencaliper/caliper/internal/session"
)

// Error codes not covered by session error kinds.
const (
	errCodeValidation       = "VALIDATION_ERROR"
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeNotFound         = "NOT_FOUND"
	errCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	errCodeInternal         = "INTERNAL_ERROR"
	errCodeUnavailable      = "SERVICE_UNAVAILABLE"
	errCodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	errCodeStorageBusy      = "STORAGE_BUSY"
)

// statusForKind maps a session error kind to its HTTP status.
//
// Conflict (409) covers answers that contradict current session state;
// 422 marks a structurally valid start the pool cannot satisfy; 503
// with STORAGE_BUSY tells the client to retry.
func statusForKind(kind session.Kind) int {
	switch kind {
	case session.KindBadRequest:
		return http.StatusBadRequest
	case session.KindNotFound:
		return http.StatusNotFound
	case session.KindSessionNotOngoing, session.KindItemNotServed, session.KindOptionMismatch:
		return http.StatusConflict
	case session.KindNoEligibleItem:
		return http.StatusUnprocessableEntity
	case session.KindTransientStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondSessionError translates a session controller error into the
// response envelope. 5xx causes are logged with the request context;
// 4xx are the caller's problem and only surface in the response.
func respondSessionError(w http.ResponseWriter, r *http.Request, err error) {
	kind := session.KindOf(err)
	status := statusForKind(kind)

	message := err.Error()
	if status >= http.StatusInternalServerError && kind != session.KindTransientStorage {
		logging.CtxErr(r.Context(), err).Msg("Session operation failed")
		message = "internal error"
	}
	if kind == session.KindTransientStorage {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Storage busy")
		message = "storage busy, retry the request"
	}

	respondError(w, status, kind.Code(), message, nil)
}
