// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package models

import "time"

// APIResponse is the standardized response wrapper used by all HTTP
// endpoints. It provides a consistent structure for both successful and
// error responses, with metadata for observability.
//
// Status field values:
//   - "success": request completed, see Data
//   - "error": request failed, see Error
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"session_id": "…", "stop": false},
//	  "metadata": {"timestamp": "2026-02-11T12:00:00Z", "query_time_ms": 4}
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {"code": "OPTION_MISMATCH", "message": "option does not belong to item"},
//	  "metadata": {"timestamp": "2026-02-11T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response metadata for observability: server timestamp,
// storage time spent serving the request, and whether the payload came
// from cache.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError is a structured error payload.
//
// Codes used by the engine:
//   - VALIDATION_ERROR: invalid request parameters
//   - BAD_REQUEST: semantically invalid input (topic not in subject, ...)
//   - SESSION_NOT_ONGOING: answer sent to a finished session
//   - ITEM_NOT_SERVED: answered item was not the pending served item
//   - OPTION_MISMATCH: option does not belong to the answered item
//   - NO_ELIGIBLE_ITEM: selection pool exhausted
//   - NOT_FOUND: unknown session or student
//   - INTERNAL_ERROR: storage or engine failure
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}
