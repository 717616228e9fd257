// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

// Package validation provides struct validation using go-playground/validator v10.
//
// The package wraps the validator library behind a thread-safe singleton
// and translates tag failures into human-readable, field-level messages.
// API handlers and the item-bank importer both declare constraints as
// struct tags and route failures through this package so that every
// VALIDATION_ERROR response has the same shape.
//
// # Quick Start
//
//	type startSessionRequest struct {
//	    StudentID   int64  `json:"student_id" validate:"required,gt=0"`
//	    SubjectID   int64  `json:"subject_id" validate:"required,gt=0"`
//	    TargetItems int    `json:"target_items" validate:"omitempty,min=3,max=50"`
//	    Mode        string `json:"mode" validate:"omitempty,oneof=CAT FIXED"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    // respond 400 with apiErr.Code, apiErr.Message, apiErr.Details
//	}
//
// # Error Types
//
// ValidationError is a single field failure exposing Field, Tag, Param,
// Value, and a rendered message. RequestValidationError aggregates all
// failures of one struct; its ToAPIError method produces the wire shape:
//
//	// Single field error
//	{
//	    "code": "VALIDATION_ERROR",
//	    "message": "StudentID must be greater than 0",
//	    "details": {"field": "StudentID", "tag": "gt", "value": "0"}
//	}
//
//	// Multiple field errors
//	{
//	    "code": "VALIDATION_ERROR",
//	    "message": "StudentID: StudentID is required; Mode: Mode must be one of: CAT FIXED",
//	    "details": {"StudentID": "StudentID is required", "Mode": "Mode must be one of: CAT FIXED"}
//	}
//
// # Message Translation
//
// Messages are generated per tag, with min/max adapting to the field
// kind:
//
//	required    -> "StudentID is required"
//	oneof=a b   -> "Mode must be one of: a b"
//	gt=0        -> "SubjectID must be greater than 0"
//	min=3 (int) -> "TargetItems must be at least 3"
//	min=1 (slice) -> "Options must have at least 1 entries"
//	max=400 (string) -> "Stem must be at most 400 characters"
//
// Unknown tags fall back to "<Field> failed <tag> validation".
//
// # Thread Safety
//
// GetValidator initializes the validator once and caches struct
// reflection metadata, so both it and ValidateStruct are safe and cheap
// to call concurrently from request handlers.
//
// # See Also
//
//   - internal/api: request handlers using validation
//   - internal/importer: item-bank record validation
//   - github.com/go-playground/validator/v10: underlying library
package validation
