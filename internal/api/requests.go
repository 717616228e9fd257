// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

// HTTP request bodies with go-playground/validator tags. Validation
// here covers structure; semantic checks (topic belongs to subject,
// target within the configured bound) stay in the session controller,
// which reports them as BAD_REQUEST.
package api

// StartSessionRequest is the body of POST /api/v1/sessions.
//
// TargetItems below the configured default may still be rejected by
// the controller; the tag enforces the structural floor of 3.
type StartSessionRequest struct {
	StudentID   int64  `json:"student_id" validate:"required,gt=0"`
	SubjectID   int64  `json:"subject_id" validate:"required,gt=0"`
	TopicID     *int64 `json:"topic_id,omitempty" validate:"omitempty,gt=0"`
	TargetItems int    `json:"target_items,omitempty" validate:"omitempty,min=3"`
}

// AnswerRequest is the body of POST /api/v1/sessions/{id}/answers.
// The session ID rides in the path, not the body.
type AnswerRequest struct {
	ItemID    int64 `json:"item_id" validate:"required,gt=0"`
	OptionID  int64 `json:"option_id" validate:"required,gt=0"`
	LatencyMS int   `json:"latency_ms,omitempty" validate:"omitempty,gte=0"`
}

// StartFixedTestRequest is the body of POST /api/v1/fixed-tests.
type StartFixedTestRequest struct {
	StudentID     int64  `json:"student_id" validate:"required,gt=0"`
	SubjectID     int64  `json:"subject_id" validate:"required,gt=0"`
	Count         int    `json:"count,omitempty" validate:"omitempty,min=1,max=100"`
	DifficultyTag string `json:"difficulty_tag,omitempty" validate:"omitempty,oneof=easy medium hard"`
}

// SubmitFixedTestRequest is the body of POST /api/v1/fixed-tests/{id}/submit.
type SubmitFixedTestRequest struct {
	Answers []FixedTestAnswer `json:"answers" validate:"required,min=1,max=100,dive"`
}

// FixedTestAnswer is one answer in a fixed form submission.
type FixedTestAnswer struct {
	ItemID   int64 `json:"item_id" validate:"required,gt=0"`
	OptionID int64 `json:"option_id" validate:"required,gt=0"`
}

// AbilitiesRequest holds the validated query parameters of
// GET /api/v1/students/{id}/abilities.
type AbilitiesRequest struct {
	StudentID int64 `validate:"required,gt=0"`
	SubjectID int64 `validate:"required,gt=0"`
}
