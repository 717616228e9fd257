// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

// Package events carries session lifecycle events over an in-process
// Watermill pub/sub. The session controller publishes, and the router
// service fans events out to the live feed and the journal.
package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// SchemaVersion is the current event schema version. Increment on
// breaking changes to SessionEvent.
const SchemaVersion = 1

// Topic is the single pub/sub topic all session events flow through.
const Topic = "session.events"

// Type identifies what happened in a session.
type Type string

// Session event types, in lifecycle order.
const (
	TypeSessionStarted  Type = "session_started"
	TypeItemServed      Type = "item_served"
	TypeItemAnswered    Type = "item_answered"
	TypeSessionFinished Type = "session_finished"
)

// TopicAbility is a point-in-time snapshot of one topic's estimate.
type TopicAbility struct {
	TopicID int64   `json:"topic_id"`
	Theta   float64 `json:"theta"`
	SE      float64 `json:"se"`
}

// SessionEvent is the canonical event format for session progress.
// ItemID, Correct, Abilities and StopReason are populated only by the
// event types that carry them.
type SessionEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventID       string         `json:"event_id"`
	Type          Type           `json:"type"`
	SessionID     uuid.UUID      `json:"session_id"`
	StudentID     int64          `json:"student_id"`
	SubjectID     int64          `json:"subject_id"`
	Position      int            `json:"position,omitempty"`
	ItemID        *int64         `json:"item_id,omitempty"`
	Correct       *bool          `json:"correct,omitempty"`
	Abilities     []TopicAbility `json:"abilities,omitempty"`
	StopReason    string         `json:"stop_reason,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// NewSessionEvent builds an event of the given type with a fresh event
// ID and a UTC timestamp. The caller fills the type-specific fields.
func NewSessionEvent(t Type, sessionID uuid.UUID, studentID, subjectID int64) SessionEvent {
	return SessionEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		Type:          t,
		SessionID:     sessionID,
		StudentID:     studentID,
		SubjectID:     subjectID,
		Timestamp:     time.Now().UTC(),
	}
}

// Validate checks the fields every event must carry.
func (e *SessionEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	switch e.Type {
	case TypeSessionStarted, TypeItemServed, TypeItemAnswered, TypeSessionFinished:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.SessionID == uuid.Nil {
		return fmt.Errorf("session_id is required")
	}
	return nil
}

// Marshal converts the event to JSON after validating it.
func (e *SessionEvent) Marshal() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Unmarshal decodes JSON bytes into a session event.
func Unmarshal(data []byte) (*SessionEvent, error) {
	var e SessionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &e, nil
}
