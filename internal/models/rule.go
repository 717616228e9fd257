// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// SelectionRule is a stored condition/action pair shaping item selection.
// Condition and Action are opaque JSON decoded by the rules package;
// malformed rules are skipped at evaluation time, never fatal.
type SelectionRule struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Condition json.RawMessage `json:"condition"`
	Action    json.RawMessage `json:"action"`
	Active    bool            `json:"active"`
	UpdatedAt time.Time       `json:"updated_at"`
}
