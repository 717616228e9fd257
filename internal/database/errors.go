// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package database

import (
	"errors"
	"io"

	"github.com/opencaliper/caliper/internal/logging"
)

// ErrNotFound is returned by lookups whose subject row does not exist.
// Callers distinguish it from query failures with errors.Is.
var ErrNotFound = errors.New("not found")

// IsTransient reports whether err is a storage failure that may clear on
// its own: a transaction conflict, lock contention, or a dropped
// connection. The retry-once policy has already run by the time callers
// see such an error.
func IsTransient(err error) bool {
	return isTransientError(err)
}

// closeWithLog closes a resource and logs any error. Use for cleanup where
// errors should be acknowledged but not fail the operation.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly ignores any error. Use in
// error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // cleanup is best-effort
	}
}
