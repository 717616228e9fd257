// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package session

import (
	"errors"
	"fmt"

	"github.com/opencaliper/caliper/internal/database"
	"github.com/opencaliper/caliper/internal/selector"
)

// Kind classifies controller failures so the transport layer can map
// them to status codes without string matching.
type Kind int

const (
	// KindInternal covers everything not claimed by a more specific kind.
	KindInternal Kind = iota

	// KindBadRequest marks input the controller refused before touching
	// session state: invalid IDs, out-of-range targets, topics outside
	// the requested subject.
	KindBadRequest

	// KindNotFound marks lookups of sessions or subjects that do not exist.
	KindNotFound

	// KindSessionNotOngoing marks writes against a finished session.
	KindSessionNotOngoing

	// KindItemNotServed marks answers for items this session never served,
	// or served and already graded.
	KindItemNotServed

	// KindOptionMismatch marks answers naming an option that does not
	// belong to the answered item.
	KindOptionMismatch

	// KindNoEligibleItem marks starts against a pool with nothing to serve.
	// Mid-session exhaustion is not an error; it finishes the session.
	KindNoEligibleItem

	// KindTransientStorage marks storage failures that already survived the
	// retry policy but may clear if the caller tries again.
	KindTransientStorage
)

// Code returns the wire-level error code for the kind. These values
// appear verbatim in API error envelopes.
func (k Kind) Code() string {
	switch k {
	case KindBadRequest:
		return "BAD_REQUEST"
	case KindNotFound:
		return "NOT_FOUND"
	case KindSessionNotOngoing:
		return "SESSION_NOT_ONGOING"
	case KindItemNotServed:
		return "ITEM_NOT_SERVED"
	case KindOptionMismatch:
		return "OPTION_MISMATCH"
	case KindNoEligibleItem:
		return "NO_ELIGIBLE_ITEM"
	case KindTransientStorage:
		return "STORAGE_BUSY"
	default:
		return "INTERNAL_ERROR"
	}
}

func (k Kind) String() string { return k.Code() }

// ErrTopicNotInSubject reports a topic-scoped start whose topic belongs
// to a different subject. It surfaces as KindBadRequest.
var ErrTopicNotInSubject = errors.New("topic does not belong to subject")

// Error pairs an underlying failure with its Kind. The controller wraps
// every error it returns so callers never classify by message.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// wrapError classifies err and wraps it, preserving an existing Kind if
// the error already carries one.
func wrapError(err error, format string, args ...any) *Error {
	args = append(args, err)
	return &Error{Kind: KindOf(err), Err: fmt.Errorf(format+": %w", args...)}
}

// KindOf extracts the Kind from err. Untyped errors from the storage and
// selection layers are classified by sentinel; anything unrecognized is
// internal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, database.ErrNotFound):
		return KindNotFound
	case errors.Is(err, selector.ErrNoEligibleItem):
		return KindNoEligibleItem
	case database.IsTransient(err):
		return KindTransientStorage
	}
	return KindInternal
}
