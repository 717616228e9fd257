// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/opencaliper/caliper/internal/database"
	"github.com/opencaliper/caliper/internal/selector"
)

func TestKindCode(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindInternal, "INTERNAL_ERROR"},
		{KindBadRequest, "BAD_REQUEST"},
		{KindNotFound, "NOT_FOUND"},
		{KindSessionNotOngoing, "SESSION_NOT_ONGOING"},
		{KindItemNotServed, "ITEM_NOT_SERVED"},
		{KindOptionMismatch, "OPTION_MISMATCH"},
		{KindNoEligibleItem, "NO_ELIGIBLE_ITEM"},
		{KindTransientStorage, "STORAGE_BUSY"},
		{Kind(99), "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		if got := tt.kind.Code(); got != tt.want {
			t.Errorf("Kind(%d).Code() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "typed error passes through",
			err:  newError(KindOptionMismatch, "option 3 does not belong to item 7"),
			want: KindOptionMismatch,
		},
		{
			name: "typed error survives wrapping",
			err:  fmt.Errorf("answer: %w", newError(KindSessionNotOngoing, "finished")),
			want: KindSessionNotOngoing,
		},
		{
			name: "storage not-found sentinel",
			err:  database.ErrNotFound,
			want: KindNotFound,
		},
		{
			name: "wrapped storage not-found",
			err:  fmt.Errorf("failed to load session: %w", database.ErrNotFound),
			want: KindNotFound,
		},
		{
			name: "selector exhaustion sentinel",
			err:  selector.ErrNoEligibleItem,
			want: KindNoEligibleItem,
		},
		{
			name: "transaction conflict is transient",
			err:  errors.New("Transaction conflict: write-write on table session_responses"),
			want: KindTransientStorage,
		},
		{
			name: "lock contention is transient",
			err:  errors.New("database is locked"),
			want: KindTransientStorage,
		},
		{
			name: "internal engine error is not transient",
			err:  errors.New("INTERNAL Error: unexpected vector type"),
			want: KindInternal,
		},
		{
			name: "unknown error",
			err:  errors.New("boom"),
			want: KindInternal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	wrapped := wrapError(fmt.Errorf("load: %w", database.ErrNotFound), "failed to load session %s", "abc")
	if !errors.Is(wrapped, database.ErrNotFound) {
		t.Error("wrapped error should match database.ErrNotFound")
	}
	if KindOf(wrapped) != KindNotFound {
		t.Errorf("KindOf(wrapped) = %v, want KindNotFound", KindOf(wrapped))
	}

	topicErr := &Error{Kind: KindBadRequest, Err: ErrTopicNotInSubject}
	if !errors.Is(topicErr, ErrTopicNotInSubject) {
		t.Error("topic error should match ErrTopicNotInSubject")
	}
	if got := topicErr.Error(); got != ErrTopicNotInSubject.Error() {
		t.Errorf("Error() = %q, want the underlying message", got)
	}
}
