// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/opencaliper/caliper/internal/models"
	"github.com/opencaliper/caliper/internal/session"
)

// startFixed opens a fixed form over the API.
func (ts *testServer) startFixed(studentID, subjectID int64, count int) session.FixedState {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/v1/fixed-tests", StartFixedTestRequest{
		StudentID: studentID,
		SubjectID: subjectID,
		Count:     count,
	})
	var state session.FixedState
	successData(ts.t, rec, http.StatusCreated, &state)
	return state
}

func TestFixedTestLifecycle(t *testing.T) {
	ts := newTestServer(t)
	subjectID := ts.seedBank("Geometry", 8)

	state := ts.startFixed(601, subjectID, 4)
	if state.SessionID == uuid.Nil {
		t.Fatal("session_id missing")
	}
	if state.TargetItems != 4 {
		t.Errorf("target_items = %d, want 4", state.TargetItems)
	}
	if len(state.Items) != 4 {
		t.Fatalf("served %d items, want 4", len(state.Items))
	}
	for _, item := range state.Items {
		if len(item.Options) < 2 {
			t.Errorf("item %d served with %d options", item.ID, len(item.Options))
		}
	}

	// Two right, two wrong.
	answers := make([]FixedTestAnswer, 0, 4)
	for i, item := range state.Items {
		answers = append(answers, FixedTestAnswer{
			ItemID:   item.ID,
			OptionID: ts.optionID(subjectID, item.ID, i < 2),
		})
	}

	var result session.FixedResult
	successData(t, ts.do(http.MethodPost, "/api/v1/fixed-tests/"+state.SessionID.String()+"/submit",
		SubmitFixedTestRequest{Answers: answers}), http.StatusOK, &result)

	if result.Total != 4 {
		t.Errorf("total = %d, want 4", result.Total)
	}
	if result.Correct != 2 {
		t.Errorf("correct = %d, want 2", result.Correct)
	}
	if result.Score10 != 5 {
		t.Errorf("score10 = %d, want 5", result.Score10)
	}
	if len(result.Answers) != 4 {
		t.Errorf("graded %d answers, want 4", len(result.Answers))
	}

	// Submission is terminal.
	rec := ts.do(http.MethodPost, "/api/v1/fixed-tests/"+state.SessionID.String()+"/submit",
		SubmitFixedTestRequest{Answers: answers})
	requireErrorCode(t, rec, http.StatusConflict, "SESSION_NOT_ONGOING")

	// The generic session endpoint reports the finished form.
	var view session.State
	successData(t, ts.do(http.MethodGet, "/api/v1/sessions/"+state.SessionID.String(), nil), http.StatusOK, &view)
	if view.Mode != models.ModeFixed {
		t.Errorf("mode = %q, want %q", view.Mode, models.ModeFixed)
	}
	if view.Status != models.StatusFinished {
		t.Errorf("status = %q, want %q", view.Status, models.StatusFinished)
	}
}

func TestFixedTestPartialSubmissionScoresServedItems(t *testing.T) {
	ts := newTestServer(t)
	subjectID := ts.seedBank("Geometry", 8)

	state := ts.startFixed(602, subjectID, 4)

	// Answer only one item, correctly. The other three count against
	// the score.
	answers := []FixedTestAnswer{{
		ItemID:   state.Items[0].ID,
		OptionID: ts.optionID(subjectID, state.Items[0].ID, true),
	}}

	var result session.FixedResult
	successData(t, ts.do(http.MethodPost, "/api/v1/fixed-tests/"+state.SessionID.String()+"/submit",
		SubmitFixedTestRequest{Answers: answers}), http.StatusOK, &result)

	if result.Total != 4 {
		t.Errorf("total = %d, want 4", result.Total)
	}
	if result.Correct != 1 {
		t.Errorf("correct = %d, want 1", result.Correct)
	}
	if result.Score10 != 3 {
		t.Errorf("score10 = %d, want 3 (1 of 4 rounded)", result.Score10)
	}
}

func TestSubmitFixedTestConflicts(t *testing.T) {
	ts := newTestServer(t)
	subjectID := ts.seedBank("Geometry", 10)

	state := ts.startFixed(603, subjectID, 3)

	servedSet := make(map[int64]struct{}, len(state.Items))
	for _, item := range state.Items {
		servedSet[item.ID] = struct{}{}
	}
	var outside int64
	snapIDs := ts.snapshotItemIDs(subjectID)
	for _, id := range snapIDs {
		if _, served := servedSet[id]; !served {
			outside = id
			break
		}
	}
	if outside == 0 {
		t.Fatal("bank has no item outside the form")
	}

	t.Run("item outside the form", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/v1/fixed-tests/"+state.SessionID.String()+"/submit",
			SubmitFixedTestRequest{Answers: []FixedTestAnswer{{
				ItemID:   outside,
				OptionID: ts.optionID(subjectID, outside, true),
			}}})
		requireErrorCode(t, rec, http.StatusConflict, "ITEM_NOT_SERVED")
	})

	t.Run("option from another item", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/v1/fixed-tests/"+state.SessionID.String()+"/submit",
			SubmitFixedTestRequest{Answers: []FixedTestAnswer{{
				ItemID:   state.Items[0].ID,
				OptionID: ts.optionID(subjectID, outside, true),
			}}})
		requireErrorCode(t, rec, http.StatusConflict, "OPTION_MISMATCH")
	})

	t.Run("adaptive session rejected", func(t *testing.T) {
		cat := ts.startSession(604, subjectID, 3)
		rec := ts.do(http.MethodPost, "/api/v1/fixed-tests/"+cat.SessionID.String()+"/submit",
			SubmitFixedTestRequest{Answers: []FixedTestAnswer{{
				ItemID:   cat.NextItem.ID,
				OptionID: ts.optionID(subjectID, cat.NextItem.ID, true),
			}}})
		requireErrorCode(t, rec, http.StatusBadRequest, "BAD_REQUEST")
	})
}

func TestStartFixedTestValidation(t *testing.T) {
	ts := newTestServer(t)
	subjectID := ts.seedBank("Geometry", 4)

	tests := []struct {
		name string
		body interface{}
	}{
		{
			name: "count above cap",
			body: map[string]interface{}{"student_id": 1, "subject_id": subjectID, "count": 101},
		},
		{
			name: "unknown difficulty tag",
			body: map[string]interface{}{"student_id": 1, "subject_id": subjectID, "difficulty_tag": "brutal"},
		},
		{
			name: "missing student",
			body: map[string]interface{}{"subject_id": subjectID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/api/v1/fixed-tests", tt.body)
			requireErrorCode(t, rec, http.StatusBadRequest, errCodeValidation)
		})
	}
}

func TestSubmitFixedTestValidation(t *testing.T) {
	ts := newTestServer(t)
	subjectID := ts.seedBank("Geometry", 4)
	state := ts.startFixed(605, subjectID, 3)

	t.Run("empty answers", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/v1/fixed-tests/"+state.SessionID.String()+"/submit",
			map[string]interface{}{"answers": []interface{}{}})
		requireErrorCode(t, rec, http.StatusBadRequest, errCodeValidation)
	})

	t.Run("malformed session id", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/v1/fixed-tests/whatever/submit",
			SubmitFixedTestRequest{Answers: []FixedTestAnswer{{ItemID: 1, OptionID: 1}}})
		requireErrorCode(t, rec, http.StatusBadRequest, errCodeBadRequest)
	})
}

// snapshotItemIDs lists the subject's active item IDs.
func (ts *testServer) snapshotItemIDs(subjectID int64) []int64 {
	ts.t.Helper()
	snap, err := ts.cat.Get(context.Background(), subjectID)
	if err != nil {
		ts.t.Fatalf("catalog.Get: %v", err)
	}
	return snap.ItemIDs()
}
