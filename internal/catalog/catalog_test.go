// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package catalog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opencaliper/caliper/internal/irt"
	"github.com/opencaliper/caliper/internal/logging"
	"github.com/opencaliper/caliper/internal/models"
)

func testSnapshot() *Snapshot {
	items := []models.Item{
		{ID: 30, SubjectID: 1, Stem: "third", Active: true},
		{ID: 10, SubjectID: 1, Stem: "first", Active: true},
		{ID: 20, SubjectID: 1, Stem: "second", Active: true},
	}
	options := map[int64][]models.ItemOption{
		10: {
			{ID: 101, ItemID: 10, Label: "A", Correct: true},
			{ID: 102, ItemID: 10, Label: "B", Correct: false},
		},
	}
	tags := map[int64][]int64{
		10: {7, 5},
		20: {5},
	}
	params := map[int64]irt.Params{
		10: irt.NewParams(1.0, 0.0, 0.25),
	}
	topics := map[int64]models.Topic{
		5: {ID: 5, SubjectID: 1, Name: "fractions"},
		7: {ID: 7, SubjectID: 1, Name: "decimals"},
	}
	return NewSnapshot(1, items, options, tags, params, topics)
}

func TestSnapshotOrdering(t *testing.T) {
	snap := testSnapshot()

	if snap.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", snap.Len())
	}

	wantIDs := []int64{10, 20, 30}
	gotIDs := snap.ItemIDs()
	for i, want := range wantIDs {
		if gotIDs[i] != want {
			t.Errorf("ItemIDs()[%d] = %d, want %d", i, gotIDs[i], want)
		}
	}

	gotTags := snap.TopicIDs(10)
	if len(gotTags) != 2 || gotTags[0] != 5 || gotTags[1] != 7 {
		t.Errorf("TopicIDs(10) = %v, want [5 7]", gotTags)
	}
}

func TestSnapshotLookups(t *testing.T) {
	snap := testSnapshot()

	item, ok := snap.Item(20)
	if !ok || item.Stem != "second" {
		t.Errorf("Item(20) = %+v, %v, want stem %q", item, ok, "second")
	}
	if _, ok := snap.Item(99); ok {
		t.Error("Item(99) found, want miss")
	}

	opt, ok := snap.Option(10, 101)
	if !ok || !opt.Correct {
		t.Errorf("Option(10, 101) = %+v, %v, want correct option", opt, ok)
	}
	if _, ok := snap.Option(10, 999); ok {
		t.Error("Option(10, 999) found, want miss")
	}
	if _, ok := snap.Option(20, 101); ok {
		t.Error("Option(20, 101) found, want miss")
	}

	if !snap.HasTopic(5) || snap.HasTopic(99) {
		t.Error("HasTopic membership wrong")
	}

	if !snap.Params(10).Complete() {
		t.Error("Params(10) incomplete, want complete")
	}
	if snap.Params(20).Complete() {
		t.Error("Params(20) complete, want zero value")
	}
}

func TestSnapshotTopicIndex(t *testing.T) {
	snap := testSnapshot()

	tagged := snap.ItemsTagged(5)
	if len(tagged) != 2 || tagged[0] != 10 || tagged[1] != 20 {
		t.Errorf("ItemsTagged(5) = %v, want [10 20]", tagged)
	}
	if got := snap.ItemsTagged(99); len(got) != 0 {
		t.Errorf("ItemsTagged(99) = %v, want empty", got)
	}
}

// fakeLoader counts loads and serves a fixed snapshot per subject.
type fakeLoader struct {
	loads    atomic.Int64
	subjects []int64
	err      error
}

func (f *fakeLoader) LoadCatalog(_ context.Context, subjectID int64) (*Snapshot, error) {
	f.loads.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return NewSnapshot(subjectID, nil, nil, nil, nil, nil), nil
}

func (f *fakeLoader) ListSubjectIDs(_ context.Context) ([]int64, error) {
	return f.subjects, nil
}

func TestManagerCacheHit(t *testing.T) {
	loader := &fakeLoader{}
	m := NewManager(DefaultManagerConfig(), loader, logging.NewTestLogger())

	ctx := context.Background()
	first, err := m.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := m.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if first != second {
		t.Error("cached Get returned a different snapshot pointer")
	}
	if got := loader.loads.Load(); got != 1 {
		t.Errorf("loader calls = %d, want 1", got)
	}

	hits, misses := m.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Stats() = %d hits, %d misses, want 1, 1", hits, misses)
	}
}

func TestManagerTTLExpiry(t *testing.T) {
	loader := &fakeLoader{}
	cfg := DefaultManagerConfig()
	cfg.TTL = 5 * time.Millisecond
	m := NewManager(cfg, loader, logging.NewTestLogger())

	ctx := context.Background()
	if _, err := m.Get(ctx, 1); err != nil {
		t.Fatalf("Get: %v", err)
	}
	time.Sleep(15 * time.Millisecond)
	if _, err := m.Get(ctx, 1); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got := loader.loads.Load(); got != 2 {
		t.Errorf("loader calls = %d, want 2 after expiry", got)
	}
}

func TestManagerInvalidate(t *testing.T) {
	loader := &fakeLoader{}
	m := NewManager(DefaultManagerConfig(), loader, logging.NewTestLogger())

	ctx := context.Background()
	if _, err := m.Get(ctx, 1); err != nil {
		t.Fatalf("Get: %v", err)
	}
	m.Invalidate(1)
	if _, err := m.Get(ctx, 1); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got := loader.loads.Load(); got != 2 {
		t.Errorf("loader calls = %d, want 2 after invalidate", got)
	}
}

func TestManagerDisabledCache(t *testing.T) {
	loader := &fakeLoader{}
	cfg := DefaultManagerConfig()
	cfg.Enabled = false
	m := NewManager(cfg, loader, logging.NewTestLogger())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := m.Get(ctx, 1); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}

	if got := loader.loads.Load(); got != 3 {
		t.Errorf("loader calls = %d, want 3 with cache disabled", got)
	}
}

func TestManagerRefresh(t *testing.T) {
	loader := &fakeLoader{subjects: []int64{1, 2, 3}}
	m := NewManager(DefaultManagerConfig(), loader, logging.NewTestLogger())

	ctx := context.Background()
	if err := m.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := loader.loads.Load(); got != 3 {
		t.Errorf("loader calls = %d, want 3 after refresh", got)
	}

	// All three subjects should now be warm.
	for _, id := range loader.subjects {
		if _, err := m.Get(ctx, id); err != nil {
			t.Fatalf("Get(%d): %v", id, err)
		}
	}
	if got := loader.loads.Load(); got != 3 {
		t.Errorf("loader calls = %d, want 3 after warm gets", got)
	}
}

func TestManagerLoadError(t *testing.T) {
	wantErr := errors.New("boom")
	loader := &fakeLoader{err: wantErr}
	m := NewManager(DefaultManagerConfig(), loader, logging.NewTestLogger())

	if _, err := m.Get(context.Background(), 1); !errors.Is(err, wantErr) {
		t.Errorf("Get error = %v, want wrapped %v", err, wantErr)
	}
}
