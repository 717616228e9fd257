// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

// Package catalog provides read-optimized snapshots of the item bank and a
// TTL-cached manager that serves them to the selection pipeline.
//
// A Snapshot is immutable after construction: the manager hands the same
// pointer to concurrent readers, so callers must treat every returned slice
// and map value as read-only.
package catalog

import (
	"sort"
	"time"

	"github.com/opencaliper/caliper/internal/irt"
	"github.com/opencaliper/caliper/internal/models"
)

// Snapshot is one subject's item bank at a point in time: active items,
// their answer options, topic tags, and IRT calibration.
type Snapshot struct {
	subjectID int64
	builtAt   time.Time

	items []models.Item // sorted by ID
	byID  map[int64]int // item ID -> index into items

	options map[int64][]models.ItemOption
	tags    map[int64][]int64 // item ID -> topic IDs, sorted
	params  map[int64]irt.Params

	topics  map[int64]models.Topic
	byTopic map[int64][]int64 // topic ID -> item IDs, sorted
}

// NewSnapshot assembles a snapshot from raw catalogue rows. Items are
// ordered by ID and a reverse topic index is built so rule evaluation can
// resolve topic blocks without scanning.
func NewSnapshot(
	subjectID int64,
	items []models.Item,
	options map[int64][]models.ItemOption,
	tags map[int64][]int64,
	params map[int64]irt.Params,
	topics map[int64]models.Topic,
) *Snapshot {
	sorted := make([]models.Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	byID := make(map[int64]int, len(sorted))
	for i, item := range sorted {
		byID[item.ID] = i
	}

	byTopic := make(map[int64][]int64)
	for itemID, topicIDs := range tags {
		if _, ok := byID[itemID]; !ok {
			continue
		}
		ts := make([]int64, len(topicIDs))
		copy(ts, topicIDs)
		sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })
		tags[itemID] = ts
		for _, topicID := range ts {
			byTopic[topicID] = append(byTopic[topicID], itemID)
		}
	}
	for topicID := range byTopic {
		ids := byTopic[topicID]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		byTopic[topicID] = ids
	}

	return &Snapshot{
		subjectID: subjectID,
		builtAt:   time.Now().UTC(),
		items:     sorted,
		byID:      byID,
		options:   options,
		tags:      tags,
		params:    params,
		topics:    topics,
		byTopic:   byTopic,
	}
}

// SubjectID returns the subject this snapshot covers.
func (s *Snapshot) SubjectID() int64 { return s.subjectID }

// BuiltAt returns when the snapshot was assembled.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Len returns the number of active items.
func (s *Snapshot) Len() int { return len(s.items) }

// Items returns all active items ordered by ID. Read-only.
func (s *Snapshot) Items() []models.Item { return s.items }

// ItemIDs returns the IDs of all active items in ascending order.
func (s *Snapshot) ItemIDs() []int64 {
	ids := make([]int64, len(s.items))
	for i, item := range s.items {
		ids[i] = item.ID
	}
	return ids
}

// Item looks up one item by ID.
func (s *Snapshot) Item(id int64) (models.Item, bool) {
	i, ok := s.byID[id]
	if !ok {
		return models.Item{}, false
	}
	return s.items[i], true
}

// OptionsFor returns the answer options of an item. Read-only.
func (s *Snapshot) OptionsFor(itemID int64) []models.ItemOption {
	return s.options[itemID]
}

// Option looks up one answer option of an item.
func (s *Snapshot) Option(itemID, optionID int64) (models.ItemOption, bool) {
	for _, opt := range s.options[itemID] {
		if opt.ID == optionID {
			return opt, true
		}
	}
	return models.ItemOption{}, false
}

// TopicIDs returns the topic tags of an item in ascending order. Read-only.
func (s *Snapshot) TopicIDs(itemID int64) []int64 {
	return s.tags[itemID]
}

// Params returns the IRT calibration of an item. The zero value (all nil)
// means the item is uncalibrated.
func (s *Snapshot) Params(itemID int64) irt.Params {
	return s.params[itemID]
}

// Topic looks up a topic belonging to this subject.
func (s *Snapshot) Topic(id int64) (models.Topic, bool) {
	t, ok := s.topics[id]
	return t, ok
}

// HasTopic reports whether the topic belongs to this subject.
func (s *Snapshot) HasTopic(id int64) bool {
	_, ok := s.topics[id]
	return ok
}

// ItemsTagged returns the IDs of active items carrying the given topic tag,
// ascending. Read-only.
func (s *Snapshot) ItemsTagged(topicID int64) []int64 {
	return s.byTopic[topicID]
}
