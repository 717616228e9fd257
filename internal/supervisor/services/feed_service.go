// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package services

import (
	"context"
)

// FeedHub matches the live feed hub's run loop. Satisfied by
// *websocket.Hub.
type FeedHub interface {
	RunWithContext(ctx context.Context) error
}

// LiveFeedService runs the WebSocket hub under supervision. The hub's
// RunWithContext already follows the suture.Service pattern, so the
// wrapper only contributes a stable name for supervisor logs. A restart
// after a crash starts with an empty client set; clients reconnect.
type LiveFeedService struct {
	hub  FeedHub
	name string
}

// NewLiveFeedService wraps the live feed hub.
func NewLiveFeedService(hub FeedHub) *LiveFeedService {
	return &LiveFeedService{
		hub:  hub,
		name: "live-feed-hub",
	}
}

// Serve implements suture.Service.
func (s *LiveFeedService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String identifies the service in supervisor logs.
func (s *LiveFeedService) String() string {
	return s.name
}
