// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/opencaliper/caliper/internal/config"
	"github.com/opencaliper/caliper/internal/websocket"
)

func TestLiveFeedServiceRunsHub(t *testing.T) {
	hub := websocket.NewHub(config.WebSocketConfig{})
	svc := NewLiveFeedService(hub)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := serveAsync(ctx, svc.Serve)

	cancel()
	if err := waitErr(t, errCh); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve returned %v, want context.Canceled", err)
	}
}

func TestLiveFeedServiceString(t *testing.T) {
	svc := NewLiveFeedService(websocket.NewHub(config.WebSocketConfig{}))
	if svc.String() != "live-feed-hub" {
		t.Errorf("String() = %q, want live-feed-hub", svc.String())
	}
}
