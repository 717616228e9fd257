// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/opencaliper/caliper/internal/config"
	"github.com/opencaliper/caliper/internal/metrics"
)

// Bus is the in-process session event bus. Publishing is non-blocking
// up to the configured buffer; each subscriber gets its own copy of
// every event published after it subscribed.
type Bus struct {
	pubsub *gochannel.GoChannel

	mu     sync.RWMutex
	closed bool
}

// NewBus creates the bus with the configured per-subscriber buffer.
func NewBus(cfg *config.EventsConfig) *Bus {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: int64(cfg.BufferSize),
		},
		newWatermillLogger(),
	)
	return &Bus{pubsub: pubsub}
}

// Publish validates, serializes, and publishes one session event. The
// message UUID is the event ID, and the event type rides along in the
// metadata so subscribers can filter without decoding.
func (b *Bus) Publish(ctx context.Context, ev SessionEvent) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("event bus is closed")
	}
	b.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := ev.Marshal()
	if err != nil {
		return err
	}

	msg := message.NewMessage(ev.EventID, data)
	msg.Metadata.Set("type", string(ev.Type))
	msg.Metadata.Set("session_id", ev.SessionID.String())

	if err := b.pubsub.Publish(Topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}

	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
	return nil
}

// Subscribe returns a channel of raw messages on the session topic.
// The channel closes when ctx is canceled or the bus shuts down.
// Consumers must Ack or Nack every message.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("event bus is closed")
	}
	return b.pubsub.Subscribe(ctx, Topic)
}

// Decode unpacks a bus message back into a session event.
func Decode(msg *message.Message) (*SessionEvent, error) {
	return Unmarshal(msg.Payload)
}

// Close shuts the bus down. Subscriber channels close once in-flight
// messages are handled. Safe to call more than once.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}
