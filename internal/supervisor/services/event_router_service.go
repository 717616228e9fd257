// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/opencaliper/caliper/internal/events"
	"github.com/opencaliper/caliper/internal/logging"
)

// EventStream matches the bus side the router consumes. Satisfied by
// *events.Bus.
type EventStream interface {
	Subscribe(ctx context.Context) (<-chan *message.Message, error)
}

// JournalAppender matches the journal side. Satisfied by
// *journal.Journal.
type JournalAppender interface {
	Append(ctx context.Context, ev *events.SessionEvent) error
}

// FeedBroadcaster matches the live feed side. Satisfied by
// *websocket.Hub.
type FeedBroadcaster interface {
	BroadcastEvent(ev *events.SessionEvent)
}

// EventRouterService moves session events from the bus to their sinks:
// the Badger journal and the WebSocket feed. Either sink may be nil
// when the feature is disabled; the router then only serves the other.
//
// The session flow publishes and moves on. Everything downstream of the
// bus, including a router restart, is invisible to answer latency.
type EventRouterService struct {
	stream  EventStream
	journal JournalAppender
	feed    FeedBroadcaster
	log     zerolog.Logger
	name    string
}

// NewEventRouterService wires the bus to the journal and the live feed.
func NewEventRouterService(stream EventStream, journal JournalAppender, feed FeedBroadcaster) *EventRouterService {
	return &EventRouterService{
		stream:  stream,
		journal: journal,
		feed:    feed,
		log:     logging.With().Str("component", "event-router").Logger(),
		name:    "event-router",
	}
}

// Serve implements suture.Service. It subscribes on every start, so a
// supervisor restart re-establishes the stream. An unexpectedly closed
// stream is an error; the supervisor's backoff handles resubscription.
func (s *EventRouterService) Serve(ctx context.Context) error {
	msgs, err := s.stream.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to session events: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("session event stream closed")
			}
			s.handle(ctx, msg)
		}
	}
}

// handle routes one message. Messages are always acked: an undecodable
// frame would fail on every redelivery, and a journal error is logged
// rather than blocking the live feed behind endless retries of the
// same append.
func (s *EventRouterService) handle(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	ev, err := events.Decode(msg)
	if err != nil {
		s.log.Error().Err(err).
			Str("message_id", msg.UUID).
			Msg("Dropping undecodable session event")
		return
	}

	if s.journal != nil {
		if err := s.journal.Append(ctx, ev); err != nil {
			s.log.Error().Err(err).
				Str("event_id", ev.EventID).
				Str("session_id", ev.SessionID.String()).
				Msg("Journal append failed, event trail loses this entry")
		}
	}

	if s.feed != nil {
		s.feed.BroadcastEvent(ev)
	}
}

// String identifies the service in supervisor logs.
func (s *EventRouterService) String() string {
	return s.name
}
