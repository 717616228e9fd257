// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

/*
Package websocket streams live session progress to connected clients.

The event router feeds session events into a central Hub, which fans
them out to gorilla/websocket clients. A proctoring dashboard watches
everything; a student's own client subscribes to just its session.

Key Components:

  - Hub: broker owning the client set and the broadcast queue
  - Client: one connection with read/write pump goroutines
  - Message: {"type": <event type>, "data": <session event>}

Architecture:

	session controller → events.Bus → router service
	                                       │
	                                  Hub.BroadcastEvent
	                                       │
	                       ┌───────────────┼───────────────┐
	                   Client (all)   Client (sess A)  Client (sess B)

Each client runs two goroutines: readPump keeps the connection's read
deadline alive through pongs and answers application-level pings;
writePump serializes hub messages and sends keepalive pings.

Message Types:

Data messages reuse the session event types: session_started,
item_served, item_answered, session_finished. The data payload is the
events.SessionEvent JSON. Control messages are "ping" and "pong".

Subscription:

Clients subscribe through the upgrade endpoint's session_id query
parameter. Without it the client receives every event:

	GET /api/v1/ws                      full feed
	GET /api/v1/ws?session_id=<uuid>    one session

Backpressure:

The hub never blocks on a client. A client whose send queue is full is
disconnected, and a full hub queue drops the event with a warning; the
live feed is best-effort while the journal remains the complete record.

Lifecycle:

RunWithContext runs under the supervision tree. On cancellation the hub
closes every client and returns, so a supervisor restart starts from a
clean client set.
*/
package websocket
