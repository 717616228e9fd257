// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/opencaliper/caliper/internal/config"
	"github.com/opencaliper/caliper/internal/events"
	"github.com/opencaliper/caliper/internal/logging"
	"github.com/opencaliper/caliper/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown
	// path (SIGTERM via the supervisor).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline means the shutdown context expired.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Control message types exchanged with clients. Data messages carry the
// session event type directly ("session_started", "item_served",
// "item_answered", "session_finished").
const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// hubBufferSize is the hub's broadcast queue length.
const hubBufferSize = 256

// Message is the wire format pushed to clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// envelope pairs a message with its session so the hub can route it to
// subscribed clients only. uuid.Nil delivers to everyone.
type envelope struct {
	msg       Message
	sessionID uuid.UUID
}

// Hub maintains the set of connected clients and fans session events
// out to them.
type Hub struct {
	cfg        config.WebSocketConfig
	clients    map[*Client]bool
	broadcast  chan envelope
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub. Zero config fields fall back to the defaults,
// so tests can pass a partial config.
func NewHub(cfg config.WebSocketConfig) *Hub {
	def := config.DefaultConfig().WebSocket
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = def.PongTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = def.SendBufferSize
	}

	return &Hub{
		cfg:        cfg,
		broadcast:  make(chan envelope, hubBufferSize),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext runs the hub until the context is canceled, then
// closes every client and returns ctx.Err(). Designed for suture
// supervision: a restart gets a clean client set.
//
// Channel selection is priority ordered (shutdown, then lifecycle,
// then broadcast) because Go's select picks randomly among ready
// channels; without the ordering a queued broadcast could be delivered
// to a client whose unregister is already pending.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.add(client)

		case client := <-h.Unregister:
			h.remove(client)

		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

// BroadcastEvent queues a session event for delivery. Non-blocking: if
// the hub's queue is full the event is dropped with a warning, since a
// live feed must never stall the session flow feeding it.
func (h *Hub) BroadcastEvent(ev *events.SessionEvent) {
	if ev == nil {
		return
	}

	env := envelope{
		msg:       Message{Type: string(ev.Type), Data: ev},
		sessionID: ev.SessionID,
	}

	select {
	case h.broadcast <- env:
	default:
		logging.Warn().
			Str("type", string(ev.Type)).
			Str("session_id", ev.SessionID.String()).
			Msg("Broadcast queue full, dropping event")
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(count))
	logging.Info().Int("total_clients", count).Msg("WebSocket client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(count))
	logging.Info().Int("total_clients", count).Msg("WebSocket client disconnected")
}

// deliver fans an envelope out to subscribed clients in client-ID order.
// The ordering keeps delivery reproducible when several clients watch
// the same session. Clients with a full send queue are dropped; a
// reader that slow is not keeping up with its own session.
func (h *Hub) deliver(env envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		if !client.wants(env.sessionID) {
			continue
		}
		select {
		case client.send <- env.msg:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		logging.Warn().Uint64("client_id", client.id).Msg("Dropping WebSocket client with full send queue")
	}
	if len(toRemove) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

// shutdown closes every client and logs the reason. Cancellation is the
// expected stop path, so it is not logged as an error.
func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.WSConnections.Set(0)

	reason := ShutdownReasonContextCanceled
	if ctx.Err() == context.DeadlineExceeded {
		reason = ShutdownReasonContextDeadline
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(reason)).
		Int("clients_closed", len(clients)).
		Msg("WebSocket hub stopped")
}
