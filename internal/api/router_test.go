// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package api

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/opencaliper/caliper/internal/config"
	"github.com/opencaliper/caliper/internal/events"
	ws "github.com/opencaliper/caliper/internal/websocket"
)

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/health", nil)
	var health healthStatus
	successData(t, rec, http.StatusOK, &health)

	if health.Status != "healthy" {
		t.Errorf("status = %q, want healthy", health.Status)
	}
	if health.Version != engineVersion {
		t.Errorf("version = %q, want %q", health.Version, engineVersion)
	}
	if !health.DatabaseConnected {
		t.Error("database_connected = false with a live database")
	}
	if !health.JournalEnabled {
		t.Error("journal_enabled = false with an open journal")
	}
	if health.LiveFeedEnabled {
		t.Error("live_feed_enabled = true without a hub")
	}
}

func TestHealthLiveEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/health/live", nil)
	var live struct {
		Alive  bool    `json:"alive"`
		Uptime float64 `json:"uptime"`
	}
	successData(t, rec, http.StatusOK, &live)

	if !live.Alive {
		t.Error("alive = false from a serving process")
	}
	if live.Uptime < 0 {
		t.Errorf("uptime = %f, want >= 0", live.Uptime)
	}
}

func TestHealthReadyEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/health/ready", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	if env.Status != "ready" {
		t.Errorf("envelope status = %q, want ready", env.Status)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["ready_to_serve"] != true {
		t.Errorf("ready_to_serve = %v, want true", data["ready_to_serve"])
	}
	if data["database_connected"] != true {
		t.Errorf("database_connected = %v, want true", data["database_connected"])
	}
}

func TestStatsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	subjectID := ts.seedBank("Chemistry", 6)

	// Generate some traffic so the window has samples and the catalogue
	// has been consulted.
	ts.startSession(601, subjectID, 3)

	rec := ts.do(http.MethodGet, "/api/v1/stats", nil)
	var stats engineStats
	successData(t, rec, http.StatusOK, &stats)

	if stats.UptimeSeconds < 0 {
		t.Errorf("uptime_seconds = %d, want >= 0", stats.UptimeSeconds)
	}
	if stats.Database.Items < 6 {
		t.Errorf("database.items = %d, want >= 6 after seeding", stats.Database.Items)
	}
	if stats.Database.Sessions < 1 {
		t.Errorf("database.sessions = %d, want >= 1 after a session start", stats.Database.Sessions)
	}
	if stats.Database.OpenConnections == 0 {
		t.Error("database.open_connections = 0, want an open pool")
	}
	if stats.Catalog.Hits+stats.Catalog.Misses == 0 {
		t.Error("catalog counters are all zero after a session start")
	}
	if stats.WebSocketClients != 0 {
		t.Errorf("websocket_clients = %d, want 0 without a hub", stats.WebSocketClients)
	}
	if len(stats.Endpoints) == 0 {
		t.Fatal("endpoint stats are empty after recorded traffic")
	}
	// Endpoint entries are keyed "METHOD path".
	found := false
	for _, ep := range stats.Endpoints {
		if ep.Path == "POST /api/v1/sessions" && ep.RequestCount >= 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("no endpoint entry for POST /api/v1/sessions in %+v", stats.Endpoints)
	}
}

func TestRouteNotFound(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/v1/nonexistent", "/nowhere"} {
		rec := ts.do(http.MethodGet, path, nil)
		requireErrorCode(t, rec, http.StatusNotFound, errCodeNotFound)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodDelete, "/api/v1/sessions", nil)
	requireErrorCode(t, rec, http.StatusMethodNotAllowed, errCodeMethodNotAllowed)
}

func TestSecurityHeaders(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/stats", nil)
	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for name, want := range headers {
		if got := rec.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS set on a plain HTTP request: %q", got)
	}

	// Behind a TLS-terminating proxy the forwarded proto turns HSTS on.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS missing behind a TLS-terminating proxy")
	}
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/health/live", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("no X-Request-ID generated for the response")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	req.Header.Set("X-Request-ID", "trace-me-123")
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "trace-me-123" {
		t.Errorf("X-Request-ID = %q, want the caller's trace-me-123", got)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.RateLimitDisabled = false
		cfg.Server.RateLimitReqs = 2
		cfg.Server.RateLimitWindow = time.Minute
	})

	for i := 0; i < 2; i++ {
		if rec := ts.do(http.MethodGet, "/api/v1/stats", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}
	if rec := ts.do(http.MethodGet, "/api/v1/stats", nil); rec.Code != http.StatusTooManyRequests {
		t.Errorf("request 3 status = %d, want 429", rec.Code)
	}

	// Health probes run in their own tier and keep answering.
	if rec := ts.do(http.MethodGet, "/api/v1/health/live", nil); rec.Code != http.StatusOK {
		t.Errorf("health probe status = %d after API limit hit, want 200", rec.Code)
	}
}

func TestCORSSimpleRequest(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK && rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 200 or 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("Access-Control-Allow-Methods not set on preflight")
	}
	// The preflight must be answered by CORS, not routed to the
	// handler, which would reject the empty body.
	if strings.Contains(rec.Body.String(), "error") {
		t.Errorf("preflight reached the handler: %s", rec.Body.String())
	}
}

func TestGzipEncodedResponse(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", got)
	}

	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	defer zr.Close()
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read gzip body: %v", err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode decompressed envelope: %v", err)
	}
	if env.Status != "success" {
		t.Errorf("envelope status = %q, want success", env.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	// A pass through the instrumented group guarantees at least one
	// api_requests_total sample exists.
	ts.do(http.MethodGet, "/api/v1/stats", nil)

	rec := ts.do(http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "api_requests_total") {
		t.Error("exposition is missing api_requests_total")
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("exposition is missing the Go runtime collector")
	}
}

func TestWebSocketFeedDisabled(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/ws", nil)
	requireErrorCode(t, rec, http.StatusServiceUnavailable, errCodeUnavailable)
}

func TestWebSocketBadSessionID(t *testing.T) {
	ts := newTestServer(t)

	// The session check runs before the upgrade, so the hub only has
	// to exist.
	hub := ws.NewHub(ts.cfg.WebSocket)
	handler := NewHandler(ts.db, ts.handler.sessions, ts.handler.importer, ts.cat, ts.jrn, hub, ts.cfg)
	router := NewRouter(handler).Setup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws?session_id=not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	requireErrorCode(t, rec, http.StatusBadRequest, errCodeBadRequest)
}

// newLiveFeedServer starts a real HTTP server with a running hub so
// gorilla clients can complete the upgrade handshake.
func newLiveFeedServer(t *testing.T, ts *testServer) (*ws.Hub, *httptest.Server) {
	t.Helper()

	hub := ws.NewHub(ts.cfg.WebSocket)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.RunWithContext(ctx)
	}()

	handler := NewHandler(ts.db, ts.handler.sessions, ts.handler.importer, ts.cat, ts.jrn, hub, ts.cfg)
	srv := httptest.NewServer(NewRouter(handler).Setup())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return hub, srv
}

// dialFeed opens a WebSocket client against the live feed endpoint.
func dialFeed(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	addr := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// waitForClients polls until the hub has registered want clients.
func waitForClients(t *testing.T, hub *ws.Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for hub.GetClientCount() < want {
		if time.Now().After(deadline) {
			t.Fatalf("hub has %d clients, want %d", hub.GetClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// feedFrame mirrors the hub's wire format.
type feedFrame struct {
	Type string              `json:"type"`
	Data events.SessionEvent `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) feedFrame {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame feedFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("decode frame: %v (raw: %s)", err, raw)
	}
	return frame
}

func TestWebSocketSessionFilter(t *testing.T) {
	ts := newTestServer(t)
	hub, srv := newLiveFeedServer(t, ts)

	target := uuid.New()
	other := uuid.New()

	conn := dialFeed(t, srv, "?session_id="+target.String())
	waitForClients(t, hub, 1)

	// The foreign event is queued first; a leaky filter would deliver
	// it ahead of the subscribed session's event.
	otherEv := events.NewSessionEvent(events.TypeItemServed, other, 11, 1)
	hub.BroadcastEvent(&otherEv)

	itemID := int64(42)
	targetEv := events.NewSessionEvent(events.TypeItemServed, target, 7, 1)
	targetEv.Position = 1
	targetEv.ItemID = &itemID
	hub.BroadcastEvent(&targetEv)

	frame := readFrame(t, conn)
	if frame.Type != string(events.TypeItemServed) {
		t.Errorf("frame type = %q, want %q", frame.Type, events.TypeItemServed)
	}
	if frame.Data.SessionID != target {
		t.Errorf("frame session = %s, want %s", frame.Data.SessionID, target)
	}
	if frame.Data.ItemID == nil || *frame.Data.ItemID != itemID {
		t.Errorf("frame item_id = %v, want %d", frame.Data.ItemID, itemID)
	}
}

func TestWebSocketFirehose(t *testing.T) {
	ts := newTestServer(t)
	hub, srv := newLiveFeedServer(t, ts)

	conn := dialFeed(t, srv, "")
	waitForClients(t, hub, 1)

	ev := events.NewSessionEvent(events.TypeSessionFinished, uuid.New(), 9, 1)
	ev.StopReason = "target_reached"
	hub.BroadcastEvent(&ev)

	frame := readFrame(t, conn)
	if frame.Type != string(events.TypeSessionFinished) {
		t.Errorf("frame type = %q, want %q", frame.Type, events.TypeSessionFinished)
	}
	if frame.Data.StopReason != "target_reached" {
		t.Errorf("frame stop_reason = %q, want target_reached", frame.Data.StopReason)
	}
}
