// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

// fakeHTTPServer blocks in ListenAndServe until Shutdown releases it,
// mirroring *http.Server's lifecycle.
type fakeHTTPServer struct {
	mu             sync.Mutex
	listenErr      error
	shutdownErr    error
	shutdownCalled bool
	released       bool
	release        chan struct{}
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{release: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	f.mu.Lock()
	err := f.listenErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	<-f.release
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdownCalled = true
	if !f.released {
		f.released = true
		close(f.release)
	}
	return f.shutdownErr
}

func (f *fakeHTTPServer) wasShutdown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdownCalled
}

// serveAsync runs a service and returns the channel its result lands on.
func serveAsync(ctx context.Context, serve func(context.Context) error) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- serve(ctx) }()
	return errCh
}

func waitErr(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return in time")
		return nil
	}
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	srv := newFakeHTTPServer()
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := serveAsync(ctx, svc.Serve)

	cancel()
	if err := waitErr(t, errCh); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve returned %v, want context.Canceled", err)
	}
	if !srv.wasShutdown() {
		t.Error("Shutdown was not called on cancellation")
	}
}

func TestHTTPServerServiceListenFailure(t *testing.T) {
	srv := newFakeHTTPServer()
	srv.listenErr = errors.New("address already in use")
	svc := NewHTTPServerService(srv, time.Second)

	err := waitErr(t, serveAsync(context.Background(), svc.Serve))
	if err == nil || !errors.Is(err, srv.listenErr) {
		t.Errorf("Serve returned %v, want wrapped listen error", err)
	}
	if srv.wasShutdown() {
		t.Error("Shutdown called for a server that never started")
	}
}

func TestHTTPServerServiceExternalClose(t *testing.T) {
	// A server closed from outside the service reports nil, not a
	// crash, so the supervisor does not restart it in a loop.
	srv := newFakeHTTPServer()
	svc := NewHTTPServerService(srv, time.Second)

	errCh := serveAsync(context.Background(), svc.Serve)
	_ = srv.Shutdown(context.Background())

	if err := waitErr(t, errCh); err != nil {
		t.Errorf("Serve returned %v, want nil for ErrServerClosed", err)
	}
}

func TestHTTPServerServiceShutdownFailure(t *testing.T) {
	srv := newFakeHTTPServer()
	srv.shutdownErr = errors.New("connections still draining")
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := serveAsync(ctx, svc.Serve)

	cancel()
	err := waitErr(t, errCh)
	if err == nil || !errors.Is(err, srv.shutdownErr) {
		t.Errorf("Serve returned %v, want wrapped shutdown error", err)
	}
}

func TestHTTPServerServiceDefaults(t *testing.T) {
	svc := NewHTTPServerService(newFakeHTTPServer(), 0)
	if svc.shutdownTimeout != 10*time.Second {
		t.Errorf("shutdownTimeout = %v, want 10s default", svc.shutdownTimeout)
	}
	if svc.String() != "http-server" {
		t.Errorf("String() = %q, want http-server", svc.String())
	}
}
