// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/opencaliper/caliper/internal/metrics"
)

func TestPrometheusMetricsPassthrough(t *testing.T) {
	tests := []struct {
		name   string
		method string
		status int
	}{
		{name: "ok", method: http.MethodGet, status: http.StatusOK},
		{name: "created", method: http.MethodPost, status: http.StatusCreated},
		{name: "bad request", method: http.MethodPost, status: http.StatusBadRequest},
		{name: "not found", method: http.MethodGet, status: http.StatusNotFound},
		{name: "conflict", method: http.MethodPost, status: http.StatusConflict},
		{name: "internal error", method: http.MethodGet, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			req := httptest.NewRequest(tt.method, "/api/v1/test", nil)
			rec := httptest.NewRecorder()

			handler(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestPrometheusMetricsDefaultStatus(t *testing.T) {
	handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("no explicit WriteHeader"))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/test", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want implicit %d", rec.Code, http.StatusOK)
	}
}

func TestPrometheusMetricsRoutePatternLabel(t *testing.T) {
	// Mounted under chi, the endpoint label must be the route pattern,
	// not the raw path with its per-session UUID.
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return PrometheusMetrics(next.ServeHTTP)
	})
	r.Get("/pattern-check/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/pattern-check/{id}", "200")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest(http.MethodGet, "/pattern-check/3f2c9a70-0000-0000-0000-000000000001", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("pattern-labelled counter = %v, want %v", got, before+1)
	}

	rawPath := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/pattern-check/3f2c9a70-0000-0000-0000-000000000001", "200")
	if got := testutil.ToFloat64(rawPath); got != 0 {
		t.Errorf("raw path leaked into the endpoint label (count %v)", got)
	}
}

func TestPrometheusMetricsRawPathFallback(t *testing.T) {
	// Outside a chi router there is no pattern to use.
	handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/fallback-check", "200")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest(http.MethodGet, "/fallback-check", nil)
	handler(httptest.NewRecorder(), req)

	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("fallback counter = %v, want %v", got, before+1)
	}
}

func TestPrometheusMetricsInFlight(t *testing.T) {
	baseline := testutil.ToFloat64(metrics.APIRequestsInFlight)

	handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
		if got := testutil.ToFloat64(metrics.APIRequestsInFlight); got != baseline+1 {
			t.Errorf("in-flight gauge during request = %v, want %v", got, baseline+1)
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/test", nil)
	handler(httptest.NewRecorder(), req)

	if got := testutil.ToFloat64(metrics.APIRequestsInFlight); got != baseline {
		t.Errorf("in-flight gauge after request = %v, want %v", got, baseline)
	}
}
