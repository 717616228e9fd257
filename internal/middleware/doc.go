// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

/*
Package middleware provides HTTP middleware for the API server.

The package covers three infrastructure concerns:

  - Compression: gzip encoding for clients that accept it
  - PerformanceMonitor: sliding-window latency tracking with
    per-endpoint percentiles, surfaced through the stats endpoint
  - PrometheusMetrics: request counters, latency histograms and the
    in-flight gauge, labelled by matched route pattern

Compression and PrometheusMetrics use the http.HandlerFunc signature;
the api package bridges them onto Chi's middleware chain. The
PerformanceMonitor's Middleware method is Chi-compatible directly.

Request ID and correlation ID handling lives in the api package, built
on Chi's RequestID middleware and the logging context helpers.

All components are safe for concurrent use.
*/
package middleware
