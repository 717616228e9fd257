// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

// Package api provides the HTTP surface of the testing engine: session
// lifecycle, fixed forms, ability reports, item bank import, the live
// WebSocket feed, and operational endpoints.
//
// # Routes
//
//	POST /api/v1/sessions                     start an adaptive session
//	GET  /api/v1/sessions/{id}                session state
//	POST /api/v1/sessions/{id}/answers        grade one answer, serve the next item
//	GET  /api/v1/sessions/{id}/events         journaled event trail
//	POST /api/v1/fixed-tests                  start a fixed form
//	POST /api/v1/fixed-tests/{id}/submit      grade a whole form
//	GET  /api/v1/students/{id}/abilities      per-topic ability report
//	POST /api/v1/import/items                 JSONL item bank import
//	GET  /api/v1/ws                           WebSocket live feed
//	GET  /api/v1/stats                        engine statistics
//	GET  /api/v1/health                       health document
//	GET  /api/v1/health/live                  liveness probe
//	GET  /api/v1/health/ready                 readiness probe
//	GET  /metrics                             Prometheus metrics
//
// # Response Envelope
//
// Every JSON endpoint answers with models.APIResponse:
//
//	{
//	  "status": "success",
//	  "data": {...},
//	  "metadata": {"timestamp": "...", "query_time_ms": 4}
//	}
//
// Errors carry a machine-readable code mapped from the session
// controller's error kinds (see errors.go for the status mapping):
//
//	{
//	  "status": "error",
//	  "error": {"code": "OPTION_MISMATCH", "message": "..."}
//	}
//
// # Authentication
//
// The engine does not authenticate callers. It is designed to sit
// behind a gateway that terminates auth and forwards student identity;
// requests name students explicitly.
package api
