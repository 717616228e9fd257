// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

// Package supervisor builds the engine's suture supervision tree.
//
// The tree has three child supervisors under one root:
//
//	caliper
//	├── storage-layer   journal GC, catalogue refresh
//	├── events-layer    live feed hub, event router
//	└── api-layer       HTTP server
//
// Each layer restarts its own failures with the shared backoff policy
// from TreeConfig. Supervisor lifecycle events are logged through
// sutureslog into the engine's structured logger.
//
// The service wrappers that adapt concrete components to
// suture.Service live in the services subpackage; main composes them:
//
//	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
//	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.Timeout))
//	tree.AddEventsService(services.NewEventRouterService(bus, jrn, hub))
//	err := tree.Serve(ctx)
package supervisor
