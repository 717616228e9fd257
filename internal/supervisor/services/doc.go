// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

// Package services wraps the engine's long-running components as
// suture.Service implementations.
//
// Each wrapper adapts one component's native lifecycle to the
// supervisor's Serve(ctx) pattern:
//
//   - HTTPServerService: ListenAndServe in a goroutine, graceful
//     Shutdown on cancellation.
//   - LiveFeedService: delegates to the hub's RunWithContext.
//   - EventRouterService: consumes the session event bus and fans
//     events out to the journal and the live feed.
//   - CatalogRefreshService: periodic snapshot refresh.
//   - JournalGCService: periodic Badger value-log compaction.
//
// The wrappers depend on small local interfaces rather than the
// concrete packages, so the supervisor tree composes without import
// cycles and the tests run against fakes.
//
// Restart semantics: a wrapper returns ctx.Err() on orderly shutdown
// and a real error on failure. Suture restarts failed services with
// the tree's backoff policy; each Serve call must therefore establish
// its own state (listeners, subscriptions, tickers) from scratch.
package services
