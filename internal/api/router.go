// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opencaliper/caliper/internal/middleware"
)

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler so the middleware package works with
// r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Router assembles the HTTP route tree.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router around the given handler set.
func NewRouter(handler *Handler) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddlewareFromServer(handler.config.Server),
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	// CORS stays global so OPTIONS preflights are answered everywhere.
	r.Use(router.chiMiddleware.CORS())

	// Health endpoints run outside the default rate limit tier so
	// monitoring probes never compete with API traffic.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(middleware.Compression))
		r.Use(router.handler.perfMon.Middleware)

		// Adaptive sessions.
		r.With(router.chiMiddleware.RateLimitWrite()).Post("/sessions", router.handler.StartSession)
		r.Get("/sessions/{id}", router.handler.GetSession)
		r.With(router.chiMiddleware.RateLimitWrite()).Post("/sessions/{id}/answers", router.handler.AnswerSession)
		r.Get("/sessions/{id}/events", router.handler.SessionEvents)

		// Fixed forms.
		r.With(router.chiMiddleware.RateLimitWrite()).Post("/fixed-tests", router.handler.StartFixedTest)
		r.With(router.chiMiddleware.RateLimitWrite()).Post("/fixed-tests/{id}/submit", router.handler.SubmitFixedTest)

		// Ability reports.
		r.Get("/students/{id}/abilities", router.handler.StudentAbilities)

		// Item bank import.
		r.With(router.chiMiddleware.RateLimitImport()).Post("/import/items", router.handler.ImportItems)

		// Engine statistics.
		r.Get("/stats", router.handler.Stats)

		// Live event feed. The limit applies to upgrades, not frames.
		r.With(router.chiMiddleware.RateLimitWebSocket()).Get("/ws", router.handler.WebSocket)
	})

	// Observability.
	r.Handle("/metrics", promhttp.Handler())

	// Unmatched routes get the same envelope as handler errors.
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, errCodeNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, errCodeMethodNotAllowed, "method not allowed", nil)
	})

	return r
}
