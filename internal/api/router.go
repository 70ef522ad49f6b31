// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geotrackd/geotrackd/internal/auth"
	"github.com/geotrackd/geotrackd/internal/config"
	"github.com/geotrackd/geotrackd/internal/middleware"
)

// Router builds the HTTP routing table.
type Router struct {
	handler *Handler
	authMW  *auth.Middleware
	cfg     *config.Config
}

// NewRouter creates a router around the handler and auth middleware.
func NewRouter(handler *Handler, authMW *auth.Middleware, cfg *config.Config) *Router {
	return &Router{handler: handler, authMW: authMW, cfg: cfg}
}

// Setup wires all routes with their middleware stacks.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.corsHandler())

	// Health probes: permissive rate limit so monitors can poll freely.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.Limit(1000, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Auth endpoints: strict rate limit against brute force.
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(router.rateLimit(10, time.Minute))
		r.Post("/register", router.handler.Register)
		r.With(router.rateLimit(5, 5*time.Minute)).Post("/login", router.handler.Login)
	})

	// Authenticated API.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.rateLimit(router.cfg.Security.RateLimitReqs, router.cfg.Security.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.authMW.Authenticate)

		r.Post("/locations", router.handler.IngestLocation)
		r.Get("/locations", router.handler.Locations)
		r.Get("/locations/latest", router.handler.LatestLocations)
		r.Get("/ws", router.handler.WebSocket)

		// Admin-only surface.
		r.Group(func(r chi.Router) {
			r.Use(router.authMW.RequireAdmin)

			r.Get("/users", router.handler.Users)
			r.Post("/command", router.handler.SendCommand)
			r.Get("/audit", router.handler.AuditEvents)

			r.Route("/geofences", func(r chi.Router) {
				r.Post("/", router.handler.CreateGeofence)
				r.Get("/", router.handler.Geofences)
				r.Get("/{id}", router.handler.GetGeofence)
				r.Put("/{id}", router.handler.UpdateGeofence)
				r.Delete("/{id}", router.handler.DeleteGeofence)
			})
		})
	})

	// Prometheus scrape endpoint.
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func (router *Router) corsHandler() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   router.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           86400,
	})
}

func (router *Router) rateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	if router.cfg.Security.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, window, httprate.WithKeyFuncs(httprate.KeyByIP))
}
