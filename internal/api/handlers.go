// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

// Package api provides the HTTP surface: REST endpoints for ingestion,
// history, geofence management and commands, plus the WebSocket upgrade
// for real-time push.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct and constructor (this file)
//   - handlers_helpers.go: response envelope helpers
//   - handlers_auth.go: register and login
//   - handlers_locations.go: ingestion and history queries
//   - handlers_geofences.go: fence CRUD (admin only)
//   - handlers_command.go: remote command relay (admin only)
//   - handlers_users.go: user listing
//   - handlers_ws.go: WebSocket subscription
//   - handlers_audit.go: audit trail queries (admin only)
//   - handlers_health.go: liveness and readiness probes
package api

import (
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/geotrackd/geotrackd/internal/audit"
	"github.com/geotrackd/geotrackd/internal/auth"
	"github.com/geotrackd/geotrackd/internal/config"
	"github.com/geotrackd/geotrackd/internal/database"
	"github.com/geotrackd/geotrackd/internal/tracker"
	ws "github.com/geotrackd/geotrackd/internal/websocket"
)

// Handler contains the dependencies for all API handlers.
type Handler struct {
	db         *database.DB
	cfg        *config.Config
	jwtManager *auth.JWTManager
	hub        *ws.Hub
	pipeline   *tracker.Pipeline
	relay      *tracker.Relay
	audit      *audit.Logger
	startTime  time.Time
}

// NewHandler creates the API handler.
func NewHandler(db *database.DB, cfg *config.Config, jwtManager *auth.JWTManager, hub *ws.Hub, pipeline *tracker.Pipeline, relay *tracker.Relay, auditLog *audit.Logger) *Handler {
	return &Handler{
		db:         db,
		cfg:        cfg,
		jwtManager: jwtManager,
		hub:        hub,
		pipeline:   pipeline,
		relay:      relay,
		audit:      auditLog,
		startTime:  time.Now(),
	}
}

// getUpgrader builds the WebSocket upgrader with the configured origin
// policy. Non-browser clients send no Origin header and are accepted.
func (h *Handler) getUpgrader() gorillaws.Upgrader {
	origins := h.cfg.Security.CORSOrigins
	return gorillaws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range origins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}
}
