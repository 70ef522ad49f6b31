// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package api

import (
	"net/http"

	"github.com/geotrackd/geotrackd/internal/auth"
	"github.com/geotrackd/geotrackd/internal/logging"
	"github.com/geotrackd/geotrackd/internal/models"
	ws "github.com/geotrackd/geotrackd/internal/websocket"
)

// WebSocket upgrades the connection and subscribes it to a push group.
//
// By default the caller subscribes to their own group and receives their
// location updates, alerts addressed to them, and commands. An admin may
// pass ?user_id= to watch another user's stream instead.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	groupUserID := claims.UserID
	if target, err := int64QueryParam(r, "user_id"); err == nil && target != nil {
		// Naming yourself is always allowed; anyone else's stream needs
		// admin.
		if *target != claims.UserID && !claims.IsAdmin {
			respondError(w, http.StatusForbidden, "FORBIDDEN", "Only admins may subscribe to another user's stream", nil)
			return
		}
		groupUserID = *target
	} else if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	group := models.GroupForUser(groupUserID)
	client := ws.NewClient(h.hub, conn, group)
	h.hub.Join(group, client)
	client.Start()

	logging.Info().
		Int64("user_id", claims.UserID).
		Str("group", string(group)).
		Msg("WebSocket subscriber connected")
}
