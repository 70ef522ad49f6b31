// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/geotrackd/geotrackd/internal/audit"
	"github.com/geotrackd/geotrackd/internal/auth"
	"github.com/geotrackd/geotrackd/internal/database"
	"github.com/geotrackd/geotrackd/internal/middleware"
	"github.com/geotrackd/geotrackd/internal/models"
)

// SendCommand relays a remote command to the target user's connected
// devices. Delivery is fire-and-forget: the response reports how many
// devices were connected at publish time, not receipt.
func (h *Handler) SendCommand(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.CommandRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if _, err := h.db.GetUserByID(r.Context(), req.UserID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Target user not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to verify target user", err)
		return
	}

	connected := h.hub.GroupSize(models.GroupForUser(req.UserID))
	h.relay.SendCommand(req.UserID, req.Command)

	claims := auth.ClaimsFromContext(r.Context())
	h.audit.Log(&audit.Event{
		Type:        audit.EventCommandSent,
		Outcome:     audit.OutcomeSuccess,
		ActorID:     claims.UserID,
		ActorName:   claims.Username,
		TargetID:    req.UserID,
		Description: "Command '" + req.Command + "' sent",
		SourceIP:    audit.SourceIP(r),
		RequestID:   middleware.GetRequestID(r.Context()),
	})

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"user_id":           req.UserID,
		"command":           req.Command,
		"devices_connected": connected,
	}, start)
}
