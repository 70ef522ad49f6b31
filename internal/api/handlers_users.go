// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package api

import (
	"net/http"
	"time"

	"github.com/geotrackd/geotrackd/internal/models"
)

// Users lists all registered users (id and username only).
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	users, err := h.db.ListUsers(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to query users", err)
		return
	}
	if users == nil {
		users = []models.UserSummary{}
	}
	respondSuccess(w, http.StatusOK, users, start)
}
