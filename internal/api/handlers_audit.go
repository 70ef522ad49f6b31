// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package api

import (
	"net/http"
	"time"

	"github.com/geotrackd/geotrackd/internal/audit"
)

// AuditEvents returns the audit trail, newest first. Query params:
// type, actor_id, since (RFC3339), limit, offset.
func (h *Handler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	filter := audit.QueryFilter{Type: audit.EventType(r.URL.Query().Get("type"))}

	limit, err := intQueryParam(r, "limit", h.cfg.API.DefaultPageSize)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if limit < 1 || limit > h.cfg.API.MaxPageSize {
		limit = h.cfg.API.DefaultPageSize
	}
	filter.Limit = limit

	offset, err := intQueryParam(r, "offset", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	filter.Offset = offset

	actorID, err := int64QueryParam(r, "actor_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if actorID != nil {
		filter.ActorID = *actorID
	}

	since, err := timeQueryParam(r, "since")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	filter.Since = since

	events, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to query audit events", err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	respondSuccess(w, http.StatusOK, events, start)
}
