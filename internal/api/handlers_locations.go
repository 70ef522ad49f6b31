// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/geotrackd/geotrackd/internal/auth"
	"github.com/geotrackd/geotrackd/internal/database"
	"github.com/geotrackd/geotrackd/internal/models"
)

// IngestLocation accepts one location report from the authenticated
// device and runs it through the full pipeline: persist, stream, evaluate
// fences.
func (h *Handler) IngestLocation(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	claims := auth.ClaimsFromContext(r.Context())

	var req models.LocationSample
	if !decodeAndValidate(w, r, &req) {
		return
	}

	// The reporter is the token holder; a client cannot submit samples
	// for someone else.
	req.UserID = claims.UserID
	req.ID = 0

	if err := h.pipeline.Ingest(r.Context(), &req, claims.Username); err != nil {
		respondError(w, http.StatusServiceUnavailable, "STORAGE_ERROR", "Failed to persist location", err)
		return
	}

	respondSuccess(w, http.StatusCreated, req, start)
}

// Locations returns location history, newest first. Admins see everyone
// and may filter by user_id; other users see only their own samples.
//
// Query parameters: user_id, date (YYYY-MM-DD), limit, offset.
func (h *Handler) Locations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	claims := auth.ClaimsFromContext(r.Context())

	filter := database.LocationFilter{}

	userID, err := int64QueryParam(r, "user_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if claims.IsAdmin {
		filter.UserID = userID
	} else {
		// Non-admins are pinned to their own history.
		own := claims.UserID
		filter.UserID = &own
	}

	day, err := dateQueryParam(r, "date")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	filter.Day = day

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
	if err != nil || offset < 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "offset must be a non-negative integer", nil)
		return
	}
	filter.Offset = offset

	samples, err := h.db.ListLocations(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to query locations", err)
		return
	}
	if samples == nil {
		samples = []models.LocationSample{}
	}
	respondSuccess(w, http.StatusOK, samples, start)
}

// LatestLocations returns the caller's samples newer than the optional
// since parameter (RFC3339), oldest first, for map views that poll
// instead of subscribing. Admins may pass user_id to poll another
// user's trajectory; for everyone else the parameter is ignored.
func (h *Handler) LatestLocations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	claims := auth.ClaimsFromContext(r.Context())

	since, err := timeQueryParam(r, "since")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	target := claims.UserID
	if claims.IsAdmin {
		userID, err := int64QueryParam(r, "user_id")
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		if userID != nil {
			if _, err := h.db.GetUserByID(r.Context(), *userID); err != nil {
				if errors.Is(err, database.ErrNotFound) {
					respondError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found", nil)
				} else {
					respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to look up user", err)
				}
				return
			}
			target = *userID
		}
	}

	samples, err := h.db.LatestLocations(r.Context(), target, since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to query latest locations", err)
		return
	}
	if samples == nil {
		samples = []models.LocationSample{}
	}
	respondSuccess(w, http.StatusOK, samples, start)
}
