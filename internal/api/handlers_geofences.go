// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/geotrackd/geotrackd/internal/audit"
	"github.com/geotrackd/geotrackd/internal/auth"
	"github.com/geotrackd/geotrackd/internal/database"
	"github.com/geotrackd/geotrackd/internal/logging"
	"github.com/geotrackd/geotrackd/internal/middleware"
	"github.com/geotrackd/geotrackd/internal/models"
)

// CreateGeofence creates a fence owned by the calling admin.
func (h *Handler) CreateGeofence(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	claims := auth.ClaimsFromContext(r.Context())

	var req models.Geofence
	if !decodeAndValidate(w, r, &req) {
		return
	}
	req.ID = 0
	req.OwnerID = claims.UserID

	if _, err := h.db.GetUserByID(r.Context(), req.TrackedUserID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "tracked_user_id does not exist", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to verify tracked user", err)
		return
	}

	if err := h.db.CreateGeofence(r.Context(), &req); err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to create geofence", err)
		return
	}

	logging.Info().
		Int64("fence_id", req.ID).
		Int64("tracked_user_id", req.TrackedUserID).
		Int64("owner_id", req.OwnerID).
		Msg("Geofence created")
	h.auditFenceChange(r, audit.EventGeofenceCreated, req.ID, "Geofence '"+req.Name+"' created")
	respondSuccess(w, http.StatusCreated, req, start)
}

// Geofences lists the calling admin's fences, optionally narrowed with
// ?tracked_user_id=.
func (h *Handler) Geofences(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	claims := auth.ClaimsFromContext(r.Context())

	trackedUserID, err := int64QueryParam(r, "tracked_user_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	fences, err := h.db.ListGeofencesForOwner(r.Context(), claims.UserID, trackedUserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to query geofences", err)
		return
	}
	if fences == nil {
		fences = []models.Geofence{}
	}
	respondSuccess(w, http.StatusOK, fences, start)
}

// GetGeofence returns one of the calling admin's fences by ID.
func (h *Handler) GetGeofence(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, ok := fenceIDFromURL(w, r)
	if !ok {
		return
	}

	fence, ok := h.ownedFence(w, r, id)
	if !ok {
		return
	}
	respondSuccess(w, http.StatusOK, fence, start)
}

// UpdateGeofence replaces a fence's mutable fields.
func (h *Handler) UpdateGeofence(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, ok := fenceIDFromURL(w, r)
	if !ok {
		return
	}
	if _, ok := h.ownedFence(w, r, id); !ok {
		return
	}

	var req models.Geofence
	if !decodeAndValidate(w, r, &req) {
		return
	}
	req.ID = id

	if _, err := h.db.GetUserByID(r.Context(), req.TrackedUserID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "tracked_user_id does not exist", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to verify tracked user", err)
		return
	}

	if err := h.db.UpdateGeofence(r.Context(), &req); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Geofence not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to update geofence", err)
		return
	}

	fence, err := h.db.GetGeofence(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to reload geofence", err)
		return
	}
	h.auditFenceChange(r, audit.EventGeofenceUpdated, id, "Geofence '"+fence.Name+"' updated")
	respondSuccess(w, http.StatusOK, fence, start)
}

// DeleteGeofence removes a fence. Users currently inside keep their
// remembered fence identity so the eventual exit alert still names it.
func (h *Handler) DeleteGeofence(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, ok := fenceIDFromURL(w, r)
	if !ok {
		return
	}
	if _, ok := h.ownedFence(w, r, id); !ok {
		return
	}

	if err := h.db.DeleteGeofence(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Geofence not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to delete geofence", err)
		return
	}

	logging.Info().Int64("fence_id", id).Msg("Geofence deleted")
	h.auditFenceChange(r, audit.EventGeofenceDeleted, id, "Geofence deleted")
	respondSuccess(w, http.StatusOK, map[string]interface{}{"deleted": id}, start)
}

// ownedFence loads a fence and enforces owner scoping. Another admin's
// fence reads as not found rather than forbidden, so fence IDs don't
// leak across owners.
func (h *Handler) ownedFence(w http.ResponseWriter, r *http.Request, id int64) (*models.Geofence, bool) {
	claims := auth.ClaimsFromContext(r.Context())

	fence, err := h.db.GetGeofence(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Geofence not found", nil)
			return nil, false
		}
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to query geofence", err)
		return nil, false
	}
	if fence.OwnerID != claims.UserID {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Geofence not found", nil)
		return nil, false
	}
	return fence, true
}

func fenceIDFromURL(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func (h *Handler) auditFenceChange(r *http.Request, eventType audit.EventType, fenceID int64, description string) {
	claims := auth.ClaimsFromContext(r.Context())
	h.audit.Log(&audit.Event{
		Type:        eventType,
		Outcome:     audit.OutcomeSuccess,
		ActorID:     claims.UserID,
		ActorName:   claims.Username,
		TargetID:    fenceID,
		Description: description,
		SourceIP:    audit.SourceIP(r),
		RequestID:   middleware.GetRequestID(r.Context()),
	})
}
