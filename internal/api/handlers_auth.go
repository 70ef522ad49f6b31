// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package api

import (
	"errors"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/geotrackd/geotrackd/internal/audit"
	"github.com/geotrackd/geotrackd/internal/database"
	"github.com/geotrackd/geotrackd/internal/logging"
	"github.com/geotrackd/geotrackd/internal/middleware"
	"github.com/geotrackd/geotrackd/internal/models"
)

// auditLoginFailure records a failed login. The actor name is whatever
// the caller typed; there may be no matching account.
func (h *Handler) auditLoginFailure(r *http.Request, username, reason string) {
	h.audit.Log(&audit.Event{
		Type:        audit.EventAuthFailure,
		Outcome:     audit.OutcomeFailure,
		ActorName:   username,
		Description: "Login failed: " + reason,
		SourceIP:    audit.SourceIP(r),
		RequestID:   middleware.GetRequestID(r.Context()),
	})
}

// Register creates a new (non-admin) user account and returns a token so
// the device can start reporting immediately.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process password", err)
		return
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		IsAdmin:      false,
	}
	if err := h.db.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, database.ErrUsernameTaken) {
			respondError(w, http.StatusConflict, "USERNAME_TAKEN", "Username already taken", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create user", err)
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate token", err)
		return
	}

	logging.Info().Int64("user_id", user.ID).Str("username", sanitizeLogValue(user.Username)).Msg("User registered")
	h.audit.Log(&audit.Event{
		Type:        audit.EventUserCreated,
		Outcome:     audit.OutcomeSuccess,
		ActorID:     user.ID,
		ActorName:   user.Username,
		Description: "Account registered",
		SourceIP:    audit.SourceIP(r),
		RequestID:   middleware.GetRequestID(r.Context()),
	})
	respondSuccess(w, http.StatusCreated, map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
		"token":    token,
	}, start)
}

// Login authenticates a user and returns a JWT token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.db.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.auditLoginFailure(r, req.Username, "unknown username")
			// Same response as a bad password so usernames can't be probed.
			respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to look up user", err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		logging.Warn().Str("username", sanitizeLogValue(req.Username)).Msg("Failed login attempt")
		h.auditLoginFailure(r, req.Username, "wrong password")
		respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate token", err)
		return
	}

	h.audit.Log(&audit.Event{
		Type:        audit.EventAuthSuccess,
		Outcome:     audit.OutcomeSuccess,
		ActorID:     user.ID,
		ActorName:   user.Username,
		Description: "Login succeeded",
		SourceIP:    audit.SourceIP(r),
		RequestID:   middleware.GetRequestID(r.Context()),
	})
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"user_id":    user.ID,
		"username":   user.Username,
		"is_admin":   user.IsAdmin,
		"token":      token,
		"expires_at": time.Now().Add(h.jwtManager.SessionTimeout()).Format(time.RFC3339),
	}, start)
}
