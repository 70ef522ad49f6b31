// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package models

import "time"

// User is an account. IsAdmin grants the privileged surface: watching other
// users' streams, managing geofences, and sending remote commands.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserSummary is the id+username projection returned by the admin user list.
type UserSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}
