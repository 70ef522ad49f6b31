// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package models

import "time"

// Geofence is a circular region watched for one tracked user. The owner is
// the privileged user who created the fence and receives enter/exit alerts.
// Fence rows are managed by the CRUD layer; the evaluator only ever sees
// read-only snapshots ordered by id.
type Geofence struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name" validate:"required,max=100"`
	TrackedUserID int64      `json:"tracked_user_id" validate:"required,gt=0"`
	OwnerID       int64      `json:"owner_id"`
	Center        Coordinate `json:"center"`
	RadiusMeters  float64    `json:"radius_meters" validate:"required,gt=0"`
	CreatedAt     time.Time  `json:"created_at"`
}
