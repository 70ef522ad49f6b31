// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package models

import "time"

// Coordinate is a latitude/longitude pair in signed degrees.
// Valid ranges are [-90,90] and [-180,180]; requests carrying coordinates
// are rejected at the API boundary before any core component sees them.
type Coordinate struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

// LocationSample is one ingested device report. It is immutable once
// created: the ingestion pipeline owns it until it is handed to storage and
// nothing mutates it afterward.
type LocationSample struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Coordinate
	// BatteryLevel is optional; devices that don't report it send null.
	BatteryLevel *int      `json:"battery_level,omitempty" validate:"omitempty,min=0,max=100"`
	CapturedAt   time.Time `json:"captured_at"`
	CreatedAt    time.Time `json:"created_at"`
}
