// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

// Package models defines the core data types shared across Geotrackd:
// location samples, geofences, presence state, transition events, users,
// pub/sub group keys, and the standard API response envelope.
//
// Types in this package are plain data carriers. Behavior lives in the
// packages that operate on them (internal/geofence for evaluation,
// internal/presence for state keeping, internal/websocket for delivery).
package models
