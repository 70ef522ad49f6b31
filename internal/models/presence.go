// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package models

import "time"

// TransitionKind classifies a containment change.
type TransitionKind string

const (
	// TransitionEnter marks an outside -> inside change.
	TransitionEnter TransitionKind = "ENTER"
	// TransitionExit marks an inside -> outside change.
	TransitionExit TransitionKind = "EXIT"
)

// PresenceState is the per-user record of last known containment.
// Invariant: IsInside == (InsideFenceID != nil).
//
// FenceName and FenceOwnerID are captured when the user enters a fence so
// that an EXIT alert can still name the fence and reach its owner even if
// the fence row was deleted while the user was inside it.
type PresenceState struct {
	UserID        int64     `json:"user_id"`
	InsideFenceID *int64    `json:"inside_fence_id,omitempty"`
	IsInside      bool      `json:"is_inside"`
	FenceName     string    `json:"fence_name,omitempty"`
	FenceOwnerID  int64     `json:"fence_owner_id,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TransitionEvent describes one enter or exit. It is ephemeral: produced by
// the evaluator, rendered and published within one ingestion call, never
// persisted.
type TransitionEvent struct {
	UserID      int64
	Kind        TransitionKind
	FenceID     int64
	FenceName   string
	RecipientID int64
	OccurredAt  time.Time
}
