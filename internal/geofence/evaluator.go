// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

// Package geofence implements containment evaluation for circular geofences.
//
// Evaluate is a pure decision function: it never fails, never performs I/O,
// and produces identical results for identical inputs. All state mutation
// (the presence commit) is the caller's responsibility.
package geofence

import (
	"time"

	"github.com/geotrackd/geotrackd/internal/geo"
	"github.com/geotrackd/geotrackd/internal/models"
)

// Evaluate computes the new presence state for one location sample against
// the user's fence snapshot and prior state.
//
// Containment uses an inclusive boundary: a point exactly on the radius is
// inside. The first containing fence in the provided order wins; callers
// must supply fences in a stable order (the store returns them ordered by
// id) so the tie-break is deterministic. No nearest-fence or smallest-fence
// preference is applied.
//
// The returned event is nil when containment did not change. When it did,
// the event references the newly entered fence on ENTER, and on EXIT the
// fence recorded in the prior state, so the alert still carries the fence
// name and reaches the fence owner even if the fence row was deleted while
// the user was inside.
func Evaluate(sample *models.LocationSample, fences []models.Geofence, prior models.PresenceState, now time.Time) (models.PresenceState, *models.TransitionEvent) {
	active := firstContaining(sample.Coordinate, fences)
	inside := active != nil

	if inside == prior.IsInside {
		return prior, nil
	}

	next := models.PresenceState{
		UserID:    sample.UserID,
		IsInside:  inside,
		UpdatedAt: now,
	}

	var event *models.TransitionEvent
	if inside {
		fenceID := active.ID
		next.InsideFenceID = &fenceID
		next.FenceName = active.Name
		next.FenceOwnerID = active.OwnerID
		event = &models.TransitionEvent{
			UserID:      sample.UserID,
			Kind:        models.TransitionEnter,
			FenceID:     active.ID,
			FenceName:   active.Name,
			RecipientID: active.OwnerID,
			OccurredAt:  now,
		}
	} else {
		event = &models.TransitionEvent{
			UserID:      sample.UserID,
			Kind:        models.TransitionExit,
			FenceName:   prior.FenceName,
			RecipientID: prior.FenceOwnerID,
			OccurredAt:  now,
		}
		if prior.InsideFenceID != nil {
			event.FenceID = *prior.InsideFenceID
		}
	}

	return next, event
}

// firstContaining scans the fence snapshot in order and returns the first
// fence containing the point, or nil.
func firstContaining(point models.Coordinate, fences []models.Geofence) *models.Geofence {
	for i := range fences {
		if geo.DistanceMeters(point, fences[i].Center) <= fences[i].RadiusMeters {
			return &fences[i]
		}
	}
	return nil
}
