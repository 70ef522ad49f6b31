// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package models

import "strconv"

// GroupKey is the pub/sub routing key for one user's live subscribers.
// It is a typed construction so publishers and subscribers cannot drift on
// the key format.
type GroupKey string

// GroupForUser derives the canonical group key for a user.
func GroupForUser(userID int64) GroupKey {
	return GroupKey("user:" + strconv.FormatInt(userID, 10))
}
