// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package tracker

import (
	"github.com/geotrackd/geotrackd/internal/logging"
	"github.com/geotrackd/geotrackd/internal/models"
	"github.com/geotrackd/geotrackd/internal/websocket"
)

// Relay pushes remote commands to a user's connected devices. Delivery is
// fire-and-forget: an offline device simply misses the command.
type Relay struct {
	hub Publisher
}

// NewRelay creates a command relay on top of the push hub.
func NewRelay(hub Publisher) *Relay {
	return &Relay{hub: hub}
}

// SendCommand publishes a command to every device in the user's group.
func (r *Relay) SendCommand(userID int64, command string) {
	logging.Info().
		Int64("user_id", userID).
		Str("command", command).
		Msg("Relaying command")
	r.hub.Publish(models.GroupForUser(userID), websocket.NewCommand(command))
}
