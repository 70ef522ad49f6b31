// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package websocket

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/geotrackd/geotrackd/internal/models"
)

// Message types pushed to subscribers.
const (
	MessageTypeLocationUpdate = "location_update"
	MessageTypeGeofenceAlert  = "geofence_alert"
	MessageTypeCommand        = "command"
)

// Message is one frame on the push channel. The hub is payload-agnostic;
// it only multiplexes by group. Exactly one of the payload groups below is
// populated depending on Type.
type Message struct {
	Type string `json:"type"`

	// location_update
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	CapturedAt   *time.Time `json:"captured_at,omitempty"`
	BatteryLevel *int       `json:"battery_level,omitempty"`

	// geofence_alert
	Message string `json:"message,omitempty"`

	// command
	Command string `json:"command,omitempty"`
}

// NewLocationUpdate builds the continuous-stream frame published for every
// ingested sample.
func NewLocationUpdate(sample *models.LocationSample) Message {
	lat := sample.Latitude
	lon := sample.Longitude
	capturedAt := sample.CapturedAt
	return Message{
		Type:         MessageTypeLocationUpdate,
		Latitude:     &lat,
		Longitude:    &lon,
		CapturedAt:   &capturedAt,
		BatteryLevel: sample.BatteryLevel,
	}
}

// NewGeofenceAlert builds an enter/exit alert frame.
func NewGeofenceAlert(text string) Message {
	return Message{Type: MessageTypeGeofenceAlert, Message: text}
}

// NewCommand builds a remote command frame.
func NewCommand(command string) Message {
	return Message{Type: MessageTypeCommand, Command: command}
}

// MarshalMessage converts a message to its wire JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
