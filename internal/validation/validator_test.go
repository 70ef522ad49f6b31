// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package validation

import (
	"strings"
	"testing"

	"github.com/geotrackd/geotrackd/internal/models"
)

func TestValidateStructPasses(t *testing.T) {
	battery := 50
	sample := models.LocationSample{
		UserID:       1,
		Coordinate:   models.Coordinate{Latitude: 45.0, Longitude: -120.0},
		BatteryLevel: &battery,
	}
	if verr := ValidateStruct(&sample); verr != nil {
		t.Errorf("ValidateStruct() = %v, want nil", verr)
	}
}

func TestValidateStructCoordinateBounds(t *testing.T) {
	tests := []struct {
		name      string
		lat, lon  float64
		wantField string
	}{
		{"latitude too high", 90.5, 0, "Latitude"},
		{"latitude too low", -91, 0, "Latitude"},
		{"longitude too high", 0, 181, "Longitude"},
		{"longitude too low", 0, -180.1, "Longitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample := models.LocationSample{
				UserID:     1,
				Coordinate: models.Coordinate{Latitude: tt.lat, Longitude: tt.lon},
			}
			verr := ValidateStruct(&sample)
			if verr == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			if got := verr.Errors()[0].Field(); got != tt.wantField {
				t.Errorf("failed field = %q, want %q", got, tt.wantField)
			}
		})
	}
}

func TestValidateStructBatteryRange(t *testing.T) {
	over := 101
	sample := models.LocationSample{
		UserID:       1,
		BatteryLevel: &over,
	}
	verr := ValidateStruct(&sample)
	if verr == nil {
		t.Fatal("ValidateStruct() = nil, want error for battery > 100")
	}

	// nil battery is fine
	sample.BatteryLevel = nil
	if verr := ValidateStruct(&sample); verr != nil {
		t.Errorf("ValidateStruct() with nil battery = %v, want nil", verr)
	}
}

func TestToAPIErrorSingleField(t *testing.T) {
	req := models.RegisterRequest{Username: "ab", Password: "longenough123"}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("ValidateStruct() = nil, want error for short username")
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "at least 3 characters") {
		t.Errorf("Message = %q, want min-length message", apiErr.Message)
	}
	if apiErr.Details["field"] != "Username" {
		t.Errorf("Details.field = %v, want Username", apiErr.Details["field"])
	}
}

func TestToAPIErrorMultipleFields(t *testing.T) {
	req := models.RegisterRequest{Username: "", Password: ""}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("ValidateStruct() = nil, want errors")
	}
	if len(verr.Errors()) != 2 {
		t.Fatalf("got %d errors, want 2", len(verr.Errors()))
	}

	apiErr := verr.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("Details.fields has type %T", apiErr.Details["fields"])
	}
	if len(fields) != 2 {
		t.Errorf("got %d field entries, want 2", len(fields))
	}
}

func TestValidateGeofenceRadius(t *testing.T) {
	fence := models.Geofence{
		Name:          "Home",
		TrackedUserID: 1,
		OwnerID:       2,
		Center:        models.Coordinate{Latitude: 10, Longitude: 10},
		RadiusMeters:  0,
	}
	verr := ValidateStruct(&fence)
	if verr == nil {
		t.Fatal("ValidateStruct() = nil, want error for zero radius")
	}
	if got := verr.Errors()[0].Field(); got != "RadiusMeters" {
		t.Errorf("failed field = %q, want RadiusMeters", got)
	}

	fence.RadiusMeters = 100
	if verr := ValidateStruct(&fence); verr != nil {
		t.Errorf("ValidateStruct() = %v, want nil", verr)
	}
}
