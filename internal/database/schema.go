// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package database

import "fmt"

// createTables creates the schema. All statements are idempotent so the
// server can start against an existing database file.
//
// Note: IDs are managed manually (MAX(id)+1) since DuckDB doesn't support
// IDENTITY with PRIMARY KEY.
func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			username VARCHAR NOT NULL UNIQUE,
			password_hash VARCHAR NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS locations (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			battery_level INTEGER,
			captured_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_locations_user_captured
			ON locations (user_id, captured_at)`,
		`CREATE INDEX IF NOT EXISTS idx_locations_captured
			ON locations (captured_at)`,

		`CREATE TABLE IF NOT EXISTS geofences (
			id BIGINT PRIMARY KEY,
			name VARCHAR NOT NULL,
			tracked_user_id BIGINT NOT NULL,
			owner_id BIGINT NOT NULL,
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			radius_meters DOUBLE NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_geofences_tracked_user
			ON geofences (tracked_user_id)`,

		`CREATE TABLE IF NOT EXISTS presence (
			user_id BIGINT PRIMARY KEY,
			inside_fence_id BIGINT,
			is_inside BOOLEAN NOT NULL,
			fence_name VARCHAR NOT NULL DEFAULT '',
			fence_owner_id BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
