// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/geotrackd/geotrackd/internal/metrics"
	"github.com/geotrackd/geotrackd/internal/models"
)

// LocationFilter narrows ListLocations results. Zero-value fields are
// ignored.
type LocationFilter struct {
	// UserID restricts results to one user when non-nil.
	UserID *int64
	// Day restricts results to samples captured on this calendar day (UTC)
	// when non-nil.
	Day *time.Time
	// Limit caps the result size; 0 means no cap.
	Limit int
	// Offset skips rows for pagination.
	Offset int
}

// AppendLocation inserts a sample and fills in its ID, CreatedAt and, when
// absent, CapturedAt. The sample is never updated afterward.
func (db *DB) AppendLocation(ctx context.Context, sample *models.LocationSample) error {
	db.locationsMu.Lock()
	defer db.locationsMu.Unlock()

	start := time.Now()
	err := db.doAppendLocation(ctx, sample)
	metrics.RecordDBQuery("insert", "locations", time.Since(start), err)
	return err
}

func (db *DB) doAppendLocation(ctx context.Context, sample *models.LocationSample) error {
	now := time.Now().UTC()
	if sample.CapturedAt.IsZero() {
		sample.CapturedAt = now
	}
	sample.CreatedAt = now

	var nextID int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) + 1 FROM locations`).Scan(&nextID)
	if err != nil {
		return fmt.Errorf("failed to get next location ID: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO locations (id, user_id, latitude, longitude, battery_level, captured_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nextID, sample.UserID, sample.Latitude, sample.Longitude,
		sample.BatteryLevel, sample.CapturedAt, sample.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert location: %w", err)
	}

	sample.ID = nextID
	return nil
}

// ListLocations returns samples newest-first, optionally filtered by user
// and calendar day.
func (db *DB) ListLocations(ctx context.Context, filter LocationFilter) ([]models.LocationSample, error) {
	query := `
		SELECT id, user_id, latitude, longitude, battery_level, captured_at, created_at
		FROM locations
		WHERE 1=1`
	args := []interface{}{}

	if filter.UserID != nil {
		query += ` AND user_id = ?`
		args = append(args, *filter.UserID)
	}
	if filter.Day != nil {
		dayStart := filter.Day.UTC().Truncate(24 * time.Hour)
		query += ` AND captured_at >= ? AND captured_at < ?`
		args = append(args, dayStart, dayStart.Add(24*time.Hour))
	}

	query += ` ORDER BY captured_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "locations", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer closeRows(rows)

	return scanLocations(rows)
}

// LatestLocations returns one user's samples newer than since, oldest
// first, so a polling client can replay the trajectory delta since its
// last fetch. A nil since returns the full history.
func (db *DB) LatestLocations(ctx context.Context, userID int64, since *time.Time) ([]models.LocationSample, error) {
	query := `
		SELECT id, user_id, latitude, longitude, battery_level, captured_at, created_at
		FROM locations
		WHERE user_id = ?`
	args := []interface{}{userID}

	if since != nil {
		query += ` AND captured_at > ?`
		args = append(args, since.UTC())
	}
	query += ` ORDER BY captured_at, id`

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select_latest", "locations", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest locations: %w", err)
	}
	defer closeRows(rows)

	return scanLocations(rows)
}

func scanLocations(rows *sql.Rows) ([]models.LocationSample, error) {
	var samples []models.LocationSample
	for rows.Next() {
		var s models.LocationSample
		var battery sql.NullInt64
		err := rows.Scan(&s.ID, &s.UserID, &s.Latitude, &s.Longitude,
			&battery, &s.CapturedAt, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		if battery.Valid {
			level := int(battery.Int64)
			s.BatteryLevel = &level
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
