// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/geotrackd/geotrackd/internal/metrics"
	"github.com/geotrackd/geotrackd/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// CreateGeofence inserts a fence and fills in its ID and CreatedAt.
func (db *DB) CreateGeofence(ctx context.Context, fence *models.Geofence) error {
	db.geofencesMu.Lock()
	defer db.geofencesMu.Unlock()

	start := time.Now()
	err := db.doCreateGeofence(ctx, fence)
	metrics.RecordDBQuery("insert", "geofences", time.Since(start), err)
	return err
}

func (db *DB) doCreateGeofence(ctx context.Context, fence *models.Geofence) error {
	fence.CreatedAt = time.Now().UTC()

	var nextID int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) + 1 FROM geofences`).Scan(&nextID)
	if err != nil {
		return fmt.Errorf("failed to get next geofence ID: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO geofences (id, name, tracked_user_id, owner_id, latitude, longitude, radius_meters, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nextID, fence.Name, fence.TrackedUserID, fence.OwnerID,
		fence.Center.Latitude, fence.Center.Longitude, fence.RadiusMeters, fence.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert geofence: %w", err)
	}

	fence.ID = nextID
	return nil
}

// GetGeofence returns one fence by ID, or ErrNotFound.
func (db *DB) GetGeofence(ctx context.Context, id int64) (*models.Geofence, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, name, tracked_user_id, owner_id, latitude, longitude, radius_meters, created_at
		FROM geofences WHERE id = ?`, id)

	fence, err := scanGeofence(row)
	metrics.RecordDBQuery("select", "geofences", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get geofence %d: %w", id, err)
	}
	return fence, nil
}

// ListGeofencesForOwner returns one admin's fences ordered by id,
// optionally narrowed to those watching one tracked user.
func (db *DB) ListGeofencesForOwner(ctx context.Context, ownerID int64, trackedUserID *int64) ([]models.Geofence, error) {
	query := `
		SELECT id, name, tracked_user_id, owner_id, latitude, longitude, radius_meters, created_at
		FROM geofences WHERE owner_id = ?`
	args := []interface{}{ownerID}
	if trackedUserID != nil {
		query += ` AND tracked_user_id = ?`
		args = append(args, *trackedUserID)
	}
	query += ` ORDER BY id`
	return db.queryGeofences(ctx, query, args...)
}

// FencesForUser returns the fences watching one tracked user, ordered by
// id. The order is the evaluation order: when fences overlap, the
// oldest-created fence wins.
func (db *DB) FencesForUser(ctx context.Context, trackedUserID int64) ([]models.Geofence, error) {
	return db.queryGeofences(ctx, `
		SELECT id, name, tracked_user_id, owner_id, latitude, longitude, radius_meters, created_at
		FROM geofences WHERE tracked_user_id = ? ORDER BY id`, trackedUserID)
}

// UpdateGeofence replaces the mutable fields of a fence, or returns
// ErrNotFound.
func (db *DB) UpdateGeofence(ctx context.Context, fence *models.Geofence) error {
	db.geofencesMu.Lock()
	defer db.geofencesMu.Unlock()

	start := time.Now()
	result, err := db.conn.ExecContext(ctx, `
		UPDATE geofences
		SET name = ?, tracked_user_id = ?, latitude = ?, longitude = ?, radius_meters = ?
		WHERE id = ?`,
		fence.Name, fence.TrackedUserID,
		fence.Center.Latitude, fence.Center.Longitude, fence.RadiusMeters, fence.ID,
	)
	metrics.RecordDBQuery("update", "geofences", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to update geofence %d: %w", fence.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteGeofence removes a fence, or returns ErrNotFound.
func (db *DB) DeleteGeofence(ctx context.Context, id int64) error {
	db.geofencesMu.Lock()
	defer db.geofencesMu.Unlock()

	start := time.Now()
	result, err := db.conn.ExecContext(ctx, `DELETE FROM geofences WHERE id = ?`, id)
	metrics.RecordDBQuery("delete", "geofences", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to delete geofence %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) queryGeofences(ctx context.Context, query string, args ...interface{}) ([]models.Geofence, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "geofences", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query geofences: %w", err)
	}
	defer closeRows(rows)

	var fences []models.Geofence
	for rows.Next() {
		var f models.Geofence
		err := rows.Scan(&f.ID, &f.Name, &f.TrackedUserID, &f.OwnerID,
			&f.Center.Latitude, &f.Center.Longitude, &f.RadiusMeters, &f.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan geofence: %w", err)
		}
		fences = append(fences, f)
	}
	return fences, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGeofence(row rowScanner) (*models.Geofence, error) {
	var f models.Geofence
	err := row.Scan(&f.ID, &f.Name, &f.TrackedUserID, &f.OwnerID,
		&f.Center.Latitude, &f.Center.Longitude, &f.RadiusMeters, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
