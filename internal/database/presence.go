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

// LoadPresence returns the persisted presence row for a user, or nil when
// the user has never been evaluated.
func (db *DB) LoadPresence(ctx context.Context, userID int64) (*models.PresenceState, error) {
	start := time.Now()
	var (
		state   models.PresenceState
		fenceID sql.NullInt64
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT user_id, inside_fence_id, is_inside, fence_name, fence_owner_id, updated_at
		FROM presence WHERE user_id = ?`, userID).Scan(
		&state.UserID, &fenceID, &state.IsInside,
		&state.FenceName, &state.FenceOwnerID, &state.UpdatedAt)
	metrics.RecordDBQuery("select", "presence", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load presence for user %d: %w", userID, err)
	}
	if fenceID.Valid {
		state.InsideFenceID = &fenceID.Int64
	}
	return &state, nil
}

// SavePresence upserts a presence row. Callers serialize per user, so the
// table mutex only guards against cross-user write conflicts inside DuckDB.
func (db *DB) SavePresence(ctx context.Context, state models.PresenceState) error {
	db.presenceMu.Lock()
	defer db.presenceMu.Unlock()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO presence (user_id, inside_fence_id, is_inside, fence_name, fence_owner_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			inside_fence_id = EXCLUDED.inside_fence_id,
			is_inside = EXCLUDED.is_inside,
			fence_name = EXCLUDED.fence_name,
			fence_owner_id = EXCLUDED.fence_owner_id,
			updated_at = EXCLUDED.updated_at`,
		state.UserID, state.InsideFenceID, state.IsInside,
		state.FenceName, state.FenceOwnerID, state.UpdatedAt,
	)
	metrics.RecordDBQuery("upsert", "presence", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to save presence for user %d: %w", state.UserID, err)
	}
	return nil
}
