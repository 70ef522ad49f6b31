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
	"strings"
	"time"

	"github.com/geotrackd/geotrackd/internal/metrics"
	"github.com/geotrackd/geotrackd/internal/models"
)

// ErrUsernameTaken is returned when registering a username that exists.
var ErrUsernameTaken = errors.New("username already taken")

// CreateUser inserts a user and fills in its ID and CreatedAt. The caller
// provides the password already hashed.
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	db.usersMu.Lock()
	defer db.usersMu.Unlock()

	start := time.Now()
	err := db.doCreateUser(ctx, user)
	metrics.RecordDBQuery("insert", "users", time.Since(start), err)
	return err
}

func (db *DB) doCreateUser(ctx context.Context, user *models.User) error {
	user.CreatedAt = time.Now().UTC()

	var nextID int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) + 1 FROM users`).Scan(&nextID)
	if err != nil {
		return fmt.Errorf("failed to get next user ID: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		nextID, user.Username, user.PasswordHash, user.IsAdmin, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.ID = nextID
	return nil
}

// GetUserByUsername returns one user by username, or ErrNotFound.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return db.getUser(ctx, `
		SELECT id, username, password_hash, is_admin, created_at
		FROM users WHERE username = ?`, username)
}

// GetUserByID returns one user by ID, or ErrNotFound.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return db.getUser(ctx, `
		SELECT id, username, password_hash, is_admin, created_at
		FROM users WHERE id = ?`, id)
}

func (db *DB) getUser(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	start := time.Now()
	var u models.User
	err := db.conn.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	metrics.RecordDBQuery("select", "users", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// ListUsers returns id/username summaries for all users, ordered by id.
func (db *DB) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, username FROM users ORDER BY id`)
	metrics.RecordDBQuery("select", "users", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer closeRows(rows)

	var users []models.UserSummary
	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// isUniqueViolation detects DuckDB unique-constraint failures. The driver
// surfaces them as plain errors, so string matching is the only signal.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
