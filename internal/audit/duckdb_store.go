// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DuckDBStore persists audit events in the main DuckDB database.
type DuckDBStore struct {
	conn *sql.DB
}

// NewDuckDBStore creates the store and its schema.
func NewDuckDBStore(conn *sql.DB) (*DuckDBStore, error) {
	s := &DuckDBStore{conn: conn}
	if err := s.initSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	return s, nil
}

func (s *DuckDBStore) initSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS audit_events (
			id VARCHAR PRIMARY KEY,
			ts TIMESTAMP NOT NULL,
			event_type VARCHAR NOT NULL,
			outcome VARCHAR NOT NULL,
			actor_id BIGINT NOT NULL DEFAULT 0,
			actor_name VARCHAR NOT NULL DEFAULT '',
			target_id BIGINT NOT NULL DEFAULT 0,
			description VARCHAR NOT NULL DEFAULT '',
			source_ip VARCHAR NOT NULL DEFAULT '',
			request_id VARCHAR NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_audit_events_ts ON audit_events(ts);
		CREATE INDEX IF NOT EXISTS idx_audit_events_actor ON audit_events(actor_id);
	`
	_, err := s.conn.ExecContext(ctx, schema)
	return err
}

// Save implements Store.
func (s *DuckDBStore) Save(ctx context.Context, event *Event) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO audit_events
			(id, ts, event_type, outcome, actor_id, actor_name, target_id, description, source_ip, request_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Timestamp, string(event.Type), string(event.Outcome),
		event.ActorID, event.ActorName, event.TargetID,
		event.Description, event.SourceIP, event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Query implements Store. Results are newest-first.
func (s *DuckDBStore) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	var conditions []string
	var args []interface{}

	if filter.Type != "" {
		conditions = append(conditions, "event_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.ActorID != 0 {
		conditions = append(conditions, "actor_id = ?")
		args = append(args, filter.ActorID)
	}
	if filter.Since != nil {
		conditions = append(conditions, "ts >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := `SELECT id, ts, event_type, outcome, actor_id, actor_name, target_id, description, source_ip, request_id
		FROM audit_events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY ts DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var e Event
		var eventType, outcome string
		if err := rows.Scan(&e.ID, &e.Timestamp, &eventType, &outcome,
			&e.ActorID, &e.ActorName, &e.TargetID,
			&e.Description, &e.SourceIP, &e.RequestID); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Type = EventType(eventType)
		e.Outcome = Outcome(outcome)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune implements Store.
func (s *DuckDBStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.conn.ExecContext(ctx,
		`DELETE FROM audit_events WHERE ts < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit events: %w", err)
	}
	return result.RowsAffected()
}
