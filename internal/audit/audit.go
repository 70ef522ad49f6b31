// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

// Package audit records security-relevant events (logins, account
// creation, geofence changes, remote commands) for later review.
// Writes are asynchronous so a slow disk never stalls a request.
package audit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/geotrackd/geotrackd/internal/logging"
)

// EventType categorizes audit events.
type EventType string

const (
	EventAuthSuccess     EventType = "auth.success"
	EventAuthFailure     EventType = "auth.failure"
	EventUserCreated     EventType = "user.created"
	EventGeofenceCreated EventType = "geofence.created"
	EventGeofenceUpdated EventType = "geofence.updated"
	EventGeofenceDeleted EventType = "geofence.deleted"
	EventCommandSent     EventType = "command.sent"
)

// Outcome indicates whether the recorded action succeeded.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is one audit record. ActorID is zero for unauthenticated
// actions (failed logins, registration).
type Event struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Type        EventType `json:"type"`
	Outcome     Outcome   `json:"outcome"`
	ActorID     int64     `json:"actor_id"`
	ActorName   string    `json:"actor_name,omitempty"`
	TargetID    int64     `json:"target_id,omitempty"`
	Description string    `json:"description"`
	SourceIP    string    `json:"source_ip,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
}

// QueryFilter narrows audit queries. Zero values mean "any".
type QueryFilter struct {
	Type    EventType
	ActorID int64
	Since   *time.Time
	Limit   int
	Offset  int
}

// Store persists audit events.
type Store interface {
	Save(ctx context.Context, event *Event) error
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// Config tunes the audit logger.
type Config struct {
	Enabled         bool
	BufferSize      int
	RetentionDays   int
	CleanupInterval time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		BufferSize:      1000,
		RetentionDays:   90,
		CleanupInterval: 24 * time.Hour,
	}
}

// Logger buffers events and writes them to the store off the request
// path. A full buffer drops the event with a warning rather than block.
type Logger struct {
	config   Config
	store    Store
	events   chan *Event
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewLogger(store Store, config Config) *Logger {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	l := &Logger{
		config: config,
		store:  store,
		events: make(chan *Event, config.BufferSize),
		stopCh: make(chan struct{}),
	}
	l.wg.Add(1)
	go l.writer()
	return l
}

func (l *Logger) writer() {
	defer l.wg.Done()
	for {
		select {
		case <-l.stopCh:
			for {
				select {
				case event := <-l.events:
					l.write(event)
				default:
					return
				}
			}
		case event := <-l.events:
			l.write(event)
		}
	}
}

func (l *Logger) write(event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.Save(ctx, event); err != nil {
		logging.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to save audit event")
	}
}

// Log enqueues an event, filling in ID and timestamp when unset.
func (l *Logger) Log(event *Event) {
	if !l.config.Enabled {
		return
	}
	if event.ID == "" {
		event.ID = newEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case l.events <- event:
	default:
		logging.Warn().Str("event_type", string(event.Type)).Msg("Audit buffer full, dropping event")
	}
}

// Query reads events from the store; it bypasses the write buffer, so
// very recent events may not be visible yet.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// Close drains buffered events and stops the writer.
func (l *Logger) Close() error {
	l.stopOnce.Do(func() { close(l.stopCh) })
	l.wg.Wait()
	return nil
}

// StartCleanupRoutine prunes events past the retention window until
// ctx is canceled.
func (l *Logger) StartCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(l.config.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().AddDate(0, 0, -l.config.RetentionDays)
				count, err := l.store.Prune(ctx, cutoff)
				if err != nil {
					logging.Error().Err(err).Msg("Audit cleanup error")
				} else if count > 0 {
					logging.Info().Int64("count", count).Msg("Pruned old audit events")
				}
			}
		}
	}()
}

// SourceIP extracts the caller address, honoring proxy headers.
func SourceIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func newEventID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return time.Now().UTC().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(b)
}
