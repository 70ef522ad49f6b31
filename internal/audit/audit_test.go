// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package audit

import (
	"context"
	"database/sql"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/geotrackd/geotrackd/internal/logging"
)

//nolint:gochecknoinits // keep test output quiet
func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

func newTestStore(t *testing.T) *DuckDBStore {
	t.Helper()
	conn, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	store, err := NewDuckDBStore(conn)
	if err != nil {
		t.Fatalf("NewDuckDBStore() error = %v", err)
	}
	return store
}

func TestStoreSaveAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	events := []*Event{
		{ID: "a", Timestamp: base, Type: EventAuthSuccess, Outcome: OutcomeSuccess, ActorID: 1, ActorName: "alice"},
		{ID: "b", Timestamp: base.Add(time.Minute), Type: EventAuthFailure, Outcome: OutcomeFailure, ActorName: "ghost"},
		{ID: "c", Timestamp: base.Add(2 * time.Minute), Type: EventCommandSent, Outcome: OutcomeSuccess, ActorID: 2, TargetID: 1},
	}
	for _, e := range events {
		if err := store.Save(ctx, e); err != nil {
			t.Fatalf("Save(%s) error = %v", e.ID, err)
		}
	}

	all, err := store.Query(ctx, QueryFilter{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d events, want 3", len(all))
	}
	// Newest first.
	if all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("order = [%s %s %s], want [c b a]", all[0].ID, all[1].ID, all[2].ID)
	}

	byType, err := store.Query(ctx, QueryFilter{Type: EventAuthFailure})
	if err != nil {
		t.Fatalf("Query(type) error = %v", err)
	}
	if len(byType) != 1 || byType[0].ActorName != "ghost" {
		t.Errorf("type filter = %+v", byType)
	}

	byActor, err := store.Query(ctx, QueryFilter{ActorID: 2})
	if err != nil {
		t.Fatalf("Query(actor) error = %v", err)
	}
	if len(byActor) != 1 || byActor[0].Type != EventCommandSent {
		t.Errorf("actor filter = %+v", byActor)
	}

	since := base.Add(30 * time.Second)
	recent, err := store.Query(ctx, QueryFilter{Since: &since})
	if err != nil {
		t.Fatalf("Query(since) error = %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("since filter returned %d events, want 2", len(recent))
	}

	limited, err := store.Query(ctx, QueryFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Query(limit) error = %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "b" {
		t.Errorf("pagination = %+v", limited)
	}
}

func TestStorePrune(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	old := time.Now().UTC().Add(-48 * time.Hour)
	if err := store.Save(ctx, &Event{ID: "old", Timestamp: old, Type: EventAuthSuccess, Outcome: OutcomeSuccess}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, &Event{ID: "new", Timestamp: time.Now().UTC(), Type: EventAuthSuccess, Outcome: OutcomeSuccess}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	pruned, err := store.Prune(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned %d events, want 1", pruned)
	}

	remaining, err := store.Query(ctx, QueryFilter{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "new" {
		t.Errorf("remaining = %+v", remaining)
	}
}

// recordingStore captures saves for logger tests.
type recordingStore struct {
	mu     sync.Mutex
	saved  []Event
	exited chan struct{}
}

func newRecordingStore() *recordingStore {
	return &recordingStore{exited: make(chan struct{}, 64)}
}

func (s *recordingStore) Save(_ context.Context, event *Event) error {
	s.mu.Lock()
	s.saved = append(s.saved, *event)
	s.mu.Unlock()
	s.exited <- struct{}{}
	return nil
}

func (s *recordingStore) Query(context.Context, QueryFilter) ([]Event, error) { return nil, nil }

func (s *recordingStore) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

func (s *recordingStore) events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.saved...)
}

func TestLoggerWritesAsync(t *testing.T) {
	store := newRecordingStore()
	logger := NewLogger(store, DefaultConfig())

	logger.Log(&Event{Type: EventUserCreated, Outcome: OutcomeSuccess, ActorName: "alice"})

	select {
	case <-store.exited:
	case <-time.After(2 * time.Second):
		t.Fatal("event was never written")
	}

	saved := store.events()
	if len(saved) != 1 {
		t.Fatalf("saved %d events, want 1", len(saved))
	}
	if saved[0].ID == "" {
		t.Error("ID was not generated")
	}
	if saved[0].Timestamp.IsZero() {
		t.Error("timestamp was not set")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestLoggerCloseDrainsBuffer(t *testing.T) {
	store := newRecordingStore()
	logger := NewLogger(store, Config{Enabled: true, BufferSize: 16})

	for i := 0; i < 5; i++ {
		logger.Log(&Event{Type: EventCommandSent, Outcome: OutcomeSuccess, ActorID: int64(i)})
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := len(store.events()); got != 5 {
		t.Errorf("saved %d events after Close, want 5", got)
	}
}

func TestLoggerDisabledDropsEvents(t *testing.T) {
	store := newRecordingStore()
	logger := NewLogger(store, Config{Enabled: false, BufferSize: 16})

	logger.Log(&Event{Type: EventAuthSuccess, Outcome: OutcomeSuccess})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := len(store.events()); got != 0 {
		t.Errorf("saved %d events while disabled, want 0", got)
	}
}

func TestSourceIPHonorsProxyHeaders(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	if got := SourceIP(r); got != "10.0.0.1:1234" {
		t.Errorf("SourceIP() = %q", got)
	}

	r.Header.Set("X-Real-IP", "203.0.113.7")
	if got := SourceIP(r); got != "203.0.113.7" {
		t.Errorf("SourceIP() with X-Real-IP = %q", got)
	}

	r.Header.Set("X-Forwarded-For", "198.51.100.2")
	if got := SourceIP(r); got != "198.51.100.2" {
		t.Errorf("SourceIP() with X-Forwarded-For = %q", got)
	}
}
