// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package tracker

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/geotrackd/geotrackd/internal/config"
	"github.com/geotrackd/geotrackd/internal/logging"
	"github.com/geotrackd/geotrackd/internal/models"
	"github.com/geotrackd/geotrackd/internal/presence"
	"github.com/geotrackd/geotrackd/internal/websocket"
)

//nolint:gochecknoinits // keep test output quiet
func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

type fakeStorage struct {
	mu        sync.Mutex
	appended  []models.LocationSample
	appendErr error
	fences    []models.Geofence
	fencesErr error
}

func (s *fakeStorage) AppendLocation(_ context.Context, sample *models.LocationSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	sample.ID = int64(len(s.appended) + 1)
	s.appended = append(s.appended, *sample)
	return nil
}

func (s *fakeStorage) FencesForUser(context.Context, int64) ([]models.Geofence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fencesErr != nil {
		return nil, s.fencesErr
	}
	return s.fences, nil
}

type published struct {
	group models.GroupKey
	msg   websocket.Message
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
}

func (p *fakePublisher) Publish(group models.GroupKey, message websocket.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{group: group, msg: message})
}

func (p *fakePublisher) byType(msgType string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, entry := range p.sent {
		if entry.msg.Type == msgType {
			out = append(out, entry)
		}
	}
	return out
}

func newTestPipeline(storage *fakeStorage) (*Pipeline, *fakePublisher, *presence.Keeper) {
	hub := &fakePublisher{}
	keeper := presence.NewKeeper(nil)
	pipeline := NewPipeline(storage, keeper, hub, &config.TrackerConfig{
		BreakerMaxFailures: 3,
		BreakerTimeout:     time.Second,
	})
	return pipeline, hub, keeper
}

func sampleFor(userID int64, lat, lon float64) *models.LocationSample {
	return &models.LocationSample{
		UserID:     userID,
		Coordinate: models.Coordinate{Latitude: lat, Longitude: lon},
		CapturedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func homeFence() models.Geofence {
	return models.Geofence{
		ID:            7,
		Name:          "Home",
		TrackedUserID: 1,
		OwnerID:       2,
		Center:        models.Coordinate{Latitude: 10, Longitude: 10},
		RadiusMeters:  500,
	}
}

func TestIngestPersistsAndStreams(t *testing.T) {
	storage := &fakeStorage{}
	pipeline, hub, _ := newTestPipeline(storage)

	sample := sampleFor(1, 50, 50) // far from any fence
	if err := pipeline.Ingest(context.Background(), sample, "alice"); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if len(storage.appended) != 1 {
		t.Fatalf("appended %d samples, want 1", len(storage.appended))
	}

	updates := hub.byType(websocket.MessageTypeLocationUpdate)
	if len(updates) != 1 {
		t.Fatalf("published %d location updates, want 1", len(updates))
	}
	if updates[0].group != models.GroupForUser(1) {
		t.Errorf("update group = %q, want %q", updates[0].group, models.GroupForUser(1))
	}
	if *updates[0].msg.Latitude != 50 || *updates[0].msg.Longitude != 50 {
		t.Errorf("update payload = %+v", updates[0].msg)
	}

	if alerts := hub.byType(websocket.MessageTypeGeofenceAlert); len(alerts) != 0 {
		t.Errorf("published %d alerts, want 0", len(alerts))
	}
}

func TestIngestEnterPublishesAlertToOwner(t *testing.T) {
	storage := &fakeStorage{fences: []models.Geofence{homeFence()}}
	pipeline, hub, _ := newTestPipeline(storage)

	sample := sampleFor(1, 10, 10) // inside Home
	if err := pipeline.Ingest(context.Background(), sample, "alice"); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	alerts := hub.byType(websocket.MessageTypeGeofenceAlert)
	if len(alerts) != 1 {
		t.Fatalf("published %d alerts, want 1", len(alerts))
	}
	if alerts[0].group != models.GroupForUser(2) {
		t.Errorf("alert group = %q, want owner group %q", alerts[0].group, models.GroupForUser(2))
	}
	want := "User 'alice' has ENTERED the geofence 'Home'."
	if alerts[0].msg.Message != want {
		t.Errorf("alert text = %q, want %q", alerts[0].msg.Message, want)
	}
}

func TestIngestEnterThenDwellFiresOnce(t *testing.T) {
	storage := &fakeStorage{fences: []models.Geofence{homeFence()}}
	pipeline, hub, _ := newTestPipeline(storage)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := pipeline.Ingest(ctx, sampleFor(1, 10, 10), "alice"); err != nil {
			t.Fatalf("Ingest() #%d error = %v", i, err)
		}
	}

	if alerts := hub.byType(websocket.MessageTypeGeofenceAlert); len(alerts) != 1 {
		t.Errorf("published %d alerts for a dwell, want 1", len(alerts))
	}
	if updates := hub.byType(websocket.MessageTypeLocationUpdate); len(updates) != 3 {
		t.Errorf("published %d updates, want 3", len(updates))
	}
}

func TestIngestExitPublishesAlert(t *testing.T) {
	storage := &fakeStorage{fences: []models.Geofence{homeFence()}}
	pipeline, hub, _ := newTestPipeline(storage)
	ctx := context.Background()

	if err := pipeline.Ingest(ctx, sampleFor(1, 10, 10), "alice"); err != nil {
		t.Fatalf("enter Ingest() error = %v", err)
	}
	if err := pipeline.Ingest(ctx, sampleFor(1, 50, 50), "alice"); err != nil {
		t.Fatalf("exit Ingest() error = %v", err)
	}

	alerts := hub.byType(websocket.MessageTypeGeofenceAlert)
	if len(alerts) != 2 {
		t.Fatalf("published %d alerts, want 2", len(alerts))
	}
	want := "User 'alice' has EXITED the geofence 'Home'."
	if alerts[1].msg.Message != want {
		t.Errorf("exit alert = %q, want %q", alerts[1].msg.Message, want)
	}
}

func TestIngestExitAfterFenceDeleted(t *testing.T) {
	storage := &fakeStorage{fences: []models.Geofence{homeFence()}}
	pipeline, hub, _ := newTestPipeline(storage)
	ctx := context.Background()

	if err := pipeline.Ingest(ctx, sampleFor(1, 10, 10), "alice"); err != nil {
		t.Fatalf("enter Ingest() error = %v", err)
	}

	// The fence is deleted while the user is inside. The exit alert must
	// still carry the remembered fence name and reach the owner.
	storage.mu.Lock()
	storage.fences = nil
	storage.mu.Unlock()

	if err := pipeline.Ingest(ctx, sampleFor(1, 50, 50), "alice"); err != nil {
		t.Fatalf("exit Ingest() error = %v", err)
	}

	alerts := hub.byType(websocket.MessageTypeGeofenceAlert)
	if len(alerts) != 2 {
		t.Fatalf("published %d alerts, want 2", len(alerts))
	}
	if !strings.Contains(alerts[1].msg.Message, "EXITED the geofence 'Home'") {
		t.Errorf("exit alert = %q, want remembered fence name", alerts[1].msg.Message)
	}
	if alerts[1].group != models.GroupForUser(2) {
		t.Errorf("exit alert group = %q, want remembered owner", alerts[1].group)
	}
}

func TestIngestStorageFailureIsFatal(t *testing.T) {
	storage := &fakeStorage{appendErr: errors.New("disk full")}
	pipeline, hub, _ := newTestPipeline(storage)

	err := pipeline.Ingest(context.Background(), sampleFor(1, 10, 10), "alice")
	if err == nil {
		t.Fatal("Ingest() = nil error, want storage failure")
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	if len(hub.sent) != 0 {
		t.Errorf("published %d messages for an unpersisted sample, want 0", len(hub.sent))
	}
}

func TestIngestFenceLookupFailureIsFailOpen(t *testing.T) {
	storage := &fakeStorage{fencesErr: errors.New("query timeout")}
	pipeline, hub, _ := newTestPipeline(storage)

	if err := pipeline.Ingest(context.Background(), sampleFor(1, 10, 10), "alice"); err != nil {
		t.Fatalf("Ingest() error = %v, fence lookup failure must not abort", err)
	}

	if updates := hub.byType(websocket.MessageTypeLocationUpdate); len(updates) != 1 {
		t.Errorf("published %d updates, want 1", len(updates))
	}
	if alerts := hub.byType(websocket.MessageTypeGeofenceAlert); len(alerts) != 0 {
		t.Errorf("published %d alerts, want 0", len(alerts))
	}
}

func TestIngestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	storage := &fakeStorage{appendErr: errors.New("db down")}
	pipeline, _, _ := newTestPipeline(storage) // trips at 3
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := pipeline.Ingest(ctx, sampleFor(1, 10, 10), "alice"); err == nil {
			t.Fatalf("Ingest() #%d = nil error", i)
		}
	}

	// Storage recovers, but the breaker is open: requests reject fast
	// without touching storage until the timeout elapses.
	storage.mu.Lock()
	storage.appendErr = nil
	storage.mu.Unlock()

	if err := pipeline.Ingest(ctx, sampleFor(1, 10, 10), "alice"); err == nil {
		t.Fatal("Ingest() with open breaker = nil error")
	}
	storage.mu.Lock()
	appended := len(storage.appended)
	storage.mu.Unlock()
	if appended != 0 {
		t.Errorf("storage called while breaker open, appended = %d", appended)
	}
}

func TestAlertText(t *testing.T) {
	enter := &models.TransitionEvent{Kind: models.TransitionEnter, FenceName: "Office"}
	if got := AlertText("bob", enter); got != "User 'bob' has ENTERED the geofence 'Office'." {
		t.Errorf("AlertText(enter) = %q", got)
	}
	exit := &models.TransitionEvent{Kind: models.TransitionExit, FenceName: "Office"}
	if got := AlertText("bob", exit); got != "User 'bob' has EXITED the geofence 'Office'." {
		t.Errorf("AlertText(exit) = %q", got)
	}
}

func TestRelaySendCommand(t *testing.T) {
	hub := &fakePublisher{}
	relay := NewRelay(hub)

	relay.SendCommand(4, "ring")

	commands := hub.byType(websocket.MessageTypeCommand)
	if len(commands) != 1 {
		t.Fatalf("published %d commands, want 1", len(commands))
	}
	if commands[0].group != models.GroupForUser(4) {
		t.Errorf("command group = %q", commands[0].group)
	}
	if commands[0].msg.Command != "ring" {
		t.Errorf("command payload = %q, want ring", commands[0].msg.Command)
	}
}
