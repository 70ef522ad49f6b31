// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

// Package tracker is the ingestion pipeline: it persists incoming location
// samples, streams them to the reporting user's push channel, evaluates
// geofence transitions and delivers enter/exit alerts to fence owners.
package tracker

import (
	"context"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/geotrackd/geotrackd/internal/config"
	"github.com/geotrackd/geotrackd/internal/geofence"
	"github.com/geotrackd/geotrackd/internal/logging"
	"github.com/geotrackd/geotrackd/internal/metrics"
	"github.com/geotrackd/geotrackd/internal/models"
	"github.com/geotrackd/geotrackd/internal/presence"
	"github.com/geotrackd/geotrackd/internal/websocket"
)

// Storage is the persistence surface the pipeline needs.
type Storage interface {
	AppendLocation(ctx context.Context, sample *models.LocationSample) error
	FencesForUser(ctx context.Context, trackedUserID int64) ([]models.Geofence, error)
}

// Publisher delivers messages to per-user push channels.
type Publisher interface {
	Publish(group models.GroupKey, message websocket.Message)
}

// Pipeline processes one location sample end to end. Sample persistence
// is wrapped in a circuit breaker: when storage is failing hard, ingestion
// rejects fast instead of queueing writes against a dead database.
type Pipeline struct {
	storage Storage
	keeper  *presence.Keeper
	hub     Publisher
	breaker *gobreaker.CircuitBreaker[any]
}

// NewPipeline wires the ingestion pipeline.
func NewPipeline(storage Storage, keeper *presence.Keeper, hub Publisher, cfg *config.TrackerConfig) *Pipeline {
	maxFailures := uint32(5)
	timeout := 30 * time.Second
	if cfg != nil {
		if cfg.BreakerMaxFailures > 0 {
			maxFailures = uint32(cfg.BreakerMaxFailures)
		}
		if cfg.BreakerTimeout > 0 {
			timeout = cfg.BreakerTimeout
		}
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "location-storage",
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Storage circuit breaker state change")
		},
	})

	return &Pipeline{
		storage: storage,
		keeper:  keeper,
		hub:     hub,
		breaker: breaker,
	}
}

// Ingest processes one sample: append to storage, stream the update to the
// user's channel, then evaluate geofences and deliver any alert.
//
// Storage failure aborts the whole operation; nothing is streamed for a
// sample that was not persisted. A fence snapshot failure, by contrast,
// only skips transition evaluation for this sample: the stream must keep
// flowing, and the next sample will re-evaluate against fresh fences.
func (p *Pipeline) Ingest(ctx context.Context, sample *models.LocationSample, username string) error {
	start := time.Now()

	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.storage.AppendLocation(ctx, sample)
	})
	if err != nil {
		metrics.RecordIngest("storage_error", time.Since(start))
		return fmt.Errorf("failed to persist location sample: %w", err)
	}

	// Stream the update regardless of what fence evaluation does next.
	p.hub.Publish(models.GroupForUser(sample.UserID), websocket.NewLocationUpdate(sample))

	p.evaluateFences(ctx, sample, username)

	metrics.RecordIngest("ok", time.Since(start))
	return nil
}

func (p *Pipeline) evaluateFences(ctx context.Context, sample *models.LocationSample, username string) {
	fences, err := p.storage.FencesForUser(ctx, sample.UserID)
	if err != nil {
		metrics.GeofenceLookupFailures.Inc()
		logging.Error().Err(err).
			Int64("user_id", sample.UserID).
			Msg("Fence snapshot query failed, skipping evaluation for this sample")
		return
	}

	// Serialize the read-evaluate-commit cycle per user so concurrent
	// samples for the same user cannot interleave and double-fire.
	unlock := p.keeper.LockUser(sample.UserID)
	defer unlock()

	prior := p.keeper.Get(ctx, sample.UserID)
	next, event := geofence.Evaluate(sample, fences, prior, time.Now().UTC())
	if event == nil {
		return
	}

	// Commit before publishing: a crash between the two loses an alert,
	// never duplicates one.
	p.keeper.Commit(ctx, next)

	metrics.RecordTransition(string(event.Kind))
	logging.Info().
		Int64("user_id", event.UserID).
		Str("kind", string(event.Kind)).
		Int64("fence_id", event.FenceID).
		Str("fence", event.FenceName).
		Msg("Geofence transition")

	alert := websocket.NewGeofenceAlert(AlertText(username, event))
	p.hub.Publish(models.GroupForUser(event.RecipientID), alert)
}

// AlertText renders the human-readable alert delivered to fence owners.
func AlertText(username string, event *models.TransitionEvent) string {
	verb := "ENTERED"
	if event.Kind == models.TransitionExit {
		verb = "EXITED"
	}
	return fmt.Sprintf("User '%s' has %s the geofence '%s'.", username, verb, event.FenceName)
}
