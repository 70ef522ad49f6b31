// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

// Package presence keeps the per-user containment state consulted and
// updated on every ingested location sample.
//
// The in-memory map is authoritative for the running process. States are
// hydrated lazily from the store on first access and written through on
// commit; store failures are logged and never surfaced, so Get and Commit
// never fail.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/geotrackd/geotrackd/internal/logging"
	"github.com/geotrackd/geotrackd/internal/models"
)

// Store is the persistence collaborator for presence records.
// Implemented by *database.DB.
type Store interface {
	LoadPresence(ctx context.Context, userID int64) (*models.PresenceState, error)
	SavePresence(ctx context.Context, state models.PresenceState) error
}

// Keeper holds one PresenceState per tracked user.
//
// Concurrent read-modify-write cycles for the same user are serialized by
// the per-user mutex returned from LockUser; cycles for different users
// never contend. The locking scheme is keyed the same way the per-row
// UPSERT locks in internal/database are: a sync.Map of lazily created
// mutexes.
type Keeper struct {
	store Store

	mu     sync.RWMutex
	states map[int64]models.PresenceState

	userLocks sync.Map // int64 -> *sync.Mutex
}

// NewKeeper creates a Keeper backed by the given store. A nil store keeps
// presence purely in memory; useful in tests.
func NewKeeper(store Store) *Keeper {
	return &Keeper{
		store:  store,
		states: make(map[int64]models.PresenceState),
	}
}

// LockUser acquires the per-user mutex and returns its release func. The
// ingestion pipeline holds this lock across get -> evaluate -> commit so two
// concurrent samples for one user cannot both observe the same prior state.
func (k *Keeper) LockUser(userID int64) func() {
	muInterface, _ := k.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu, ok := muInterface.(*sync.Mutex)
	if !ok {
		mu = &sync.Mutex{}
		k.userLocks.Store(userID, mu)
	}
	mu.Lock()
	return mu.Unlock
}

// Get returns the user's presence state, creating the default
// (outside, no fence) record on first access. It never fails: a store
// hydration error is logged and the default state is returned.
func (k *Keeper) Get(ctx context.Context, userID int64) models.PresenceState {
	k.mu.RLock()
	state, ok := k.states[userID]
	k.mu.RUnlock()
	if ok {
		return state
	}

	state = k.hydrate(ctx, userID)

	k.mu.Lock()
	// Another goroutine may have hydrated or committed while we read the
	// store; its value wins.
	if existing, ok := k.states[userID]; ok {
		state = existing
	} else {
		k.states[userID] = state
	}
	k.mu.Unlock()

	return state
}

// Commit atomically replaces the user's presence state and writes it
// through to the store. Persistence failures are logged, not returned: the
// in-memory state is already the source of truth for subsequent
// evaluations, and a transient store hiccup must not fail the ingestion
// call that produced the transition.
func (k *Keeper) Commit(ctx context.Context, state models.PresenceState) {
	k.mu.Lock()
	k.states[state.UserID] = state
	k.mu.Unlock()

	if k.store == nil {
		return
	}
	if err := k.store.SavePresence(ctx, state); err != nil {
		logging.Ctx(ctx).Error().
			Err(err).
			Int64("user_id", state.UserID).
			Msg("failed to persist presence state")
	}
}

func (k *Keeper) hydrate(ctx context.Context, userID int64) models.PresenceState {
	defaultState := models.PresenceState{UserID: userID, UpdatedAt: time.Time{}}
	if k.store == nil {
		return defaultState
	}

	stored, err := k.store.LoadPresence(ctx, userID)
	if err != nil {
		logging.Ctx(ctx).Warn().
			Err(err).
			Int64("user_id", userID).
			Msg("failed to hydrate presence state, starting from default")
		return defaultState
	}
	if stored == nil {
		return defaultState
	}
	return *stored
}
