// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

// Package main is the entry point for the Geotrackd server.
//
// Geotrackd ingests device location reports, evaluates circular geofences
// per tracked user, and pushes location updates, geofence alerts, and
// remote commands to subscribers over persistent websocket connections.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered env/file/defaults via Koanf v2
//  2. Database: DuckDB tables for users, locations, geofences, presence
//  3. WebSocket hub: per-user push groups
//  4. Tracker pipeline: breaker-wrapped persistence + fence evaluation
//  5. HTTP server: REST API, websocket endpoint, Prometheus metrics
//
// The websocket hub and the HTTP server run under a suture supervisor
// tree and are restarted independently on failure.
//
// # Configuration
//
// Minimal production setup:
//
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export DATABASE_PATH=/data/geotrackd.duckdb
//	export ADMIN_USERNAME=admin
//	export ADMIN_PASSWORD=secure-password
//	./geotrackd
//
// ADMIN_USERNAME/ADMIN_PASSWORD bootstrap the first admin account; the
// /auth/register endpoint only creates non-admin accounts.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the listener stops
// accepting connections, in-flight requests get 10s to drain, websocket
// clients are closed, and the database is flushed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/crypto/bcrypt"

	"github.com/geotrackd/geotrackd/internal/api"
	"github.com/geotrackd/geotrackd/internal/audit"
	"github.com/geotrackd/geotrackd/internal/auth"
	"github.com/geotrackd/geotrackd/internal/config"
	"github.com/geotrackd/geotrackd/internal/database"
	"github.com/geotrackd/geotrackd/internal/logging"
	"github.com/geotrackd/geotrackd/internal/models"
	"github.com/geotrackd/geotrackd/internal/presence"
	"github.com/geotrackd/geotrackd/internal/supervisor"
	"github.com/geotrackd/geotrackd/internal/tracker"
	ws "github.com/geotrackd/geotrackd/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config not available yet; the default logger has to do.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("listen_addr", cfg.Server.Addr()).
		Msg("Starting Geotrackd")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bootstrapAdmin(ctx, db, &cfg.Security); err != nil {
		logging.Fatal().Err(err).Msg("Failed to bootstrap admin account")
	}

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}

	auditStore, err := audit.NewDuckDBStore(db.Conn())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize audit store")
	}
	auditLog := audit.NewLogger(auditStore, audit.DefaultConfig())
	auditLog.StartCleanupRoutine(ctx)
	defer func() {
		if err := auditLog.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit logger")
		}
	}()

	hub := ws.NewHub()
	keeper := presence.NewKeeper(db)
	pipeline := tracker.NewPipeline(db, keeper, hub, &cfg.Tracker)
	relay := tracker.NewRelay(hub)

	handler := api.NewHandler(db, cfg, jwtManager, hub, pipeline, relay, auditLog)
	router := api.NewRouter(handler, auth.NewMiddleware(jwtManager), cfg)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	// zerolog feeds sutureslog through the slog adapter.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddStreamingService(supervisor.NewHubService(hub))
	tree.AddAPIService(supervisor.NewHTTPServerService(server, supervisor.DefaultTreeConfig().ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Geotrackd stopped gracefully")
}

// bootstrapAdmin creates the initial admin account from
// ADMIN_USERNAME/ADMIN_PASSWORD. Existing accounts are left untouched,
// so rotating ADMIN_PASSWORD requires deleting the account first.
func bootstrapAdmin(ctx context.Context, db *database.DB, sec *config.SecurityConfig) error {
	if sec.AdminUsername == "" {
		logging.Info().Msg("No admin bootstrap configured (ADMIN_USERNAME unset)")
		return nil
	}

	if _, err := db.GetUserByUsername(ctx, sec.AdminUsername); err == nil {
		logging.Info().Str("username", sec.AdminUsername).Msg("Admin account already exists")
		return nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("failed to look up admin account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(sec.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Username:     sec.AdminUsername,
		PasswordHash: string(hash),
		IsAdmin:      true,
	}
	if err := db.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	logging.Info().Str("username", sec.AdminUsername).Int64("user_id", admin.ID).Msg("Admin account created")
	return nil
}
