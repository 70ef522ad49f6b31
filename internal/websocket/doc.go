// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

// Package websocket implements the push channel: a hub of per-user
// subscriber groups fed by the ingestion pipeline and the command relay,
// and the gorilla/websocket client pumps that carry hub messages to
// connected devices and dashboards.
//
// Group membership is keyed by models.GroupKey (one group per tracked
// user). Publication is fire-and-forget: a slow or dead subscriber is
// evicted, never waited on, and an empty group is a normal condition
// rather than an error.
package websocket
