// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/geotrackd/geotrackd/internal/logging"
	"github.com/geotrackd/geotrackd/internal/metrics"
	"github.com/geotrackd/geotrackd/internal/models"
)

// Hub maintains named groups of live subscriber clients and delivers
// messages to the members of one group at a time.
//
// Delivery semantics: Publish hands each member's message to a bounded,
// buffered per-client channel without blocking. A member whose buffer is
// full is evicted rather than allowed to stall the publisher; there is no
// retry, so delivery is at-most-once per member present at publish time.
// Leaving a group discards nothing already buffered for the client but
// guarantees no further deliveries.
type Hub struct {
	mu     sync.Mutex
	groups map[models.GroupKey]map[*Client]bool
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		groups: make(map[models.GroupKey]map[*Client]bool),
	}
}

// Join registers the client under the group. Re-joining with the same
// client is a no-op. Joining a hub that has shut down closes the client
// immediately.
func (h *Hub) Join(group models.GroupKey, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		client.closeSend()
		return
	}

	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Client]bool)
		h.groups[group] = members
	}
	if members[client] {
		return
	}
	members[client] = true
	metrics.WebSocketConnections.Inc()
	logging.Info().
		Str("group", string(group)).
		Int("group_size", len(members)).
		Msg("websocket client joined")
}

// Leave removes the client from the group and closes its send channel.
// No-op if the client is not a member.
func (h *Hub) Leave(group models.GroupKey, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(group, client)
}

func (h *Hub) removeLocked(group models.GroupKey, client *Client) {
	members, ok := h.groups[group]
	if !ok || !members[client] {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.groups, group)
	}
	client.closeSend()
	metrics.WebSocketConnections.Dec()
	logging.Info().
		Str("group", string(group)).
		Int("group_size", len(members)).
		Msg("websocket client left")
}

// Publish delivers the message to every client currently in the group,
// best-effort and fire-and-forget. An empty group is not an error: devices
// being offline is a normal condition. Members are visited in client-id
// order so delivery order is reproducible under test.
func (h *Hub) Publish(group models.GroupKey, message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.groups[group]
	if len(members) == 0 {
		return
	}

	clients := make([]*Client, 0, len(members))
	for client := range members {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		select {
		case client.send <- message:
			metrics.WebSocketMessagesPublished.WithLabelValues(message.Type).Inc()
		default:
			// Buffer full: the subscriber is too slow or dead. Evict it
			// rather than block the publisher.
			metrics.WebSocketMessagesDropped.WithLabelValues(message.Type).Inc()
			logging.Warn().
				Str("group", string(group)).
				Str("message_type", message.Type).
				Msg("subscriber buffer full, evicting client")
			h.removeLocked(group, client)
		}
	}
}

// RunWithContext keeps the hub open until the context is canceled, then
// closes every connected client. Designed for suture supervision: the
// method returns ctx.Err() so the supervisor logs a clean shutdown.
func (h *Hub) RunWithContext(ctx context.Context) error {
	<-ctx.Done()

	h.mu.Lock()
	h.closed = true
	closedCount := 0
	for group, members := range h.groups {
		for client := range members {
			client.closeSend()
			closedCount++
		}
		delete(h.groups, group)
	}
	h.mu.Unlock()

	metrics.WebSocketConnections.Set(0)
	logging.Info().
		Str("component", "websocket-hub").
		Int("clients_closed", closedCount).
		Msg("websocket hub stopped")
	return ctx.Err()
}

// GroupSize returns the current number of clients in the group.
func (h *Hub) GroupSize(group models.GroupKey) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[group])
}

// ClientCount returns the total number of connected clients across groups.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := 0
	for _, members := range h.groups {
		total += len(members)
	}
	return total
}
