// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/geotrackd/geotrackd/internal/logging"
	"github.com/geotrackd/geotrackd/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024

	// sendBufferSize bounds the per-client hand-off; a subscriber that
	// falls this far behind is evicted by the hub.
	sendBufferSize = 256
)

// clientIDCounter hands out monotonically increasing client ids so the hub
// can order members deterministically.
var clientIDCounter atomic.Uint64

// Client is the middleman between one websocket connection and the hub.
// Each client belongs to exactly one group for its lifetime; a user with
// two devices holds two clients in the same group.
type Client struct {
	id    uint64
	hub   *Hub
	group models.GroupKey
	conn  *websocket.Conn
	send  chan Message

	closeOnce sync.Once
}

// NewClient wraps an upgraded connection for the given group. The caller
// must Join the client to the hub and then Start it.
func NewClient(hub *Hub, conn *websocket.Conn, group models.GroupKey) *Client {
	return &Client{
		id:    clientIDCounter.Add(1),
		hub:   hub,
		group: group,
		conn:  conn,
		send:  make(chan Message, sendBufferSize),
	}
}

// Group returns the routing key this client subscribed to.
func (c *Client) Group() models.GroupKey {
	return c.group
}

// closeSend closes the send channel exactly once. The writePump observes
// the close and terminates the connection.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// readPump discards inbound frames (subscribers are receive-only) and
// keeps the read deadline fed by pongs. On any read error the client
// leaves its group.
func (c *Client) readPump() {
	defer func() {
		c.hub.Leave(c.group, c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Msg("unexpected websocket close")
			}
			return
		}
	}
}

// writePump drains the send channel onto the connection and keeps the peer
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := MarshalMessage(message)
			if err != nil {
				logging.Error().Err(err).Str("message_type", message.Type).Msg("failed to marshal message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Error().Err(err).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
