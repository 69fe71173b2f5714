package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/halcyonlabs/claimd/errors"
)

// WebSocket timeout constants following Gorilla best practices
// See: https://github.com/gorilla/websocket/blob/master/examples/chat/client.go
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

// Client represents a WebSocket client connection
type Client struct {
	server    *ClaimdServer
	conn      *websocket.Conn
	send      chan interface{}
	done      chan struct{} // Closed on disconnect; never the send channel itself
	id        string
	closeOnce sync.Once // Prevents double-close panics

	// Batch subscription state. A client follows at most one batch at a
	// time; subscribing again replaces the previous subscription.
	subMu     sync.Mutex
	batchID   string
	cancelSub func()
}

// close signals shutdown and cancels any batch subscription exactly once.
// The send channel is never closed: the event forwarder and broadcaster
// write to it concurrently, so writePump exits on done instead.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.subMu.Lock()
		if c.cancelSub != nil {
			c.cancelSub()
			c.cancelSub = nil
		}
		c.subMu.Unlock()
		close(c.done)
	})
}

// subscribeBatch attaches the client to a batch's progress stream:
// one snapshot of the aggregate as of now, then live events only.
func (c *Client) subscribeBatch(batchID string) error {
	agg, events, cancel, err := c.server.tracker.Subscribe(batchID)
	if err != nil {
		return errors.Wrapf(err, "failed to subscribe to batch %s", shortID(batchID))
	}

	// subDone unblocks the forwarder when this subscription is replaced
	// or the client disconnects; the tracker's cancel only detaches the
	// channel, it does not close it.
	subDone := make(chan struct{})
	var cancelOnce sync.Once
	wrappedCancel := func() {
		cancelOnce.Do(func() {
			cancel()
			close(subDone)
		})
	}

	c.subMu.Lock()
	if c.cancelSub != nil {
		c.cancelSub()
	}
	c.batchID = batchID
	c.cancelSub = wrappedCancel
	c.subMu.Unlock()

	snapshot := SnapshotMessage{
		Type:      "snapshot",
		Aggregate: agg,
		Timestamp: time.Now().Unix(),
	}
	select {
	case c.send <- snapshot:
	default:
		c.server.logger.Warnw("Client queue full, dropping snapshot",
			"client_id", c.id,
			"batch_id", shortID(batchID),
		)
	}

	// Forward live events until the tracker closes the stream (sweep)
	// or the subscription is cancelled.
	c.server.wg.Add(1)
	go func() {
		defer c.server.wg.Done()
		for {
			select {
			case <-c.server.ctx.Done():
				return
			case <-subDone:
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				select {
				case c.send <- EventMessage{Type: "event", Event: event}:
				default:
					// Slow subscriber: progress events are advisory,
					// dropping one never corrupts the aggregate.
				}
			}
		}
	}()

	return nil
}

// readPump handles reading messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.server.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.server.logger.Debugw("Read pump started", "client_id", c.id)

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			c.server.logger.Warnw("JSON unmarshal error",
				"error", err.Error(),
				"client_id", c.id,
			)
			continue
		}

		c.routeMessage(&msg)
	}
}

// handleReadError logs unexpected WebSocket read errors.
// Expected closure codes (going away, abnormal, no status) are silently ignored.
func (c *Client) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		c.server.logger.Warnw("WebSocket read error",
			"error", err.Error(),
			"client_id", c.id,
		)
	}
}

// routeMessage dispatches incoming WebSocket messages to appropriate handlers
func (c *Client) routeMessage(msg *ClientMessage) {
	switch msg.Type {
	case "subscribe":
		if msg.BatchID == "" {
			c.server.logger.Debugw("Subscribe without batch_id ignored", "client_id", c.id)
			return
		}
		if err := c.subscribeBatch(msg.BatchID); err != nil {
			c.server.logger.Debugw("Batch subscription failed",
				"client_id", c.id,
				"batch_id", shortID(msg.BatchID),
				"error", err.Error(),
			)
			select {
			case c.send <- map[string]string{"type": "error", "error": "unknown batch: " + msg.BatchID}:
			default:
			}
		}
	case "ping":
		// Deadline already refreshed by the pong handler
	default:
		c.server.logger.Debugw("Unknown message type",
			"type", msg.Type,
			"client_id", c.id,
		)
	}
}

// writePump writes queued messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	c.server.logger.Debugw("Write pump started", "client_id", c.id)

	for {
		select {
		case <-c.server.ctx.Done():
			c.server.logger.Debugw("Write pump stopping due to server shutdown", "client_id", c.id)
			return
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.logger.Warnw("WebSocket write error",
					"error", err.Error(),
					"client_id", c.id,
				)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
