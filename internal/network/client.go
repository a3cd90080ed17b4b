package network

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/torrevieja/waterworks/internal/platform/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Client represents an active WebSocket connection.
type Client struct {
	hub             *Hub
	conn            *websocket.Conn
	send            chan []byte
	lastCommandTime time.Time
}

// NewClient creates a new WebSocket client and returns it.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, hub.profile.ClientSendBuffer),
	}
}

// Register adds the client to the hub.
func (c *Client) Register() {
	c.hub.register <- c
}

// ReadPump pumps messages from the websocket connection to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read failed", zap.Error(err))
				metrics.Get().RecordWSError()
			}
			break
		}
		metrics.Get().RecordWSMessage(true)

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.logger.Warn("unparseable websocket frame", zap.Error(err))
			c.sendError("malformed frame")
			continue
		}

		c.handleCommand(msg)
	}
}

// handleCommand executes one inbound control frame. Clients get the same
// control surface as the HTTP API: toggle the loop, or ask for a
// snapshot.
func (c *Client) handleCommand(msg wsMessage) {
	if msg.Type != msgTypeCommand {
		c.sendError("unsupported frame type: " + msg.Type)
		return
	}

	minInterval := time.Second / time.Duration(c.hub.profile.MaxCommandsPerSecond)
	if time.Since(c.lastCommandTime) < minInterval {
		c.hub.logger.Warn("rate limit exceeded for websocket command",
			zap.String("command", msg.Command))
		c.sendError("rate limited")
		return
	}
	c.lastCommandTime = time.Now()

	switch msg.Command {
	case "start":
		c.hub.engine.Start()
		c.enqueue(wsMessage{Type: msgTypeAck, Command: msg.Command})
	case "stop":
		c.hub.engine.Stop()
		c.enqueue(wsMessage{Type: msgTypeAck, Command: msg.Command})
	case "snapshot":
		snap := c.hub.engine.Snapshot()
		c.enqueue(wsMessage{Type: msgTypeSnapshot, Snapshot: &snap})
	default:
		c.sendError("unknown command: " + msg.Command)
	}
}

func (c *Client) sendError(reason string) {
	c.enqueue(wsMessage{Type: msgTypeError, Error: reason})
}

// enqueue marshals a frame onto the client's send queue, dropping it if
// the queue is full.
func (c *Client) enqueue(msg wsMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("serialize websocket frame", zap.Error(err))
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			metrics.Get().RecordWSMessage(false)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
				metrics.Get().RecordWSMessage(false)
			}

			if err := w.Close(); err != nil {
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
