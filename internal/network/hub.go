package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/torrevieja/waterworks/internal/engine"
	"github.com/torrevieja/waterworks/internal/events"
	"github.com/torrevieja/waterworks/internal/platform/metrics"
	"github.com/torrevieja/waterworks/internal/platform/tuning"
)

// Frame types exchanged with browsers.
const (
	msgTypeWelcome  = "welcome"
	msgTypeEvent    = "event"
	msgTypeSnapshot = "snapshot"
	msgTypeCommand  = "command"
	msgTypeAck      = "ack"
	msgTypeError    = "error"
)

// wsMessage is the envelope for every frame the hub sends or receives.
// Outbound frames carry an event or a snapshot; inbound frames carry a
// command.
type wsMessage struct {
	Type     string           `json:"type"`
	Event    *events.SimEvent `json:"event,omitempty"`
	Snapshot *engine.Snapshot `json:"snapshot,omitempty"`
	Command  string           `json:"command,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Hub maintains the set of active clients and broadcasts simulation
// events to them.
type Hub struct {
	engine   *engine.Engine
	eventLog *events.EventLog
	profile  *tuning.Profile

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
	logger     *zap.Logger
}

// NewHub initializes a new WebSocket Hub.
func NewHub(eng *engine.Engine, el *events.EventLog, prof *tuning.Profile, log *zap.Logger) *Hub {
	return &Hub{
		engine:     eng,
		eventLog:   el,
		profile:    prof,
		broadcast:  make(chan []byte, prof.BroadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     log,
	}
}

// Run starts the Hub's main loop to handle client connections and
// broadcasts.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("websocket hub shutting down")
			return
		case client := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= h.profile.MaxClients {
				h.mu.Unlock()
				h.logger.Warn("client limit reached, rejecting connection",
					zap.Int("limit", h.profile.MaxClients))
				close(client.send)
				continue
			}
			h.clients[client] = true
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(1)
			h.logger.Info("websocket client connected")
			h.sendWelcome(client)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.Get().RecordWSConnection(-1)
				h.logger.Info("websocket client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// A client that cannot keep up is cut loose rather
					// than allowed to stall the rest.
					close(client.send)
					delete(h.clients, client)
					metrics.Get().RecordWSConnection(-1)
					metrics.Get().RecordWSError()
				}
			}
			h.mu.Unlock()
		}
	}
}

// sendWelcome greets a fresh client with the full network snapshot so it
// can render before the first event arrives.
func (h *Hub) sendWelcome(client *Client) {
	snap := h.engine.Snapshot()
	payload, err := json.Marshal(wsMessage{Type: msgTypeWelcome, Snapshot: &snap})
	if err != nil {
		h.logger.Error("serialize welcome snapshot", zap.Error(err))
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

// BroadcastEvent serializes a simulation event and queues it for every
// connected client.
func (h *Hub) BroadcastEvent(event events.SimEvent) {
	payload, err := json.Marshal(wsMessage{Type: msgTypeEvent, Event: &event})
	if err != nil {
		h.logger.Error("serialize event for broadcast", zap.Error(err))
		return
	}
	h.broadcast <- payload
}

// StartEventPoller spawns a goroutine that drains new event log entries
// into the hub. Only events appended after the poller starts are
// streamed; the backlog is the history API's job.
func (h *Hub) StartEventPoller(ctx context.Context) {
	go func() {
		pollInterval := time.NewTicker(h.profile.EventPollInterval)
		defer pollInterval.Stop()

		cursor := h.eventLog.Len()

		for {
			select {
			case <-ctx.Done():
				return
			case <-pollInterval.C:
				fresh := h.eventLog.Since(cursor)
				for _, event := range fresh {
					h.BroadcastEvent(event)
				}
				cursor += len(fresh)
			}
		}
	}()
}
