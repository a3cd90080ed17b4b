// Package events defines the simulation history: every observable
// transition is appended to an in-memory log that the websocket poller and
// the history API read from. The simulation core itself never reads the
// log back.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType identifies what happened.
type EventType string

const (
	EventTypeTowerState      EventType = "TOWER_STATE"
	EventTypeWaterDelivered  EventType = "WATER_DELIVERED"
	EventTypePumpOverheated  EventType = "PUMP_OVERHEATED"
	EventTypePumpRecovered   EventType = "PUMP_RECOVERED"
	EventTypeEmptyEscalation EventType = "EMPTY_ESCALATION"
	EventTypeSimStarted      EventType = "SIM_STARTED"
	EventTypeSimStopped      EventType = "SIM_STOPPED"
)

// SimEvent is one entry in the append-only history.
type SimEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Tick      uint64    `json:"tick"`
	Type      EventType `json:"type"`
	Source    string    `json:"source"` // "tower", "loop", or a pump name
	Payload   any       `json:"payload,omitempty"`
}

// TowerStatePayload accompanies EventTypeTowerState.
type TowerStatePayload struct {
	Volume    int    `json:"volume"`
	MaxVolume int    `json:"max_volume"`
	State     string `json:"state"`
}

// DeliveryPayload accompanies EventTypeWaterDelivered.
type DeliveryPayload struct {
	Pump string `json:"pump"`
	Flow int    `json:"flow"`
}

// ThermalPayload accompanies the overheat and recovery events.
type ThermalPayload struct {
	Pump string `json:"pump"`
	Heat int    `json:"heat"`
}

// EscalationPayload accompanies EventTypeEmptyEscalation.
type EscalationPayload struct {
	PumpsForced []string `json:"pumps_forced"`
}

// NewEvent stamps an event with a fresh ID and wall-clock time.
func NewEvent(tick uint64, typ EventType, source string, payload any) SimEvent {
	return SimEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Tick:      tick,
		Type:      typ,
		Source:    source,
		Payload:   payload,
	}
}

// EventLog is the in-memory append-only history.
type EventLog struct {
	mu     sync.RWMutex
	events []SimEvent
}

// NewEventLog creates an empty log.
func NewEventLog() *EventLog {
	return &EventLog{
		events: make([]SimEvent, 0, 1024),
	}
}

// Append adds one event to the history. Events are immutable once
// appended.
func (el *EventLog) Append(e SimEvent) {
	el.mu.Lock()
	el.events = append(el.events, e)
	el.mu.Unlock()
}

// Len returns the number of events appended so far.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// Replay returns the full history in append order. The log is append-only,
// so a returned slice stays valid: later appends never rewrite its prefix.
func (el *EventLog) Replay() []SimEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.events
}

// Since returns the events at or after index start. Use together with Len
// as a cursor when draining the log incrementally.
func (el *EventLog) Since(start int) []SimEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	if start < 0 {
		start = 0
	}
	if start >= len(el.events) {
		return nil
	}
	return el.events[start:]
}

// ByType returns the events of one type, in append order.
func (el *EventLog) ByType(t EventType) []SimEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	var result []SimEvent
	for _, e := range el.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}
