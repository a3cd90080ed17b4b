// Package tower defines the storage tower, the single shared volume every
// pump and consumer in the network couples through.
// This package is PURE and must NOT import any infrastructure packages.
package tower

import "sync"

// State is the level category derived from the volume fraction.
type State string

const (
	StateNormal State = "NORMAL"
	StateLow    State = "LOW"
	StateEmpty  State = "EMPTY"
	StateFull   State = "FULL"
)

// DeriveState maps a volume reading onto its level category. Evaluation
// order matters: Empty wins at zero, Low below 20% of capacity, Full at or
// above 95%. Thresholds use exact integer arithmetic.
func DeriveState(volume, maxVolume int) State {
	switch {
	case volume == 0:
		return StateEmpty
	case 5*volume < maxVolume:
		return StateLow
	case 20*volume >= 19*maxVolume:
		return StateFull
	default:
		return StateNormal
	}
}

// Subscriber receives the tower state after every successful mutation.
// Callbacks run synchronously on the mutating goroutine, in registration
// order, and are allowed to call back into the tower.
type Subscriber interface {
	OnTowerStateChanged(s State)
}

// Tower owns the shared water volume. Pumps and consumers hold a non-owning
// reference and interact only through Consume, AddWater, and the
// subscription list.
type Tower struct {
	maxVolume int

	mu     sync.RWMutex
	volume int
	state  State
	subs   []Subscriber
}

// New creates a tower filled to half its capacity.
func New(maxVolume int) *Tower {
	t := &Tower{
		maxVolume: maxVolume,
		volume:    maxVolume / 2,
	}
	t.state = DeriveState(t.volume, t.maxVolume)
	return t
}

// Subscribe appends s to the notification list. Subscribers are notified in
// the order they registered.
func (t *Tower) Subscribe(s Subscriber) {
	t.mu.Lock()
	t.subs = append(t.subs, s)
	t.mu.Unlock()
}

// Unsubscribe removes s from the notification list. A notification pass
// already in flight keeps its own view of the list.
func (t *Tower) Unsubscribe(s Subscriber) {
	t.mu.Lock()
	for i, sub := range t.subs {
		if sub == s {
			t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
			break
		}
	}
	t.mu.Unlock()
}

// Consume withdraws amount from the tower, clamping at zero. Over-draw is
// not an error. Every call notifies subscribers with the resulting state,
// whether or not the category changed.
func (t *Tower) Consume(amount int) {
	t.mu.Lock()
	t.volume = max(0, t.volume-amount)
	t.state = DeriveState(t.volume, t.maxVolume)
	st := t.state
	subs := t.subs
	t.mu.Unlock()

	notify(subs, st)
}

// AddWater pours amount into the tower, clamping at capacity. On a full
// tower the call is a strict no-op: no mutation and no notification.
func (t *Tower) AddWater(amount int) {
	t.mu.Lock()
	if t.volume >= t.maxVolume {
		t.mu.Unlock()
		return
	}
	t.volume = min(t.maxVolume, t.volume+amount)
	t.state = DeriveState(t.volume, t.maxVolume)
	st := t.state
	subs := t.subs
	t.mu.Unlock()

	notify(subs, st)
}

// notify runs outside the tower mutex so subscribers may re-enter: a pump
// reacting to LOW pours water back before the pass finishes.
func notify(subs []Subscriber, s State) {
	for _, sub := range subs {
		sub.OnTowerStateChanged(s)
	}
}

// Volume returns the current volume.
func (t *Tower) Volume() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.volume
}

// MaxVolume returns the capacity fixed at construction.
func (t *Tower) MaxVolume() int {
	return t.maxVolume
}

// State returns the current derived level category.
func (t *Tower) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Snapshot is a read-only copy of the tower for observers.
type Snapshot struct {
	Volume    int   `json:"volume"`
	MaxVolume int   `json:"max_volume"`
	State     State `json:"state"`
}

// Snapshot captures the tower under its read lock.
func (t *Tower) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{Volume: t.volume, MaxVolume: t.maxVolume, State: t.state}
}
