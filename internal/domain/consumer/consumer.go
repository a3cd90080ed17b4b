// Package consumer implements the demand side of the network: each
// consumer draws a fixed quantity from the tower per tick, and is
// suppressed while the tower reports empty.
// This package is PURE and must NOT import any infrastructure packages.
package consumer

import (
	"sync/atomic"

	"github.com/torrevieja/waterworks/internal/domain/grid"
	"github.com/torrevieja/waterworks/internal/domain/tower"
)

// Consumer draws from a single tower for its whole lifetime.
type Consumer struct {
	name   string
	pos    grid.Position
	demand int
	tower  *tower.Tower

	// Eligibility reflects the last tower notification received, not the
	// live tower state. A consumer that has not yet seen the EMPTY
	// notification in a tick will still draw.
	canConsume atomic.Bool
}

var _ tower.Subscriber = (*Consumer)(nil)

// New binds a consumer to its tower. Eligibility is primed from the
// tower's current state.
func New(name string, pos grid.Position, demandPerTick int, t *tower.Tower) *Consumer {
	c := &Consumer{
		name:   name,
		pos:    pos,
		demand: demandPerTick,
		tower:  t,
	}
	c.canConsume.Store(t.State() != tower.StateEmpty)
	return c
}

// Update draws one tick's demand if the last received tower state allows
// it; otherwise it is a no-op.
func (c *Consumer) Update() {
	if c.canConsume.Load() {
		c.tower.Consume(c.demand)
	}
}

// OnTowerStateChanged implements tower.Subscriber: any non-empty state
// re-enables the consumer immediately, EMPTY suppresses it.
func (c *Consumer) OnTowerStateChanged(s tower.State) {
	c.canConsume.Store(s != tower.StateEmpty)
}

// Name returns the consumer's identity used in snapshots.
func (c *Consumer) Name() string { return c.name }

// Position returns the placement token.
func (c *Consumer) Position() grid.Position { return c.pos }

// DemandPerTick returns the fixed draw amount.
func (c *Consumer) DemandPerTick() int { return c.demand }

// CanConsume reports the current eligibility.
func (c *Consumer) CanConsume() bool { return c.canConsume.Load() }

// Snapshot is a read-only copy of the consumer for observers.
type Snapshot struct {
	Name          string        `json:"name"`
	Position      grid.Position `json:"position"`
	DemandPerTick int           `json:"demand_per_tick"`
	CanConsume    bool          `json:"can_consume"`
}

// Snapshot captures the consumer.
func (c *Consumer) Snapshot() Snapshot {
	return Snapshot{
		Name:          c.name,
		Position:      c.pos,
		DemandPerTick: c.demand,
		CanConsume:    c.canConsume.Load(),
	}
}
