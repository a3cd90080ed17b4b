// Package pump implements the pumps feeding the tower: a manual variant
// with a stateless activation rule and an electric variant with a thermal
// lockout. Behavior dispatches over the kind tag; there is no pump
// hierarchy.
// This package is PURE and must NOT import any infrastructure packages.
package pump

import (
	"sync"
	"time"

	"github.com/torrevieja/waterworks/internal/domain/grid"
	"github.com/torrevieja/waterworks/internal/domain/tower"
)

// Kind tags the pump variant.
type Kind string

const (
	KindManual   Kind = "MANUAL"
	KindElectric Kind = "ELECTRIC"
)

// Status is the display label for the pump's current condition.
type Status string

const (
	StatusIdle       Status = "IDLE"
	StatusPumping    Status = "PUMPING"
	StatusOverheated Status = "OVERHEATED"
)

// Thermal model of the electric variant: heat rises per active update,
// falls while idle, and the lockout latches at the threshold.
const (
	HeatPerActivation = 10
	HeatCooldown      = 5
	OverheatThreshold = 100
)

// Delivery is the payload of a pumped-water notification.
type Delivery struct {
	Pump string `json:"pump"`
	Flow int    `json:"flow"`
}

// DeliveryListener receives pumped-water notifications. The pump never
// pours into the tower itself; a listener performs the mutation.
type DeliveryListener interface {
	OnWaterDelivered(d Delivery)
}

// ThermalEvents receives lockout transitions of an electric pump. Callbacks
// run outside the pump mutex.
type ThermalEvents interface {
	OnPumpOverheated(name string, heat int)
	OnPumpRecovered(name string)
}

// Pump is a tagged variant. The zero value is not usable; construct with
// NewManual or NewElectric.
type Pump struct {
	name     string
	kind     Kind
	pos      grid.Position
	flowRate int

	// Wall-clock lockout duration of the electric variant. The recovery
	// deadline is real time, not simulated time.
	recoveryDelay time.Duration

	mu         sync.Mutex
	active     bool
	status     Status
	heat       int
	overheated bool
	listeners  []DeliveryListener
	thermal    ThermalEvents
}

// NewManual creates a pump with the stateless activation rule: no heat, no
// lockout, no memory across updates.
func NewManual(name string, pos grid.Position, flowRate int) *Pump {
	return &Pump{
		name:     name,
		kind:     KindManual,
		pos:      pos,
		flowRate: flowRate,
		status:   StatusIdle,
	}
}

// NewElectric creates a thermally-limited pump. recoveryDelay is the
// wall-clock lockout applied when the pump overheats.
func NewElectric(name string, pos grid.Position, flowRate int, recoveryDelay time.Duration) *Pump {
	return &Pump{
		name:          name,
		kind:          KindElectric,
		pos:           pos,
		flowRate:      flowRate,
		recoveryDelay: recoveryDelay,
		status:        StatusIdle,
	}
}

// Subscribe appends l to the delivery notification list. Listeners are
// invoked synchronously, in registration order.
func (p *Pump) Subscribe(l DeliveryListener) {
	p.mu.Lock()
	p.listeners = append(p.listeners, l)
	p.mu.Unlock()
}

// SetThermalEvents wires the lockout transition callbacks.
func (p *Pump) SetThermalEvents(te ThermalEvents) {
	p.mu.Lock()
	p.thermal = te
	p.mu.Unlock()
}

// Update reacts to a tower state. The mutex is the serialization point for
// everything the pump retains, so an update is atomic with respect to the
// recovery timer. Deliveries and thermal callbacks are emitted after the
// bookkeeping, outside the mutex, so listeners may pour into the tower and
// trigger further notifications recursively.
func (p *Pump) Update(s tower.State) {
	p.mu.Lock()
	var flow int
	var latched bool
	switch p.kind {
	case KindManual:
		flow = p.updateManual(s)
	case KindElectric:
		flow, latched = p.updateElectric(s)
	}
	listeners := p.listeners
	thermal := p.thermal
	p.mu.Unlock()

	if flow > 0 {
		d := Delivery{Pump: p.name, Flow: flow}
		for _, l := range listeners {
			l.OnWaterDelivered(d)
		}
	}
	if latched && thermal != nil {
		thermal.OnPumpOverheated(p.name, OverheatThreshold)
	}
}

// updateManual: active exactly while the tower is LOW or EMPTY.
func (p *Pump) updateManual(s tower.State) int {
	p.active = s == tower.StateLow || s == tower.StateEmpty
	if !p.active {
		p.status = StatusIdle
		return 0
	}
	p.status = StatusPumping
	return p.flowRate
}

// updateElectric: the thermal rule. An overheated pump ignores the input
// entirely until the recovery timer clears the lockout. An active update
// still delivers on the call that latches the lockout.
func (p *Pump) updateElectric(s tower.State) (int, bool) {
	if p.overheated {
		return 0, false
	}
	p.active = s == tower.StateLow || s == tower.StateEmpty
	if !p.active {
		p.status = StatusIdle
		p.heat = max(0, p.heat-HeatCooldown)
		return 0, false
	}
	p.status = StatusPumping
	p.heat = min(OverheatThreshold, p.heat+HeatPerActivation)
	if p.heat >= OverheatThreshold {
		p.lockout()
		return p.flowRate, true
	}
	return p.flowRate, false
}

// lockout latches the overheat state and schedules the wall-clock recovery.
// Caller holds p.mu. The timer is never cancelled: stopping the simulation
// does not stop a recovery already underway.
func (p *Pump) lockout() {
	p.overheated = true
	p.active = false
	p.status = StatusOverheated
	time.AfterFunc(p.recoveryDelay, p.recover)
}

// recover clears the lockout. Runs on the timer goroutine; the pump mutex
// serializes it against any in-progress tick.
func (p *Pump) recover() {
	p.mu.Lock()
	p.heat = 0
	p.overheated = false
	p.status = StatusIdle
	thermal := p.thermal
	p.mu.Unlock()

	if thermal != nil {
		thermal.OnPumpRecovered(p.name)
	}
}

// Name returns the pump's identity used in events and snapshots.
func (p *Pump) Name() string { return p.name }

// Kind returns the variant tag.
func (p *Pump) Kind() Kind { return p.kind }

// Position returns the placement token.
func (p *Pump) Position() grid.Position { return p.pos }

// FlowRate returns the fixed per-delivery volume.
func (p *Pump) FlowRate() int { return p.flowRate }

// Active reports whether the last update evaluated the pump active.
func (p *Pump) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Status returns the display label.
func (p *Pump) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Heat returns the current heat accumulator (always 0 for manual pumps).
func (p *Pump) Heat() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heat
}

// Overheated reports whether the lockout is latched.
func (p *Pump) Overheated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overheated
}

// Snapshot is a read-only copy of the pump for observers.
type Snapshot struct {
	Name       string        `json:"name"`
	Kind       Kind          `json:"kind"`
	Position   grid.Position `json:"position"`
	FlowRate   int           `json:"flow_rate"`
	Active     bool          `json:"active"`
	Status     Status        `json:"status"`
	Heat       int           `json:"heat"`
	Overheated bool          `json:"overheated"`
}

// Snapshot captures the pump under its mutex.
func (p *Pump) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Name:       p.name,
		Kind:       p.kind,
		Position:   p.pos,
		FlowRate:   p.flowRate,
		Active:     p.active,
		Status:     p.status,
		Heat:       p.heat,
		Overheated: p.overheated,
	}
}
