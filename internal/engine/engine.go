package engine

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/torrevieja/waterworks/internal/domain/consumer"
	"github.com/torrevieja/waterworks/internal/domain/grid"
	"github.com/torrevieja/waterworks/internal/domain/pump"
	"github.com/torrevieja/waterworks/internal/domain/tower"
	"github.com/torrevieja/waterworks/internal/events"
	"github.com/torrevieja/waterworks/internal/platform/metrics"
	"github.com/torrevieja/waterworks/internal/scenario"
)

// Engine is the central orchestrator: it owns the tower, its pumps and
// consumers, wires every observable transition into the event log, and
// drives the tick cycle through the Loop.
type Engine struct {
	logger   *zap.Logger
	eventLog *events.EventLog

	tower     *tower.Tower
	pumps     []pumpEntry
	consumers []*consumer.Consumer

	loop  *Loop
	clock atomic.Uint64
}

// pumpEntry remembers whether a pump rides the tower's notification feed.
// A detached pump reacts only through the empty escalation.
type pumpEntry struct {
	pump   *pump.Pump
	linked bool
}

// Options carries the runtime knobs a layout file does not fix.
type Options struct {
	TickRate         time.Duration
	OverheatRecovery time.Duration
}

// New builds the network described by scn. Tower subscription order is
// fixed: the event recorder first, then consumers, then linked pumps.
// The recorder leads so recorded volumes are exact even when a pump
// refills the tower in the middle of a notification pass; consumers
// precede pumps so a refill re-enables them before their next draw.
func New(scn *scenario.Scenario, opts Options, log *zap.Logger, eventLog *events.EventLog) *Engine {
	e := &Engine{
		logger:   log,
		eventLog: eventLog,
		tower:    tower.New(scn.Tower.MaxVolume),
	}
	e.loop = NewLoop(e, opts.TickRate, log)

	e.tower.Subscribe(towerRecorder{e})

	for _, cc := range scn.Consumers {
		c := consumer.New(cc.Name, cc.Position, cc.DemandPerTick, e.tower)
		e.tower.Subscribe(c)
		e.consumers = append(e.consumers, c)
	}

	for _, pc := range scn.Pumps {
		var p *pump.Pump
		switch pc.Kind {
		case scenario.KindElectric:
			p = pump.NewElectric(pc.Name, pc.Position, pc.FlowRate, opts.OverheatRecovery)
		default:
			p = pump.NewManual(pc.Name, pc.Position, pc.FlowRate)
		}
		// Delivery order matters: record the delivery before routing the
		// water, so the log shows cause before effect.
		p.Subscribe(deliveryRecorder{e})
		p.Subscribe(waterRouter{e})
		p.SetThermalEvents(thermalRecorder{e})
		if !pc.Detached {
			e.tower.Subscribe(pumpLink{p})
		}
		e.pumps = append(e.pumps, pumpEntry{pump: p, linked: !pc.Detached})

		log.Info("pump installed",
			zap.String("pump", pc.Name),
			zap.String("kind", string(p.Kind())),
			zap.Int("flow_rate", pc.FlowRate),
			zap.Bool("linked", !pc.Detached))
	}

	log.Info("network assembled",
		zap.String("scenario", scn.Name),
		zap.Int("max_volume", scn.Tower.MaxVolume),
		zap.Int("pumps", len(e.pumps)),
		zap.Int("consumers", len(e.consumers)))

	return e
}

// Start resumes the tick cycle. Returns false if it was already running.
func (e *Engine) Start() bool { return e.loop.Start() }

// Stop suspends the tick cycle. Returns false if it was already stopped.
func (e *Engine) Stop() bool { return e.loop.Stop() }

// Running reports whether the loop is ticking.
func (e *Engine) Running() bool { return e.loop.Running() }

// Run drives the loop until ctx is cancelled. Call in a goroutine.
func (e *Engine) Run(ctx context.Context) { e.loop.Run(ctx) }

// Tick returns the number of ticks processed so far.
func (e *Engine) Tick() uint64 { return e.clock.Load() }

// Step processes a single tick immediately, regardless of the loop
// toggle. Headless runs drive the clock with this.
func (e *Engine) Step() { e.tick() }

// tick advances the clock and runs one update cycle: every consumer
// draws in its fixed order, then the empty escalation fires if the tick
// left the tower dry. All propagation inside the cycle is synchronous.
func (e *Engine) tick() {
	start := time.Now()
	tick := e.clock.Add(1)

	for _, c := range e.consumers {
		c.Update()
	}

	if e.tower.State() == tower.StateEmpty {
		e.escalate()
	}

	metrics.Get().RecordTick(time.Since(start))
	e.logger.Debug("tick complete",
		zap.Uint64("tick", tick),
		zap.Int("volume", e.tower.Volume()),
		zap.String("state", string(e.tower.State())))
}

// escalate forces every non-overheated pump to react to the empty tower,
// linked or not. The escalation event is recorded before the pumps run
// so the log shows cause before effect.
func (e *Engine) escalate() {
	forced := make([]*pump.Pump, 0, len(e.pumps))
	names := make([]string, 0, len(e.pumps))
	for _, entry := range e.pumps {
		if !entry.pump.Overheated() {
			forced = append(forced, entry.pump)
			names = append(names, entry.pump.Name())
		}
	}

	metrics.Get().RecordEscalation()
	e.logger.Warn("tower empty, forcing pumps", zap.Strings("pumps", names))
	e.appendEvent(events.EventTypeEmptyEscalation, "loop", events.EscalationPayload{PumpsForced: names})

	for _, p := range forced {
		p.Update(tower.StateEmpty)
	}
}

// appendEvent stamps an event with the current tick and records it.
func (e *Engine) appendEvent(typ events.EventType, source string, payload any) {
	e.eventLog.Append(events.NewEvent(e.clock.Load(), typ, source, payload))
	metrics.Get().RecordEvent()
}

// towerRecorder appends a TOWER_STATE event for every tower notification.
// It is the tower's first subscriber, so each recorded volume is read
// before any other subscriber reacts to the same mutation.
type towerRecorder struct{ e *Engine }

func (r towerRecorder) OnTowerStateChanged(s tower.State) {
	r.e.appendEvent(events.EventTypeTowerState, "tower", events.TowerStatePayload{
		Volume:    r.e.tower.Volume(),
		MaxVolume: r.e.tower.MaxVolume(),
		State:     string(s),
	})
}

// pumpLink feeds tower notifications into one pump.
type pumpLink struct{ p *pump.Pump }

func (l pumpLink) OnTowerStateChanged(s tower.State) {
	l.p.Update(s)
}

// deliveryRecorder logs a pump delivery before the water reaches the
// tower.
type deliveryRecorder struct{ e *Engine }

func (r deliveryRecorder) OnWaterDelivered(d pump.Delivery) {
	metrics.Get().RecordDelivery(d.Flow)
	r.e.appendEvent(events.EventTypeWaterDelivered, d.Pump, events.DeliveryPayload(d))
}

// waterRouter pours a delivery into the tower. This is the only path by
// which pumped water enters the network.
type waterRouter struct{ e *Engine }

func (r waterRouter) OnWaterDelivered(d pump.Delivery) {
	r.e.tower.AddWater(d.Flow)
}

// thermalRecorder logs electric pump lockouts and recoveries. Recovery
// arrives on the pump's timer goroutine, possibly long after the loop
// stopped.
type thermalRecorder struct{ e *Engine }

func (r thermalRecorder) OnPumpOverheated(name string, heat int) {
	metrics.Get().RecordOverheat()
	r.e.logger.Warn("pump overheated", zap.String("pump", name), zap.Int("heat", heat))
	r.e.appendEvent(events.EventTypePumpOverheated, name, events.ThermalPayload{Pump: name, Heat: heat})
}

func (r thermalRecorder) OnPumpRecovered(name string) {
	metrics.Get().RecordRecovery()
	r.e.logger.Info("pump recovered", zap.String("pump", name))
	r.e.appendEvent(events.EventTypePumpRecovered, name, events.ThermalPayload{Pump: name})
}

// Snapshot is a point-in-time view of the whole network.
type Snapshot struct {
	Tick      uint64              `json:"tick"`
	Running   bool                `json:"running"`
	Tower     tower.Snapshot      `json:"tower"`
	Pumps     []PumpView          `json:"pumps"`
	Consumers []consumer.Snapshot `json:"consumers"`
}

// PumpView is a pump snapshot extended with engine-level linkage.
type PumpView struct {
	Name       string        `json:"name"`
	Kind       pump.Kind     `json:"kind"`
	Position   grid.Position `json:"position"`
	FlowRate   int           `json:"flow_rate"`
	Active     bool          `json:"active"`
	Status     pump.Status   `json:"status"`
	Heat       int           `json:"heat"`
	Overheated bool          `json:"overheated"`
	Linked     bool          `json:"linked"`
}

// Snapshot captures the network. Each component is captured under its
// own lock; the aggregate is not a single atomic cut, which is fine for
// observers.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:      e.clock.Load(),
		Running:   e.loop.Running(),
		Tower:     e.tower.Snapshot(),
		Pumps:     make([]PumpView, 0, len(e.pumps)),
		Consumers: make([]consumer.Snapshot, 0, len(e.consumers)),
	}
	for _, entry := range e.pumps {
		ps := entry.pump.Snapshot()
		snap.Pumps = append(snap.Pumps, PumpView{
			Name:       ps.Name,
			Kind:       ps.Kind,
			Position:   ps.Position,
			FlowRate:   ps.FlowRate,
			Active:     ps.Active,
			Status:     ps.Status,
			Heat:       ps.Heat,
			Overheated: ps.Overheated,
			Linked:     entry.linked,
		})
	}
	for _, c := range e.consumers {
		snap.Consumers = append(snap.Consumers, c.Snapshot())
	}
	return snap
}
