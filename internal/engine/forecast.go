package engine

import (
	"fmt"

	"github.com/tiendc/go-deepcopy"

	"github.com/torrevieja/waterworks/internal/domain/pump"
	"github.com/torrevieja/waterworks/internal/domain/tower"
)

// maxForecastHorizon bounds the work a single forecast request can ask
// for.
const maxForecastHorizon = 10000

// Forecast is a projected tower trajectory.
type Forecast struct {
	Horizon      int         `json:"horizon"`
	StartVolume  int         `json:"start_volume"`
	FinalVolume  int         `json:"final_volume"`
	FinalState   tower.State `json:"final_state"`
	TicksToEmpty int         `json:"ticks_to_empty"` // -1 when never reached
	TicksToFull  int         `json:"ticks_to_full"`  // -1 when never reached
	Trajectory   []int       `json:"trajectory"`
}

// Forecast projects the tower volume over the given number of ticks
// without touching the live network. It runs on a deep copy of the
// current snapshot and mutates only the sandbox.
//
// The projection approximates the live cascade with one pump round per
// tick after the consumer pass, so with several consumers the projected
// heat rises more slowly than live heat. Overheat recovery is wall-clock
// time with no tick equivalent; a pump that locks out inside the
// projection stays locked out for the rest of the horizon.
func (e *Engine) Forecast(horizon int) (*Forecast, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("forecast horizon must be positive, got %d", horizon)
	}
	if horizon > maxForecastHorizon {
		return nil, fmt.Errorf("forecast horizon %d exceeds limit %d", horizon, maxForecastHorizon)
	}

	live := e.Snapshot()
	sandbox := new(Snapshot)
	if err := deepcopy.Copy(sandbox, &live); err != nil {
		return nil, fmt.Errorf("copy network state: %w", err)
	}

	f := &Forecast{
		Horizon:      horizon,
		StartVolume:  sandbox.Tower.Volume,
		TicksToEmpty: -1,
		TicksToFull:  -1,
		Trajectory:   make([]int, 0, horizon),
	}

	for tick := 1; tick <= horizon; tick++ {
		projectTick(sandbox)

		f.Trajectory = append(f.Trajectory, sandbox.Tower.Volume)
		if f.TicksToEmpty < 0 && sandbox.Tower.State == tower.StateEmpty {
			f.TicksToEmpty = tick
		}
		if f.TicksToFull < 0 && sandbox.Tower.State == tower.StateFull {
			f.TicksToFull = tick
		}
	}

	f.FinalVolume = sandbox.Tower.Volume
	f.FinalState = sandbox.Tower.State
	return f, nil
}

// projectTick advances the sandbox by one tick: consumers draw in order,
// then pumps react once to the resulting state. An empty tower widens
// the pump round to detached pumps, mirroring the escalation.
func projectTick(s *Snapshot) {
	s.Tick++

	for i := range s.Consumers {
		if !s.Consumers[i].CanConsume {
			continue
		}
		pourOut(s, s.Consumers[i].DemandPerTick)
	}

	empty := s.Tower.State == tower.StateEmpty
	for i := range s.Pumps {
		p := &s.Pumps[i]
		if !p.Linked && !empty {
			continue
		}
		if flow := projectPump(p, s.Tower.State); flow > 0 {
			pourIn(s, flow)
		}
	}
}

// projectPump applies the activation and thermal rules to a sandbox pump
// and returns the flow it delivers.
func projectPump(p *PumpView, s tower.State) int {
	if p.Overheated {
		return 0
	}
	p.Active = s == tower.StateLow || s == tower.StateEmpty
	if !p.Active {
		p.Status = pump.StatusIdle
		if p.Kind == pump.KindElectric {
			p.Heat = max(0, p.Heat-pump.HeatCooldown)
		}
		return 0
	}
	p.Status = pump.StatusPumping
	if p.Kind == pump.KindElectric {
		p.Heat = min(pump.OverheatThreshold, p.Heat+pump.HeatPerActivation)
		if p.Heat >= pump.OverheatThreshold {
			p.Overheated = true
			p.Active = false
			p.Status = pump.StatusOverheated
		}
	}
	return p.FlowRate
}

// pourOut withdraws from the sandbox tower and refreshes the derived
// state and consumer eligibility, mirroring the tower broadcast.
func pourOut(s *Snapshot, amount int) {
	s.Tower.Volume = max(0, s.Tower.Volume-amount)
	settle(s)
}

// pourIn adds to the sandbox tower, clamping at capacity.
func pourIn(s *Snapshot, amount int) {
	s.Tower.Volume = min(s.Tower.MaxVolume, s.Tower.Volume+amount)
	settle(s)
}

func settle(s *Snapshot) {
	s.Tower.State = tower.DeriveState(s.Tower.Volume, s.Tower.MaxVolume)
	for i := range s.Consumers {
		s.Consumers[i].CanConsume = s.Tower.State != tower.StateEmpty
	}
}
