// Package scenario loads water-network layout files: one tower, its
// pumps, and the consumers drawing from it.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/torrevieja/waterworks/internal/domain/grid"
)

// Pump kinds accepted in layout files.
const (
	KindManual   = "manual"
	KindElectric = "electric"
)

// Scenario describes one network layout.
type Scenario struct {
	Name      string     `yaml:"name"`
	Tower     Tower      `yaml:"tower"`
	Pumps     []Pump     `yaml:"pumps"`
	Consumers []Consumer `yaml:"consumers"`
}

// Tower sizes the storage tower.
type Tower struct {
	MaxVolume int `yaml:"max_volume"`
}

// Pump places one pump. A detached pump skips the tower's notification
// feed and reacts only through the empty escalation.
type Pump struct {
	Name     string        `yaml:"name"`
	Kind     string        `yaml:"kind"`
	FlowRate int           `yaml:"flow_rate"`
	Detached bool          `yaml:"detached"`
	Position grid.Position `yaml:"position"`
}

// Consumer places one consumer.
type Consumer struct {
	Name          string        `yaml:"name"`
	DemandPerTick int           `yaml:"demand_per_tick"`
	Position      grid.Position `yaml:"position"`
}

// Load reads and validates a layout file.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// Default returns the built-in demo layout used when no file is given.
func Default() *Scenario {
	return &Scenario{
		Name:  "torrevieja",
		Tower: Tower{MaxVolume: 1000},
		Pumps: []Pump{
			{Name: "electric-1", Kind: KindElectric, FlowRate: 250, Position: grid.Position{X: 2, Y: 6}},
			{Name: "manual-1", Kind: KindManual, FlowRate: 150, Position: grid.Position{X: 4, Y: 7}},
		},
		Consumers: []Consumer{
			{Name: "house-1", DemandPerTick: 50, Position: grid.Position{X: 9, Y: 5}},
			{Name: "house-2", DemandPerTick: 70, Position: grid.Position{X: 11, Y: 6}},
		},
	}
}

// applyDefaults fills in the identities a file may omit.
func (s *Scenario) applyDefaults() {
	if s.Name == "" {
		s.Name = "unnamed"
	}
	for i := range s.Pumps {
		if s.Pumps[i].Name == "" {
			s.Pumps[i].Name = fmt.Sprintf("pump-%d", i+1)
		}
	}
	for i := range s.Consumers {
		if s.Consumers[i].Name == "" {
			s.Consumers[i].Name = fmt.Sprintf("consumer-%d", i+1)
		}
	}
}

// Validate rejects layouts the engine cannot run. Pump names must be
// unique because events and snapshots are keyed by them.
func (s *Scenario) Validate() error {
	if s.Tower.MaxVolume <= 0 {
		return fmt.Errorf("tower max_volume must be positive, got %d", s.Tower.MaxVolume)
	}
	pumpNames := make(map[string]bool, len(s.Pumps))
	for _, p := range s.Pumps {
		if p.Kind != KindManual && p.Kind != KindElectric {
			return fmt.Errorf("pump %s: unknown kind %q", p.Name, p.Kind)
		}
		if p.FlowRate <= 0 {
			return fmt.Errorf("pump %s: flow_rate must be positive, got %d", p.Name, p.FlowRate)
		}
		if pumpNames[p.Name] {
			return fmt.Errorf("duplicate pump name %q", p.Name)
		}
		pumpNames[p.Name] = true
	}
	consumerNames := make(map[string]bool, len(s.Consumers))
	for _, c := range s.Consumers {
		if c.DemandPerTick <= 0 {
			return fmt.Errorf("consumer %s: demand_per_tick must be positive, got %d", c.Name, c.DemandPerTick)
		}
		if consumerNames[c.Name] {
			return fmt.Errorf("duplicate consumer name %q", c.Name)
		}
		consumerNames[c.Name] = true
	}
	return nil
}
