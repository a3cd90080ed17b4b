package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layout.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write scenario file: %v", err)
	}
	return path
}

func TestLoadParsesFullLayout(t *testing.T) {
	path := writeScenario(t, `
name: test-town
tower:
  max_volume: 2000
pumps:
  - name: well
    kind: electric
    flow_rate: 300
    detached: true
    position: {x: 1, y: 2}
  - name: backup
    kind: manual
    flow_rate: 100
consumers:
  - name: mill
    demand_per_tick: 80
    position: {x: 5, y: 5}
`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "test-town" {
		t.Errorf("Name = %q, want %q", s.Name, "test-town")
	}
	if s.Tower.MaxVolume != 2000 {
		t.Errorf("Tower.MaxVolume = %d, want 2000", s.Tower.MaxVolume)
	}
	if len(s.Pumps) != 2 {
		t.Fatalf("len(Pumps) = %d, want 2", len(s.Pumps))
	}
	well := s.Pumps[0]
	if well.Kind != KindElectric || well.FlowRate != 300 || !well.Detached {
		t.Errorf("pump well = %+v, want electric/300/detached", well)
	}
	if well.Position.X != 1 || well.Position.Y != 2 {
		t.Errorf("pump well position = %v, want (1,2)", well.Position)
	}
	if s.Pumps[1].Detached {
		t.Error("pump backup should default to attached")
	}
	if len(s.Consumers) != 1 || s.Consumers[0].DemandPerTick != 80 {
		t.Errorf("Consumers = %+v, want one consumer with demand 80", s.Consumers)
	}
}

func TestLoadFillsMissingNames(t *testing.T) {
	path := writeScenario(t, `
tower:
  max_volume: 500
pumps:
  - kind: manual
    flow_rate: 50
  - kind: electric
    flow_rate: 75
consumers:
  - demand_per_tick: 10
`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "unnamed" {
		t.Errorf("Name = %q, want %q", s.Name, "unnamed")
	}
	if s.Pumps[0].Name != "pump-1" || s.Pumps[1].Name != "pump-2" {
		t.Errorf("pump names = %q, %q, want pump-1, pump-2", s.Pumps[0].Name, s.Pumps[1].Name)
	}
	if s.Consumers[0].Name != "consumer-1" {
		t.Errorf("consumer name = %q, want consumer-1", s.Consumers[0].Name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load succeeded on a missing file")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeScenario(t, "tower: [not: a: mapping")
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted malformed YAML")
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "zero capacity",
			body: "tower:\n  max_volume: 0\n",
			want: "max_volume",
		},
		{
			name: "unknown pump kind",
			body: "tower:\n  max_volume: 100\npumps:\n  - kind: diesel\n    flow_rate: 10\n",
			want: "unknown kind",
		},
		{
			name: "zero flow rate",
			body: "tower:\n  max_volume: 100\npumps:\n  - kind: manual\n    flow_rate: 0\n",
			want: "flow_rate",
		},
		{
			name: "duplicate pump names",
			body: "tower:\n  max_volume: 100\npumps:\n  - name: p\n    kind: manual\n    flow_rate: 10\n  - name: p\n    kind: manual\n    flow_rate: 10\n",
			want: "duplicate pump",
		},
		{
			name: "zero demand",
			body: "tower:\n  max_volume: 100\nconsumers:\n  - demand_per_tick: 0\n",
			want: "demand_per_tick",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeScenario(t, tc.body))
			if err == nil {
				t.Fatal("Load accepted an invalid layout")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	s := Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("Default layout failed validation: %v", err)
	}
	if s.Tower.MaxVolume != 1000 {
		t.Errorf("Tower.MaxVolume = %d, want 1000", s.Tower.MaxVolume)
	}
	if len(s.Pumps) != 2 || len(s.Consumers) != 2 {
		t.Errorf("layout has %d pumps and %d consumers, want 2 and 2", len(s.Pumps), len(s.Consumers))
	}
}
