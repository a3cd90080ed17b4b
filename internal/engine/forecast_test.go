package engine

import (
	"reflect"
	"testing"
	"time"

	"github.com/torrevieja/waterworks/internal/domain/tower"
	"github.com/torrevieja/waterworks/internal/scenario"
)

func TestForecastDrainsToEmpty(t *testing.T) {
	scn := &scenario.Scenario{
		Name:  "no-pumps",
		Tower: scenario.Tower{MaxVolume: 1000},
		Consumers: []scenario.Consumer{
			{Name: "house-1", DemandPerTick: 50},
			{Name: "house-2", DemandPerTick: 70},
		},
	}
	eng, _ := buildEngine(t, scn, time.Minute)

	f, err := eng.Forecast(8)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	want := []int{380, 260, 140, 20, 0, 0, 0, 0}
	if !reflect.DeepEqual(f.Trajectory, want) {
		t.Errorf("Trajectory = %v, want %v", f.Trajectory, want)
	}
	if f.TicksToEmpty != 5 {
		t.Errorf("TicksToEmpty = %d, want 5", f.TicksToEmpty)
	}
	if f.TicksToFull != -1 {
		t.Errorf("TicksToFull = %d, want -1", f.TicksToFull)
	}
	if f.StartVolume != 500 || f.FinalVolume != 0 || f.FinalState != tower.StateEmpty {
		t.Errorf("endpoints = %d -> %d/%s, want 500 -> 0/EMPTY", f.StartVolume, f.FinalVolume, f.FinalState)
	}
}

// A detached pump is projected only into empty ticks, so the tower
// bounces off the bottom instead of ending the tick dry.
func TestForecastDetachedPumpCatchesEmptyTick(t *testing.T) {
	scn := &scenario.Scenario{
		Name:  "detached",
		Tower: scenario.Tower{MaxVolume: 1000},
		Pumps: []scenario.Pump{
			{Name: "electric-1", Kind: scenario.KindElectric, FlowRate: 250, Detached: true},
		},
		Consumers: []scenario.Consumer{
			{Name: "house-1", DemandPerTick: 50},
			{Name: "house-2", DemandPerTick: 70},
		},
	}
	eng, _ := buildEngine(t, scn, time.Minute)

	f, err := eng.Forecast(5)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	want := []int{380, 260, 140, 20, 250}
	if !reflect.DeepEqual(f.Trajectory, want) {
		t.Errorf("Trajectory = %v, want %v", f.Trajectory, want)
	}
	if f.TicksToEmpty != -1 {
		t.Errorf("TicksToEmpty = %d, want -1 for a mid-tick bounce", f.TicksToEmpty)
	}
	if f.FinalState != tower.StateNormal {
		t.Errorf("FinalState = %s, want NORMAL", f.FinalState)
	}
}

func TestForecastFillsToFull(t *testing.T) {
	scn := &scenario.Scenario{
		Name:  "big-pump",
		Tower: scenario.Tower{MaxVolume: 1000},
		Pumps: []scenario.Pump{
			{Name: "main", Kind: scenario.KindManual, FlowRate: 1000},
		},
		Consumers: []scenario.Consumer{
			{Name: "house-1", DemandPerTick: 150},
		},
	}
	eng, _ := buildEngine(t, scn, time.Minute)

	f, err := eng.Forecast(4)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	want := []int{350, 200, 1000, 850}
	if !reflect.DeepEqual(f.Trajectory, want) {
		t.Errorf("Trajectory = %v, want %v", f.Trajectory, want)
	}
	if f.TicksToFull != 3 {
		t.Errorf("TicksToFull = %d, want 3", f.TicksToFull)
	}
	if f.FinalVolume != 850 || f.FinalState != tower.StateNormal {
		t.Errorf("final = %d/%s, want 850/NORMAL", f.FinalVolume, f.FinalState)
	}
}

// A pump that locks out inside the projection stays locked out: recovery
// is wall-clock time and has no tick equivalent.
func TestForecastLockoutNeverRecovers(t *testing.T) {
	scn := &scenario.Scenario{
		Name:  "undersized",
		Tower: scenario.Tower{MaxVolume: 1000},
		Pumps: []scenario.Pump{
			{Name: "well", Kind: scenario.KindElectric, FlowRate: 50},
		},
		Consumers: []scenario.Consumer{
			{Name: "plant", DemandPerTick: 100},
		},
	}
	eng, _ := buildEngine(t, scn, time.Minute)

	f, err := eng.Forecast(20)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(f.Trajectory) != 20 {
		t.Fatalf("trajectory length = %d, want 20", len(f.Trajectory))
	}
	// The pump holds the line at 50 until its tenth activation latches the
	// lockout; the next draw lands dry and stays there.
	if f.Trajectory[12] != 50 {
		t.Errorf("Trajectory[12] = %d, want 50", f.Trajectory[12])
	}
	if f.TicksToEmpty != 14 {
		t.Errorf("TicksToEmpty = %d, want 14", f.TicksToEmpty)
	}
	if f.Trajectory[19] != 0 || f.FinalState != tower.StateEmpty {
		t.Errorf("final = %d/%s, want 0/EMPTY", f.FinalVolume, f.FinalState)
	}
}

func TestForecastLeavesLiveStateUntouched(t *testing.T) {
	eng, _ := buildEngine(t, scenario.Default(), time.Minute)
	eng.Step()
	eng.Step()

	before := eng.Snapshot()
	if _, err := eng.Forecast(50); err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	after := eng.Snapshot()

	if !reflect.DeepEqual(before, after) {
		t.Errorf("live state changed across a forecast:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestForecastRejectsBadHorizons(t *testing.T) {
	eng, _ := buildEngine(t, scenario.Default(), time.Minute)
	if _, err := eng.Forecast(0); err == nil {
		t.Error("Forecast(0) should fail")
	}
	if _, err := eng.Forecast(-3); err == nil {
		t.Error("Forecast(-3) should fail")
	}
	if _, err := eng.Forecast(maxForecastHorizon + 1); err == nil {
		t.Error("Forecast above the horizon limit should fail")
	}
}
