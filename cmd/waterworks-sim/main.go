// Package main - waterworks-sim
// Headless scenario runner. Executes a fixed number of ticks without the
// HTTP server and prints a tick-by-tick report, for trying out scenario
// files and pump sizings before deploying them.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/torrevieja/waterworks/internal/domain/tower"
	"github.com/torrevieja/waterworks/internal/engine"
	"github.com/torrevieja/waterworks/internal/events"
	"github.com/torrevieja/waterworks/internal/platform/logger"
	"github.com/torrevieja/waterworks/internal/scenario"
)

func main() {
	scenarioPath := flag.String("scenario", "", "scenario YAML file (empty runs the built-in layout)")
	ticks := flag.Int("ticks", 20, "number of ticks to simulate")
	recovery := flag.Duration("recovery", 5*time.Second, "electric pump recovery delay")
	forecast := flag.Int("forecast", 0, "project this many ticks past the end of the run")
	verbose := flag.Bool("v", false, "show engine debug logging")
	flag.Parse()

	level := "error"
	if *verbose {
		level = "debug"
	}
	appLogger, err := logger.New(level, "console")
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer appLogger.Sync()

	scn := scenario.Default()
	if *scenarioPath != "" {
		scn, err = scenario.Load(*scenarioPath)
		if err != nil {
			log.Fatalf("scenario error: %v", err)
		}
	}

	eventLog := events.NewEventLog()
	eng := engine.New(scn, engine.Options{
		TickRate:         time.Second,
		OverheatRecovery: *recovery,
	}, appLogger, eventLog)

	fmt.Println("=========================================")
	fmt.Println("WATERWORKS - Scenario Runner")
	fmt.Println("=========================================")
	fmt.Printf("Scenario:  %s\n", scn.Name)
	fmt.Printf("Capacity:  %d\n", scn.Tower.MaxVolume)
	fmt.Printf("Pumps:     %d\n", len(scn.Pumps))
	fmt.Printf("Consumers: %d\n", len(scn.Consumers))
	fmt.Printf("Ticks:     %d\n", *ticks)
	fmt.Println("=========================================")

	for i := 0; i < *ticks; i++ {
		eng.Step()
		snap := eng.Snapshot()
		fmt.Printf("tick %4d  volume %5d/%d  %-7s  %s\n",
			snap.Tick, snap.Tower.Volume, snap.Tower.MaxVolume, snap.Tower.State, pumpColumn(snap))
	}

	final := eng.Snapshot()
	printSummary(eventLog, final)

	if *forecast > 0 {
		printForecast(eng, *forecast)
	}
}

// pumpColumn renders the per-pump status flags for one report line.
func pumpColumn(snap engine.Snapshot) string {
	parts := make([]string, 0, len(snap.Pumps))
	for _, p := range snap.Pumps {
		parts = append(parts, fmt.Sprintf("%s:%s", p.Name, p.Status))
	}
	return strings.Join(parts, " ")
}

func printSummary(el *events.EventLog, final engine.Snapshot) {
	fmt.Println("\n=========================================")
	fmt.Println("RUN SUMMARY")
	fmt.Println("=========================================")
	fmt.Printf("Final volume:  %d/%d (%s)\n", final.Tower.Volume, final.Tower.MaxVolume, final.Tower.State)
	fmt.Printf("Deliveries:    %d\n", len(el.ByType(events.EventTypeWaterDelivered)))
	fmt.Printf("Overheats:     %d\n", len(el.ByType(events.EventTypePumpOverheated)))
	fmt.Printf("Recoveries:    %d\n", len(el.ByType(events.EventTypePumpRecovered)))
	fmt.Printf("Escalations:   %d\n", len(el.ByType(events.EventTypeEmptyEscalation)))

	fmt.Println("-----------------------------------------")
	switch final.Tower.State {
	case tower.StateEmpty:
		fmt.Println("❌ RESULT: tower ran dry, pumps cannot keep up")
	case tower.StateLow:
		fmt.Println("⚠️  RESULT: tower low at end of run")
	default:
		fmt.Println("✅ RESULT: supply stable")
	}
}

func printForecast(eng *engine.Engine, horizon int) {
	fc, err := eng.Forecast(horizon)
	if err != nil {
		log.Fatalf("forecast error: %v", err)
	}

	fmt.Println("\n=========================================")
	fmt.Printf("FORECAST (+%d ticks)\n", horizon)
	fmt.Println("=========================================")
	fmt.Printf("Projected volume: %d (%s)\n", fc.FinalVolume, fc.FinalState)
	if fc.TicksToEmpty >= 0 {
		fmt.Printf("Runs dry in:      %d ticks\n", fc.TicksToEmpty)
	}
	if fc.TicksToFull >= 0 {
		fmt.Printf("Fills up in:      %d ticks\n", fc.TicksToFull)
	}
}
