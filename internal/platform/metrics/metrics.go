// Package metrics provides observability for the simulation server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance and simulation counters.
type Collector struct {
	// Tick metrics
	TickCount      int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	LastTickTime   time.Time

	// Event log metrics
	EventsAppended int64

	// Water metrics
	Deliveries     int64
	WaterDelivered int64 // sum of delivered flow
	Overheats      int64
	Recoveries     int64
	Escalations    int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = &Collector{
	StartTime: time.Now(),
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordTick records a tick cycle completion.
func (c *Collector) RecordTick(latency time.Duration) {
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))

	// Update max (non-atomic but acceptable for metrics)
	if int64(latency) > atomic.LoadInt64(&c.TickLatencyMax) {
		atomic.StoreInt64(&c.TickLatencyMax, int64(latency))
	}

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordEvent records an append to the event log.
func (c *Collector) RecordEvent() {
	atomic.AddInt64(&c.EventsAppended, 1)
}

// RecordDelivery records one pump delivery and its flow.
func (c *Collector) RecordDelivery(flow int) {
	atomic.AddInt64(&c.Deliveries, 1)
	atomic.AddInt64(&c.WaterDelivered, int64(flow))
}

// RecordOverheat records an electric pump reaching its heat limit.
func (c *Collector) RecordOverheat() {
	atomic.AddInt64(&c.Overheats, 1)
}

// RecordRecovery records an electric pump returning to service.
func (c *Collector) RecordRecovery() {
	atomic.AddInt64(&c.Recoveries, 1)
}

// RecordEscalation records an empty-tower escalation pass.
func (c *Collector) RecordEscalation() {
	atomic.AddInt64(&c.Escalations, 1)
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)

	var tickAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"tick": map[string]interface{}{
			"count":          tickCount,
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"last_tick":      c.LastTickTime.Format(time.RFC3339),
		},

		"events": map[string]interface{}{
			"appended": atomic.LoadInt64(&c.EventsAppended),
		},

		"water": map[string]interface{}{
			"deliveries":       atomic.LoadInt64(&c.Deliveries),
			"volume_delivered": atomic.LoadInt64(&c.WaterDelivered),
			"overheats":        atomic.LoadInt64(&c.Overheats),
			"recoveries":       atomic.LoadInt64(&c.Recoveries),
			"escalations":      atomic.LoadInt64(&c.Escalations),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		snapshot := collector.Snapshot()
		json.NewEncoder(w).Encode(snapshot)
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		c := collector

		// Tick metrics
		fmt.Fprintf(w, "# HELP waterworks_tick_count Total tick cycles\n")
		fmt.Fprintf(w, "# TYPE waterworks_tick_count counter\n")
		fmt.Fprintf(w, "waterworks_tick_count %d\n\n", atomic.LoadInt64(&c.TickCount))

		fmt.Fprintf(w, "# HELP waterworks_tick_latency_max_ms Maximum tick latency\n")
		fmt.Fprintf(w, "# TYPE waterworks_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "waterworks_tick_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		// Event log metrics
		fmt.Fprintf(w, "# HELP waterworks_events_appended Total events appended to the log\n")
		fmt.Fprintf(w, "# TYPE waterworks_events_appended counter\n")
		fmt.Fprintf(w, "waterworks_events_appended %d\n\n", atomic.LoadInt64(&c.EventsAppended))

		// Water metrics
		fmt.Fprintf(w, "# HELP waterworks_deliveries Total pump deliveries\n")
		fmt.Fprintf(w, "# TYPE waterworks_deliveries counter\n")
		fmt.Fprintf(w, "waterworks_deliveries %d\n\n", atomic.LoadInt64(&c.Deliveries))

		fmt.Fprintf(w, "# HELP waterworks_water_delivered Total volume delivered by pumps\n")
		fmt.Fprintf(w, "# TYPE waterworks_water_delivered counter\n")
		fmt.Fprintf(w, "waterworks_water_delivered %d\n\n", atomic.LoadInt64(&c.WaterDelivered))

		fmt.Fprintf(w, "# HELP waterworks_pump_overheats Total overheat lockouts\n")
		fmt.Fprintf(w, "# TYPE waterworks_pump_overheats counter\n")
		fmt.Fprintf(w, "waterworks_pump_overheats %d\n\n", atomic.LoadInt64(&c.Overheats))

		fmt.Fprintf(w, "# HELP waterworks_pump_recoveries Total overheat recoveries\n")
		fmt.Fprintf(w, "# TYPE waterworks_pump_recoveries counter\n")
		fmt.Fprintf(w, "waterworks_pump_recoveries %d\n\n", atomic.LoadInt64(&c.Recoveries))

		fmt.Fprintf(w, "# HELP waterworks_empty_escalations Total empty-tower escalations\n")
		fmt.Fprintf(w, "# TYPE waterworks_empty_escalations counter\n")
		fmt.Fprintf(w, "waterworks_empty_escalations %d\n\n", atomic.LoadInt64(&c.Escalations))

		// WebSocket metrics
		fmt.Fprintf(w, "# HELP waterworks_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE waterworks_ws_connections gauge\n")
		fmt.Fprintf(w, "waterworks_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP waterworks_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE waterworks_ws_messages_total counter\n")
		fmt.Fprintf(w, "waterworks_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "waterworks_ws_messages_total{direction=\"out\"} %d\n\n", atomic.LoadInt64(&c.WSMessagesOut))

		fmt.Fprintf(w, "# HELP waterworks_ws_errors Total WebSocket errors\n")
		fmt.Fprintf(w, "# TYPE waterworks_ws_errors counter\n")
		fmt.Fprintf(w, "waterworks_ws_errors %d\n", atomic.LoadInt64(&c.WSErrors))
	}
}
