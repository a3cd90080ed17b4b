// Control API: REST surface for operating the simulation. Start and
// stop the loop, read the live state, or project it forward.
package network

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/torrevieja/waterworks/internal/engine"
)

const defaultForecastTicks = 60

// ControlHandler exposes loop control and state inspection.
type ControlHandler struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewControlHandler creates a new control handler.
func NewControlHandler(eng *engine.Engine, log *zap.Logger) *ControlHandler {
	return &ControlHandler{
		engine: eng,
		logger: log,
	}
}

// HandleStart resumes the tick loop.
// POST /api/sim/start
func (ch *ControlHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ch.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	changed := ch.engine.Start()
	ch.logger.Info("control api start", zap.Bool("changed", changed))
	ch.jsonSuccess(w, map[string]interface{}{
		"running": true,
		"changed": changed,
	})
}

// HandleStop suspends the tick loop. Pending pump recoveries are not
// affected.
// POST /api/sim/stop
func (ch *ControlHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ch.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	changed := ch.engine.Stop()
	ch.logger.Info("control api stop", zap.Bool("changed", changed))
	ch.jsonSuccess(w, map[string]interface{}{
		"running": false,
		"changed": changed,
	})
}

// HandleState returns the live network snapshot.
// GET /api/state
func (ch *ControlHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ch.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ch.jsonSuccess(w, ch.engine.Snapshot())
}

// HandleForecast projects the tower volume forward.
// GET /api/forecast?ticks=N
func (ch *ControlHandler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ch.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ticks := defaultForecastTicks
	if s := r.URL.Query().Get("ticks"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			ch.jsonError(w, "Invalid ticks parameter", http.StatusBadRequest)
			return
		}
		ticks = v
	}

	forecast, err := ch.engine.Forecast(ticks)
	if err != nil {
		ch.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ch.jsonSuccess(w, map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"forecast":     forecast,
	})
}

// RegisterRoutes sets up the control API routes.
func (ch *ControlHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/sim/start", ch.HandleStart)
	mux.HandleFunc("/api/sim/stop", ch.HandleStop)
	mux.HandleFunc("/api/state", ch.HandleState)
	mux.HandleFunc("/api/forecast", ch.HandleForecast)
}

// jsonError sends an error response.
func (ch *ControlHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// jsonSuccess sends a success response.
func (ch *ControlHandler) jsonSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(data)
}
