// History API: JSON export of the simulation event log. Browsers use the
// websocket stream for live updates and this endpoint for the backlog.
package network

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/torrevieja/waterworks/internal/events"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// HistoryHandler serves the event log over HTTP.
type HistoryHandler struct {
	eventLog *events.EventLog
	logger   *zap.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(el *events.EventLog, log *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		eventLog: el,
		logger:   log,
	}
}

// HistoryResponse is the API response for an event page.
type HistoryResponse struct {
	TotalEvents int               `json:"total_events"`
	NextCursor  int               `json:"next_cursor"`
	FilteredBy  string            `json:"filtered_by,omitempty"`
	GeneratedAt string            `json:"generated_at"`
	Events      []events.SimEvent `json:"events"`
}

// HandleEvents returns a page of the event log.
// GET /api/events?since=N&type=TOWER_STATE&limit=N
//
// since is the cursor returned by the previous page; pass next_cursor
// back to poll incrementally.
func (hh *HistoryHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		hh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	since := 0
	if s := r.URL.Query().Get("since"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			hh.jsonError(w, "Invalid since cursor", http.StatusBadRequest)
			return
		}
		since = v
	}

	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 || v > maxHistoryLimit {
			hh.jsonError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = v
	}

	typeFilter := r.URL.Query().Get("type")
	filterDesc := ""
	if typeFilter != "" {
		filterDesc = "type " + typeFilter
	}

	raw := hh.eventLog.Since(since)
	page := make([]events.SimEvent, 0, min(limit, len(raw)))
	consumed := 0
	for _, e := range raw {
		if len(page) >= limit {
			break
		}
		consumed++
		if typeFilter != "" && string(e.Type) != typeFilter {
			continue
		}
		page = append(page, e)
	}

	response := HistoryResponse{
		TotalEvents: len(page),
		NextCursor:  since + consumed,
		FilteredBy:  filterDesc,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      page,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleStats returns aggregate counts over the whole log.
// GET /api/events/stats
func (hh *HistoryHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		hh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	all := hh.eventLog.Replay()
	byType := make(map[string]int)
	for _, e := range all {
		byType[string(e.Type)]++
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"total_events": len(all),
		"by_type":      byType,
	})
}

// RegisterRoutes sets up the history API routes.
func (hh *HistoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/events", hh.HandleEvents)
	mux.HandleFunc("/api/events/stats", hh.HandleStats)
}

// jsonError sends an error response.
func (hh *HistoryHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
