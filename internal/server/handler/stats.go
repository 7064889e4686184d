package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// requestTimeout bounds store-backed handler queries.
const requestTimeout = 10 * time.Second

// StatsHandler serves the orchestrator's lifetime counters.
type StatsHandler struct {
	view   ScanView
	logger *slog.Logger
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(view ScanView, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{view: view, logger: logger}
}

// GetStats returns the process-lifetime scan counters.
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.view.Stats()
	uptime := time.Since(stats.StartedAt).Seconds()
	if uptime < 0 {
		uptime = 0
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats":          stats,
		"uptime_seconds": int64(uptime),
	})
}
