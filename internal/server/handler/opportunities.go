package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/corewatch/dexarb/internal/domain"
)

// ScanView is the read surface of the orchestrator consumed by HTTP handlers.
type ScanView interface {
	LatestOpportunities() []domain.Opportunity
	Stats() domain.ScanStats
	Ledger(limit int) []domain.ExecutionResult
}

// OpportunityHandler serves the live scan results.
type OpportunityHandler struct {
	view    ScanView
	history domain.OpportunityStore
	logger  *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler. history may be nil when
// no Postgres store is configured; the history endpoint then returns 404.
func NewOpportunityHandler(view ScanView, history domain.OpportunityStore, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{view: view, history: history, logger: logger}
}

// ListLatest returns the opportunities from the most recent completed scan
// tick. With ?profitable=true only opportunities above the profit floor are
// returned.
// GET /api/opportunities
func (h *OpportunityHandler) ListLatest(w http.ResponseWriter, r *http.Request) {
	opps := h.view.LatestOpportunities()

	if r.URL.Query().Get("profitable") == "true" {
		filtered := opps[:0:0]
		for _, opp := range opps {
			if opp.Profitable {
				filtered = append(filtered, opp)
			}
		}
		opps = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"opportunities": opps,
		"count":         len(opps),
	})
}

// ListHistory returns persisted opportunities from the history store, newest
// first.
// GET /api/opportunities/history
func (h *OpportunityHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history store not configured")
		return
	}

	limit := parseLimit(r, 50, 500)

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	opps, err := h.history.ListRecent(ctx, limit)
	if err != nil {
		h.logger.Error("opportunity history query failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"opportunities": opps,
		"count":         len(opps),
	})
}
