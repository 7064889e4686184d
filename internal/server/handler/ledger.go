package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/corewatch/dexarb/internal/domain"
)

// LedgerHandler serves the execution ledger: the decision taken for every
// opportunity seen this run, plus persisted history when Postgres is enabled.
type LedgerHandler struct {
	view    ScanView
	history domain.LedgerStore
	logger  *slog.Logger
}

// NewLedgerHandler creates a LedgerHandler. history may be nil.
func NewLedgerHandler(view ScanView, history domain.LedgerStore, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{view: view, history: history, logger: logger}
}

// ListLedger returns the most recent in-memory ledger entries, newest last.
// GET /api/ledger
func (h *LedgerHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100, 1000)
	entries := h.view.Ledger(limit)

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// ListHistory returns persisted ledger entries from the history store, newest
// first.
// GET /api/ledger/history
func (h *LedgerHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history store not configured")
		return
	}

	limit := parseLimit(r, 100, 1000)

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	entries, err := h.history.ListRecent(ctx, limit)
	if err != nil {
		h.logger.Error("ledger history query failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
