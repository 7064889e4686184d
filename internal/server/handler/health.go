package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// ChainProbe reports connectivity to the scanned chain.
type ChainProbe interface {
	BlockNumber(ctx context.Context) (uint64, error)
	Endpoint() string
}

// HealthHandler serves the health-check endpoint. When a chain probe is
// configured the response includes the connected RPC endpoint and latest
// block; a failed probe degrades the status without failing the request.
type HealthHandler struct {
	chain  ChainProbe
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. chain may be nil.
func NewHealthHandler(chain ChainProbe, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{chain: chain, logger: logger}
}

// HealthCheck responds with the process status and chain connectivity.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if h.chain != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		block, err := h.chain.BlockNumber(ctx)
		if err != nil {
			body["status"] = "degraded"
			body["chain"] = map[string]any{
				"connected": false,
				"error":     err.Error(),
			}
		} else {
			body["chain"] = map[string]any{
				"connected": true,
				"endpoint":  h.chain.Endpoint(),
				"block":     block,
			}
		}
	}

	writeJSON(w, http.StatusOK, body)
}
