package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/corewatch/dexarb/internal/domain"
)

// PoolSource lists the liquidity pools one venue exposes for a token set.
type PoolSource interface {
	Name() string
	Pools(ctx context.Context, tokens []domain.TokenRef) ([]domain.PoolInfo, error)
}

// PoolHandler serves live pool reserves across the configured venues.
type PoolHandler struct {
	venues []PoolSource
	tokens []domain.TokenRef
	logger *slog.Logger
}

// NewPoolHandler creates a PoolHandler over the given venues and token set.
func NewPoolHandler(venues []PoolSource, tokens []domain.TokenRef, logger *slog.Logger) *PoolHandler {
	return &PoolHandler{venues: venues, tokens: tokens, logger: logger}
}

// ListPools returns the reserves of every existing pool over the configured
// token set. A venue whose reads fail is reported with an error entry instead
// of failing the whole response. With ?venue=<name> only that venue is
// queried.
// GET /api/pools
func (h *PoolHandler) ListPools(w http.ResponseWriter, r *http.Request) {
	want := r.URL.Query().Get("venue")

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var pools []domain.PoolInfo
	errs := map[string]string{}
	matched := false

	for _, venue := range h.venues {
		if want != "" && venue.Name() != want {
			continue
		}
		matched = true

		vp, err := venue.Pools(ctx, h.tokens)
		if err != nil {
			h.logger.Warn("pool listing failed",
				slog.String("venue", venue.Name()),
				slog.String("error", err.Error()),
			)
			errs[venue.Name()] = err.Error()
			continue
		}
		pools = append(pools, vp...)
	}

	if want != "" && !matched {
		writeError(w, http.StatusNotFound, "unknown venue: "+want)
		return
	}

	body := map[string]any{
		"pools": pools,
		"count": len(pools),
	}
	if len(errs) > 0 {
		body["errors"] = errs
	}
	writeJSON(w, http.StatusOK, body)
}
