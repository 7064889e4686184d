package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/corewatch/dexarb/internal/domain"
)

// PriceReader is the cache read surface the prices endpoint consumes.
type PriceReader interface {
	GetPrice(ctx context.Context, pair string) (float64, time.Time, error)
	GetPrices(ctx context.Context, pairs []string) (map[string]float64, error)
}

// PriceHandler serves the latest observed pair rates from the price cache.
// The scanner refreshes the cache every tick; stale entries expire on their
// own, so an absent key means no recent observation.
type PriceHandler struct {
	cache  PriceReader
	pairs  []string
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler watching both directions of every
// token pair on every venue. cache may be nil when Redis is not configured.
func NewPriceHandler(cache PriceReader, tokens []domain.TokenRef, venues []string, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{
		cache:  cache,
		pairs:  pairKeys(tokens, venues),
		logger: logger,
	}
}

// pairKeys enumerates the cache keys the scanner writes: "IN/OUT@venue" for
// every ordered token pair on every venue.
func pairKeys(tokens []domain.TokenRef, venues []string) []string {
	keys := make([]string, 0, len(venues)*len(tokens)*(len(tokens)-1))
	for _, v := range venues {
		for i := range tokens {
			for j := range tokens {
				if i == j {
					continue
				}
				keys = append(keys, tokens[i].Symbol+"/"+tokens[j].Symbol+"@"+v)
			}
		}
	}
	return keys
}

// ListPrices returns every cached rate, or a single observation with its
// timestamp when ?pair= is given.
// GET /api/prices
func (h *PriceHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusNotFound, "price cache not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if pair := r.URL.Query().Get("pair"); pair != "" {
		price, ts, err := h.cache.GetPrice(ctx, pair)
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no recent observation for pair")
			return
		}
		if err != nil {
			h.logger.Error("price lookup failed",
				slog.String("pair", pair),
				slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "price lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"pair":        pair,
			"price":       price,
			"observed_at": ts.UTC(),
		})
		return
	}

	prices, err := h.cache.GetPrices(ctx, h.pairs)
	if err != nil {
		h.logger.Error("price cache read failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "price cache read failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"prices": prices,
		"count":  len(prices),
	})
}
