// Package server exposes the scanner's read-only HTTP and WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/corewatch/dexarb/internal/config"
	"github.com/corewatch/dexarb/internal/server/handler"
	"github.com/corewatch/dexarb/internal/server/middleware"
	"github.com/corewatch/dexarb/internal/server/ws"
)

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health        *handler.HealthHandler
	Opportunities *handler.OpportunityHandler
	Stats         *handler.StatsHandler
	Ledger        *handler.LedgerHandler
	Pools         *handler.PoolHandler
	Prices        *handler.PriceHandler
}

// Server is the headless HTTP + WebSocket API for the arbitrage scanner. All
// endpoints are read-only: trade execution is driven by the scan loop, never
// by API calls.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered. Middleware order is CORS,
// then request logging, then auth (auth is disabled when no API key is
// configured). The health endpoint stays outside auth so load balancers can
// probe it.
func New(cfg config.ServerConfig, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/opportunities", handlers.Opportunities.ListLatest)
	mux.HandleFunc("GET /api/opportunities/history", handlers.Opportunities.ListHistory)
	mux.HandleFunc("GET /api/stats", handlers.Stats.GetStats)
	mux.HandleFunc("GET /api/ledger", handlers.Ledger.ListLedger)
	mux.HandleFunc("GET /api/ledger/history", handlers.Ledger.ListHistory)
	mux.HandleFunc("GET /api/arbitrage/recent", handlers.Ledger.ListHistory)
	mux.HandleFunc("GET /api/pools", handlers.Pools.ListPools)
	mux.HandleFunc("GET /api/prices", handlers.Prices.ListPrices)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)

	// Health sits in front of auth.
	outer := http.NewServeMux()
	outer.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	outer.Handle("/", h)

	var root http.Handler = outer
	root = middleware.Logging(logger)(root)
	root = middleware.CORS(cfg.CORSOrigins)(root)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
