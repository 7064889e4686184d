package app

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/corewatch/dexarb/internal/notify"
	"github.com/corewatch/dexarb/internal/orchestrator"
	"github.com/corewatch/dexarb/internal/server"
	"github.com/corewatch/dexarb/internal/server/handler"
	"github.com/corewatch/dexarb/internal/server/ws"
)

// ScanMode runs the scan loop in read-only mode: opportunities are detected,
// decided, and recorded, but nothing is submitted on-chain.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")
	return a.runPipeline(ctx, deps)
}

// TradeMode runs the scan loop with execution enabled. Wire has already
// verified the signing credential; a missing key fails startup, not a tick.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")
	return a.runPipeline(ctx, deps)
}

// MonitorMode serves the HTTP and WebSocket API over the signal bus and
// history stores without running a scan loop of its own. It observes a scan
// process running elsewhere against the same Redis and Postgres.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startAPI(ctx, g, deps)
	a.startRelay(ctx, g, deps)

	return ignoreCancel(g.Wait())
}

// runPipeline starts the orchestrator plus every enabled supporting worker:
// HTTP/WS API, ledger archival, and the notification relay.
func (a *App) runPipeline(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Orchestrator.Run(ctx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}

	a.startAPI(ctx, g, deps)
	a.startRelay(ctx, g, deps)

	return ignoreCancel(g.Wait())
}

// startAPI registers the HTTP server and WebSocket hub goroutines when the
// server is enabled. The hub needs the signal bus; without Redis only the
// REST surface is served.
func (a *App) startAPI(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		return
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)
		g.Go(func() error {
			return ignoreCancel(hub.Run(ctx))
		})
	}

	poolSources := make([]handler.PoolSource, len(deps.Venues))
	venueNames := make([]string, len(deps.Venues))
	for i, v := range deps.Venues {
		poolSources[i] = v
		venueNames[i] = v.Name()
	}

	view := deps.Orchestrator

	srv := server.New(a.cfg.Server, server.Handlers{
		Health:        handler.NewHealthHandler(deps.Chain, a.logger),
		Opportunities: handler.NewOpportunityHandler(view, deps.OppStore, a.logger),
		Stats:         handler.NewStatsHandler(view, a.logger),
		Ledger:        handler.NewLedgerHandler(view, deps.LedgerStore, a.logger),
		Pools:         handler.NewPoolHandler(poolSources, deps.Tokens, a.logger),
		Prices:        handler.NewPriceHandler(deps.PriceCache, deps.Tokens, venueNames, a.logger),
	}, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startRelay forwards signal bus events to the configured notification
// channels. Without Redis there is nothing to relay.
func (a *App) startRelay(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.SignalBus == nil || deps.Notifier == nil {
		return
	}

	relay := notify.NewRelay(deps.Notifier, deps.SignalBus, orchestrator.EventChannel, a.logger)
	g.Go(func() error {
		return ignoreCancel(relay.Run(ctx))
	})
}

// ignoreCancel maps context cancellation to a clean exit so a normal shutdown
// does not surface as an error.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
