// Package orchestrator drives the periodic scan -> decide -> record cycle.
// It owns the in-memory trade ledger, the running statistics, and the backoff
// policy when a tick goes wrong. Ticks never overlap and a bad tick never
// takes the process down.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/corewatch/dexarb/internal/config"
	"github.com/corewatch/dexarb/internal/domain"
)

// ScanRunner produces the opportunities of one tick.
type ScanRunner interface {
	Scan(ctx context.Context) ([]domain.Opportunity, error)
}

// Decider maps one opportunity to its execution result.
type Decider interface {
	Decide(ctx context.Context, opp domain.Opportunity) domain.ExecutionResult
}

// Reconnector re-establishes chain connectivity after a failed tick.
type Reconnector interface {
	Connect(ctx context.Context) error
}

// EventChannel is the signal bus channel carrying opportunity and summary
// events.
const EventChannel = "arb:events"

// Orchestrator runs the scan loop. All mutable state (ledger, stats, latest
// opportunities) is guarded by mu; the loop itself is a single goroutine.
type Orchestrator struct {
	scanner   ScanRunner
	engine    Decider
	reconnect Reconnector // optional
	cfg       config.MonitoringConfig
	logger    *slog.Logger

	// Optional collaborators. Each may be nil; writes to them are
	// best-effort and never fail a tick.
	oppStore    domain.OpportunityStore
	ledgerStore domain.LedgerStore
	bus         domain.SignalBus

	mu         sync.RWMutex
	ledger     []domain.ExecutionResult
	latestOpps []domain.Opportunity
	stats      domain.ScanStats
}

// Options carries the optional collaborators for New.
type Options struct {
	Reconnect   Reconnector
	OppStore    domain.OpportunityStore
	LedgerStore domain.LedgerStore
	Bus         domain.SignalBus
}

// New creates an Orchestrator.
func New(scanner ScanRunner, engine Decider, cfg config.MonitoringConfig, opts Options, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		scanner:     scanner,
		engine:      engine,
		reconnect:   opts.Reconnect,
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "orchestrator")),
		oppStore:    opts.OppStore,
		ledgerStore: opts.LedgerStore,
		bus:         opts.Bus,
		stats:       domain.ScanStats{StartedAt: time.Now().UTC()},
	}
}

// Run executes scan ticks at the configured interval until ctx is cancelled.
// A slow tick delays the next one but never compresses the gap below the
// configured minimum; ticks are not cumulative.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("scan loop started",
		slog.Duration("interval", o.cfg.ScanInterval.Duration),
		slog.Int("summary_every", o.cfg.SummaryEvery))
	defer o.logger.Info("scan loop stopped")

	for {
		start := time.Now()
		err := o.tick(ctx)

		var wait time.Duration
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Error("tick failed", slog.String("error", err.Error()))
			o.tryReconnect(ctx)
			wait = o.cfg.ErrorBackoff.Duration
		} else {
			wait = o.cfg.ScanInterval.Duration - time.Since(start)
			if wait < o.cfg.MinInterval.Duration {
				wait = o.cfg.MinInterval.Duration
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// tick runs one scan pass under the tick deadline. Panics inside the tick are
// converted to errors here, at the tick boundary.
func (o *Orchestrator) tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("orchestrator: tick panic: %v", r)
		}
	}()

	tickCtx, cancel := context.WithTimeout(ctx, o.cfg.TickTimeout.Duration)
	defer cancel()

	opps, scanErr := o.scanner.Scan(tickCtx)
	// A deadline hit mid-scan leaves a partially completed tick. Record what
	// we have; only a non-deadline failure bubbles up.
	if scanErr != nil && tickCtx.Err() == nil {
		o.bumpScanCount()
		return fmt.Errorf("orchestrator: scan: %w", scanErr)
	}

	results := make([]domain.ExecutionResult, 0, len(opps))
	for _, opp := range opps {
		results = append(results, o.engine.Decide(tickCtx, opp))
	}

	o.record(opps, results)
	o.persist(ctx, opps, results)
	o.publish(ctx, opps)

	o.mu.RLock()
	scanCount := o.stats.ScanCount
	o.mu.RUnlock()

	o.logger.Debug("tick complete",
		slog.Int64("scan_count", scanCount),
		slog.Int("opportunities", len(opps)))

	if o.cfg.SummaryEvery > 0 && scanCount%int64(o.cfg.SummaryEvery) == 0 {
		o.emitSummary(ctx)
	}
	return nil
}

// record applies one tick's output to the in-memory state.
func (o *Orchestrator) record(opps []domain.Opportunity, results []domain.ExecutionResult) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stats.ScanCount++
	o.stats.LastScanAt = time.Now().UTC()
	o.stats.OpportunitiesFound += int64(len(opps))
	o.latestOpps = opps

	for _, res := range results {
		o.ledger = append(o.ledger, res)
		switch res.Status {
		case domain.ExecExecuted:
			o.stats.ExecutedCount++
			o.stats.SimulatedProfit += res.Opportunity.ProfitPct / 100
		case domain.ExecSimulated:
			o.stats.SimulatedProfit += res.Opportunity.ProfitPct / 100
		}
	}
}

func (o *Orchestrator) bumpScanCount() {
	o.mu.Lock()
	o.stats.ScanCount++
	o.stats.LastScanAt = time.Now().UTC()
	o.mu.Unlock()
}

// persist writes the tick's output to the durable stores, best-effort.
func (o *Orchestrator) persist(ctx context.Context, opps []domain.Opportunity, results []domain.ExecutionResult) {
	if o.oppStore != nil {
		for _, opp := range opps {
			if err := o.oppStore.Insert(ctx, opp); err != nil {
				o.logger.Warn("opportunity persist failed",
					slog.String("id", opp.ID), slog.String("error", err.Error()))
			}
		}
	}
	if o.ledgerStore != nil {
		for _, res := range results {
			if err := o.ledgerStore.Insert(ctx, res); err != nil {
				o.logger.Warn("ledger persist failed",
					slog.String("id", res.ID), slog.String("error", err.Error()))
			}
		}
	}
}

// publish pushes profitable opportunities onto the signal bus.
func (o *Orchestrator) publish(ctx context.Context, opps []domain.Opportunity) {
	if o.bus == nil {
		return
	}
	for _, opp := range opps {
		if !opp.Profitable {
			continue
		}
		payload, err := json.Marshal(map[string]any{
			"event":       "opportunity_found",
			"opportunity": opp,
		})
		if err != nil {
			continue
		}
		if err := o.bus.Publish(ctx, EventChannel, payload); err != nil {
			o.logger.Debug("bus publish failed", slog.String("error", err.Error()))
		}
	}
}

// emitSummary logs the running statistics and mirrors them onto the bus.
func (o *Orchestrator) emitSummary(ctx context.Context) {
	stats := o.Stats()

	o.logger.Info("scan summary",
		slog.Int64("scan_count", stats.ScanCount),
		slog.Int64("opportunities_found", stats.OpportunitiesFound),
		slog.Int64("executed", stats.ExecutedCount),
		slog.Float64("simulated_profit", stats.SimulatedProfit),
		slog.Duration("uptime", time.Since(stats.StartedAt).Round(time.Second)))

	if o.bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"event": "scan_summary",
		"stats": stats,
	})
	if err != nil {
		return
	}
	if err := o.bus.Publish(ctx, EventChannel, payload); err != nil {
		o.logger.Debug("bus publish failed", slog.String("error", err.Error()))
	}
}

// tryReconnect re-establishes chain connectivity after a failed tick. Failure
// is non-fatal; the next tick retries endpoint selection again.
func (o *Orchestrator) tryReconnect(ctx context.Context) {
	if o.reconnect == nil {
		return
	}
	if err := o.reconnect.Connect(ctx); err != nil {
		o.logger.Warn("reconnect failed, will retry next tick", slog.String("error", err.Error()))
	}
}

// LatestOpportunities returns the most recent tick's opportunities in
// discovery order.
func (o *Orchestrator) LatestOpportunities() []domain.Opportunity {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]domain.Opportunity, len(o.latestOpps))
	copy(out, o.latestOpps)
	return out
}

// Stats returns a snapshot of the running statistics.
func (o *Orchestrator) Stats() domain.ScanStats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.stats
}

// Ledger returns up to limit most recent execution results, newest first.
// limit <= 0 returns the whole ledger.
func (o *Orchestrator) Ledger(limit int) []domain.ExecutionResult {
	o.mu.RLock()
	defer o.mu.RUnlock()

	n := len(o.ledger)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.ExecutionResult, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, o.ledger[i])
	}
	return out
}
