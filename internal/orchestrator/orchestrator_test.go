package orchestrator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corewatch/dexarb/internal/config"
	"github.com/corewatch/dexarb/internal/domain"
)

type scriptedScanner struct {
	fn    func(ctx context.Context) ([]domain.Opportunity, error)
	calls atomic.Int64
}

func (s *scriptedScanner) Scan(ctx context.Context) ([]domain.Opportunity, error) {
	s.calls.Add(1)
	if s.fn == nil {
		return nil, nil
	}
	return s.fn(ctx)
}

type scriptedEngine struct {
	status domain.ExecStatus
}

func (e *scriptedEngine) Decide(_ context.Context, opp domain.Opportunity) domain.ExecutionResult {
	return domain.ExecutionResult{
		ID:          "res-" + opp.ID,
		Status:      e.status,
		Opportunity: opp,
		Timestamp:   time.Now(),
	}
}

func fastCfg() config.MonitoringConfig {
	return config.MonitoringConfig{
		ScanInterval: config.DurationOf(5 * time.Millisecond),
		TickTimeout:  config.DurationOf(50 * time.Millisecond),
		SummaryEvery: 2,
		ErrorBackoff: config.DurationOf(5 * time.Millisecond),
		MinInterval:  config.DurationOf(time.Millisecond),
	}
}

func opp(id string, pct float64) domain.Opportunity {
	return domain.Opportunity{
		ID:         id,
		Kind:       domain.OpportunityTriangular,
		ProfitPct:  pct,
		Profitable: true,
		DetectedAt: time.Now(),
	}
}

func TestRunTicksAndStops(t *testing.T) {
	sc := &scriptedScanner{}
	o := New(sc, &scriptedEngine{status: domain.ExecSkipped}, fastCfg(), Options{}, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	err := o.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	stats := o.Stats()
	assert.GreaterOrEqual(t, stats.ScanCount, int64(2))
	assert.Equal(t, stats.ScanCount, sc.calls.Load())
	assert.False(t, stats.LastScanAt.IsZero())
}

func TestTimedOutTickStillCounts(t *testing.T) {
	// Every quote call hangs until the tick deadline; the scan returns
	// empty with the deadline error absorbed, as the scanner does when all
	// legs fail.
	sc := &scriptedScanner{fn: func(ctx context.Context) ([]domain.Opportunity, error) {
		<-ctx.Done()
		return nil, nil
	}}
	o := New(sc, &scriptedEngine{status: domain.ExecSkipped}, fastCfg(), Options{}, slog.Default())

	require.NoError(t, o.tick(context.Background()))

	stats := o.Stats()
	assert.Equal(t, int64(1), stats.ScanCount)
	assert.Zero(t, stats.OpportunitiesFound)
	assert.Empty(t, o.LatestOpportunities())
}

func TestPanicCaughtAtTickBoundary(t *testing.T) {
	sc := &scriptedScanner{fn: func(context.Context) ([]domain.Opportunity, error) {
		panic("boom")
	}}
	o := New(sc, &scriptedEngine{status: domain.ExecSkipped}, fastCfg(), Options{}, slog.Default())

	err := o.tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick panic")

	// The loop survives a panicking scanner.
	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, o.Run(ctx), context.DeadlineExceeded)
	assert.GreaterOrEqual(t, sc.calls.Load(), int64(2))
}

func TestStatsAccumulation(t *testing.T) {
	opps := []domain.Opportunity{opp("a", 5.0), opp("b", 3.0)}
	sc := &scriptedScanner{fn: func(context.Context) ([]domain.Opportunity, error) {
		return opps, nil
	}}
	o := New(sc, &scriptedEngine{status: domain.ExecSimulated}, fastCfg(), Options{}, slog.Default())

	require.NoError(t, o.tick(context.Background()))

	stats := o.Stats()
	assert.Equal(t, int64(1), stats.ScanCount)
	assert.Equal(t, int64(2), stats.OpportunitiesFound)
	assert.Zero(t, stats.ExecutedCount, "simulated results do not count as executed")
	assert.InDelta(t, 0.08, stats.SimulatedProfit, 1e-12)

	latest := o.LatestOpportunities()
	require.Len(t, latest, 2)
	assert.Equal(t, "a", latest[0].ID, "discovery order preserved")
}

func TestExecutedCountsAndLedger(t *testing.T) {
	sc := &scriptedScanner{fn: func(context.Context) ([]domain.Opportunity, error) {
		return []domain.Opportunity{opp("a", 2.0)}, nil
	}}
	o := New(sc, &scriptedEngine{status: domain.ExecExecuted}, fastCfg(), Options{}, slog.Default())

	require.NoError(t, o.tick(context.Background()))
	require.NoError(t, o.tick(context.Background()))

	stats := o.Stats()
	assert.Equal(t, int64(2), stats.ExecutedCount)
	assert.InDelta(t, 0.04, stats.SimulatedProfit, 1e-12)

	ledger := o.Ledger(0)
	assert.Len(t, ledger, 2)
	assert.Len(t, o.Ledger(1), 1)
}

func TestLatestOpportunitiesReplacedEachTick(t *testing.T) {
	var tick atomic.Int64
	sc := &scriptedScanner{fn: func(context.Context) ([]domain.Opportunity, error) {
		if tick.Add(1) == 1 {
			return []domain.Opportunity{opp("first", 1.0)}, nil
		}
		return nil, nil
	}}
	o := New(sc, &scriptedEngine{status: domain.ExecSkipped}, fastCfg(), Options{}, slog.Default())

	require.NoError(t, o.tick(context.Background()))
	assert.Len(t, o.LatestOpportunities(), 1)

	require.NoError(t, o.tick(context.Background()))
	assert.Empty(t, o.LatestOpportunities(), "an empty tick clears the latest set")
}
