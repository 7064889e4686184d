package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corewatch/dexarb/internal/config"
	"github.com/corewatch/dexarb/internal/domain"
)

var (
	tokA = domain.TokenRef{Symbol: "WCORE", Address: common.HexToAddress("0x01")}
	tokB = domain.TokenRef{Symbol: "ICE", Address: common.HexToAddress("0x02")}
	tokC = domain.TokenRef{Symbol: "SCORE", Address: common.HexToAddress("0x03")}
)

// fakeQuoter quotes from a fixed rate table keyed "IN->OUT". Missing entries
// and entries in errs fail the quote.
type fakeQuoter struct {
	name  string
	rates map[string]float64
	errs  map[string]error
}

func (f *fakeQuoter) Name() string { return f.name }

func (f *fakeQuoter) Quote(_ context.Context, in, out domain.TokenRef, amountIn float64) (domain.Quote, error) {
	key := in.Symbol + "->" + out.Symbol
	if err, ok := f.errs[key]; ok {
		return domain.Quote{}, err
	}
	rate, ok := f.rates[key]
	if !ok {
		return domain.Quote{}, fmt.Errorf("fake %s: %s: %w", f.name, key, domain.ErrNoLiquidity)
	}
	return domain.Quote{
		Venue:     f.name,
		TokenIn:   in,
		TokenOut:  out,
		AmountIn:  amountIn,
		AmountOut: amountIn * rate,
		FetchedAt: time.Now(),
	}, nil
}

func testCfg() config.ArbitrageConfig {
	return config.ArbitrageConfig{
		MinProfitThreshold: 0.003,
		ReportThreshold:    0.001,
		TradeSize:          1.0,
		MaxFanout:          4,
	}
}

// flatRates quotes every direction at 1.0 so no cycle shows profit.
func flatRates() map[string]float64 {
	rates := make(map[string]float64)
	for _, a := range []string{"WCORE", "ICE", "SCORE"} {
		for _, b := range []string{"WCORE", "ICE", "SCORE"} {
			if a != b {
				rates[a+"->"+b] = 1.0
			}
		}
	}
	return rates
}

func newTestScanner(cfg config.ArbitrageConfig, quoters ...domain.Quoter) *Scanner {
	return New(quoters, []domain.TokenRef{tokA, tokB, tokC}, cfg, nil, slog.Default())
}

func TestTriangularDetectsProfitableCycle(t *testing.T) {
	rates := flatRates()
	// WCORE -> ICE -> SCORE -> WCORE multiplies to 1.2.
	rates["WCORE->ICE"] = 2.0
	rates["ICE->SCORE"] = 0.3
	rates["SCORE->WCORE"] = 2.0

	s := newTestScanner(testCfg(), &fakeQuoter{name: "ice", rates: rates})
	opps, err := s.Triangular(context.Background())
	require.NoError(t, err)

	var found *domain.Opportunity
	for i := range opps {
		if opps[i].Path[0] == "WCORE" && opps[i].Path[1] == "ICE" && opps[i].Path[2] == "SCORE" {
			found = &opps[i]
		}
	}
	require.NotNil(t, found, "expected the WCORE->ICE->SCORE cycle to surface")

	assert.InDelta(t, 20.0, found.ProfitPct, 1e-9)
	assert.True(t, found.Profitable)
	assert.Equal(t, domain.OpportunityTriangular, found.Kind)
	assert.NotEmpty(t, found.ID)
	assert.Equal(t, []string{"WCORE", "ICE", "SCORE", "WCORE"}, found.Path)

	// Legs are chained: each leg's output feeds the next leg's input.
	require.Len(t, found.Legs, 3)
	assert.Equal(t, found.Legs[0].AmountOut, found.Legs[1].AmountIn)
	assert.Equal(t, found.Legs[1].AmountOut, found.Legs[2].AmountIn)
	assert.Equal(t, 1.0, found.Legs[0].AmountIn)
}

func TestTriangularDropsCycleOnFailedLeg(t *testing.T) {
	rates := flatRates()
	rates["WCORE->ICE"] = 2.0
	rates["ICE->SCORE"] = 0.3
	rates["SCORE->WCORE"] = 2.0

	q := &fakeQuoter{
		name:  "ice",
		rates: rates,
		errs:  map[string]error{"ICE->SCORE": domain.ErrRPCFailure},
	}
	s := newTestScanner(testCfg(), q)
	opps, err := s.Triangular(context.Background())
	require.NoError(t, err, "a failed leg must not abort the sweep")

	for _, o := range opps {
		assert.NotEqual(t, []string{"WCORE", "ICE", "SCORE", "WCORE"}, o.Path)
	}
}

func TestTriangularThresholdBoundaries(t *testing.T) {
	// Binary-exact thresholds so boundary comparisons are not at the mercy
	// of rounding: report 12.5%, profit 25%.
	cfg := testCfg()
	cfg.ReportThreshold = 0.125
	cfg.MinProfitThreshold = 0.25

	// Exactly at the profit floor: surfaced but not profitable.
	rates := flatRates()
	rates["WCORE->ICE"] = 1.25
	s := newTestScanner(cfg, &fakeQuoter{name: "ice", rates: rates})
	opps, err := s.Triangular(context.Background())
	require.NoError(t, err)

	var boundary *domain.Opportunity
	for i := range opps {
		if opps[i].Legs[0].TokenIn.Symbol == "WCORE" && opps[i].Legs[0].TokenOut.Symbol == "ICE" {
			boundary = &opps[i]
			break
		}
	}
	require.NotNil(t, boundary)
	assert.Equal(t, 25.0, boundary.ProfitPct)
	assert.False(t, boundary.Profitable, "profit exactly at the floor is not profitable")

	// Exactly at the report floor: not surfaced at all.
	rates = flatRates()
	rates["WCORE->ICE"] = 1.125
	s = newTestScanner(cfg, &fakeQuoter{name: "ice", rates: rates})
	opps, err = s.Triangular(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestCrossVenueDetectsSpread(t *testing.T) {
	// venue-x quotes WCORE->ICE at 1.0, venue-y at 1.05: buy on venue-x, the
	// venue whose quoted amount-out is lower, and sell on venue-y.
	rich := flatRates()
	rich["WCORE->ICE"] = 1.05
	vX := &fakeQuoter{name: "venue-x", rates: flatRates()}
	vY := &fakeQuoter{name: "venue-y", rates: rich}

	s := newTestScanner(testCfg(), vX, vY)
	opps, err := s.CrossVenue(context.Background())
	require.NoError(t, err)

	var found *domain.Opportunity
	for i := range opps {
		if opps[i].Path[0] == "WCORE" && opps[i].Path[1] == "ICE" {
			found = &opps[i]
		}
	}
	require.NotNil(t, found)

	assert.Equal(t, domain.OpportunityCrossVenue, found.Kind)
	assert.InDelta(t, 5.0, found.ProfitPct, 1e-9)
	assert.True(t, found.Profitable)
	assert.Equal(t, "venue-x", found.BuyVenue, "buy where the quoted amount-out is lower")
	assert.Equal(t, "venue-y", found.SellVenue)
	require.Len(t, found.Legs, 2)
	assert.Equal(t, "venue-x", found.Legs[0].Venue, "buy leg comes first")
	assert.Equal(t, []string{"venue-x", "venue-y"}, found.Venues)
}

func TestCrossVenueExcludesFailedVenue(t *testing.T) {
	vX := &fakeQuoter{name: "venue-x", rates: flatRates()}
	vY := &fakeQuoter{name: "venue-y", errs: map[string]error{}, rates: map[string]float64{}}

	s := newTestScanner(testCfg(), vX, vY)
	opps, err := s.CrossVenue(context.Background())
	require.NoError(t, err)
	// venue-y never quotes, so no venue pair exists to compare. A failed
	// venue must not enter the comparison as a zero price.
	assert.Empty(t, opps)
}

func TestCrossVenueNeedsTwoVenues(t *testing.T) {
	s := newTestScanner(testCfg(), &fakeQuoter{name: "only", rates: flatRates()})
	opps, err := s.CrossVenue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestUnverifiedTokensExcluded(t *testing.T) {
	ghost := domain.TokenRef{Symbol: "GHOST"} // zero address
	s := New([]domain.Quoter{&fakeQuoter{name: "ice", rates: flatRates()}},
		[]domain.TokenRef{tokA, tokB, ghost}, testCfg(), nil, slog.Default())

	assert.Len(t, s.Tokens(), 2)
	for _, tok := range s.Tokens() {
		assert.NotEqual(t, "GHOST", tok.Symbol)
	}
}

func TestScanCombinesSweeps(t *testing.T) {
	rates := flatRates()
	rates["WCORE->ICE"] = 2.0
	rates["ICE->SCORE"] = 0.3
	rates["SCORE->WCORE"] = 2.0
	vX := &fakeQuoter{name: "venue-x", rates: rates}
	vY := &fakeQuoter{name: "venue-y", rates: flatRates()}

	s := newTestScanner(testCfg(), vX, vY)
	opps, err := s.Scan(context.Background())
	require.NoError(t, err)

	kinds := map[domain.OpportunityKind]int{}
	for _, o := range opps {
		kinds[o.Kind]++
	}
	assert.Greater(t, kinds[domain.OpportunityTriangular], 0)
	assert.Greater(t, kinds[domain.OpportunityCrossVenue], 0)
}
