package dex

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corewatch/dexarb/internal/config"
	"github.com/corewatch/dexarb/internal/domain"
)

var (
	routerAddr  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	factoryAddr = common.HexToAddress("0x1000000000000000000000000000000000000002")
	pairAddr    = common.HexToAddress("0x1000000000000000000000000000000000000003")

	wcore = domain.TokenRef{Symbol: "WCORE", Address: common.HexToAddress("0x2000000000000000000000000000000000000001")}
	ice   = domain.TokenRef{Symbol: "ICE", Address: common.HexToAddress("0x2000000000000000000000000000000000000002")}
)

// fakeCaller answers contract calls from a (contract, selector) table and
// counts calls per selector.
type fakeCaller struct {
	responses map[string][]byte
	errs      map[string]error
	calls     map[string]int
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{
		responses: make(map[string][]byte),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
	}
}

func callKey(to common.Address, data []byte) string {
	return fmt.Sprintf("%s:%x", to.Hex(), data[:4])
}

func (f *fakeCaller) CallContract(_ context.Context, to common.Address, data []byte) ([]byte, error) {
	key := callKey(to, data)
	f.calls[key]++
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	resp, ok := f.responses[key]
	if !ok {
		return nil, fmt.Errorf("fake: unexpected call %s", key)
	}
	return resp, nil
}

func selector(a abi.ABI, method string, args ...interface{}) []byte {
	data, err := a.Pack(method, args...)
	if err != nil {
		panic(err)
	}
	return data
}

func (f *fakeCaller) stubGetPair(pair common.Address) {
	data := selector(factoryABI, "getPair", wcore.Address, ice.Address)
	out, err := factoryABI.Methods["getPair"].Outputs.Pack(pair)
	if err != nil {
		panic(err)
	}
	f.responses[callKey(factoryAddr, data)] = out
}

func (f *fakeCaller) stubDecimals(token common.Address, d uint8) {
	data := selector(erc20ABI, "decimals")
	out, err := erc20ABI.Methods["decimals"].Outputs.Pack(d)
	if err != nil {
		panic(err)
	}
	f.responses[callKey(token, data)] = out
}

func (f *fakeCaller) stubAmountsOut(amounts []*big.Int) {
	// getAmountsOut is keyed by selector only, so any input amount matches.
	data := selector(routerABI, "getAmountsOut", big.NewInt(1), []common.Address{wcore.Address, ice.Address})
	out, err := routerABI.Methods["getAmountsOut"].Outputs.Pack(amounts)
	if err != nil {
		panic(err)
	}
	f.responses[callKey(routerAddr, data)] = out
}

func newTestVenue(caller *fakeCaller) *Venue {
	return NewVenue(config.VenueConfig{
		Name:    "icecreamswap",
		Router:  routerAddr.Hex(),
		Factory: factoryAddr.Hex(),
		Enabled: true,
	}, caller, slog.Default())
}

func TestQuoteHappyPath(t *testing.T) {
	caller := newFakeCaller()
	caller.stubGetPair(pairAddr)
	caller.stubDecimals(wcore.Address, 18)
	caller.stubDecimals(ice.Address, 6)
	// 1.0 WCORE in, 2.5 ICE out at 6 decimals.
	caller.stubAmountsOut([]*big.Int{
		new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
		big.NewInt(2_500_000),
	})

	v := newTestVenue(caller)
	q, err := v.Quote(context.Background(), wcore, ice, 1.0)
	require.NoError(t, err)

	assert.Equal(t, "icecreamswap", q.Venue)
	assert.Equal(t, 1.0, q.AmountIn)
	assert.InDelta(t, 2.5, q.AmountOut, 1e-9)
	assert.False(t, q.FetchedAt.IsZero())
}

func TestQuoteNoPool(t *testing.T) {
	caller := newFakeCaller()
	caller.stubGetPair(domain.ZeroAddress)

	v := newTestVenue(caller)
	_, err := v.Quote(context.Background(), wcore, ice, 1.0)
	require.ErrorIs(t, err, domain.ErrNoLiquidity)
}

func TestQuoteRPCFailurePropagates(t *testing.T) {
	caller := newFakeCaller()
	data := selector(factoryABI, "getPair", wcore.Address, ice.Address)
	caller.errs[callKey(factoryAddr, data)] = fmt.Errorf("chain: call: %w", domain.ErrRPCFailure)

	v := newTestVenue(caller)
	_, err := v.Quote(context.Background(), wcore, ice, 1.0)
	require.ErrorIs(t, err, domain.ErrRPCFailure)
}

func TestQuoteRouterRevertIsNoLiquidity(t *testing.T) {
	caller := newFakeCaller()
	caller.stubGetPair(pairAddr)
	caller.stubDecimals(wcore.Address, 18)
	caller.stubDecimals(ice.Address, 18)
	data := selector(routerABI, "getAmountsOut", big.NewInt(1), []common.Address{wcore.Address, ice.Address})
	caller.errs[callKey(routerAddr, data)] = fmt.Errorf("chain: call %s: execution reverted: %w",
		routerAddr.Hex(), domain.ErrExecutionReverted)

	v := newTestVenue(caller)
	_, err := v.Quote(context.Background(), wcore, ice, 1.0)
	require.ErrorIs(t, err, domain.ErrNoLiquidity)
}

func TestQuoteRejectsUnverifiedToken(t *testing.T) {
	v := newTestVenue(newFakeCaller())
	unverified := domain.TokenRef{Symbol: "GHOST"} // zero address

	_, err := v.Quote(context.Background(), wcore, unverified, 1.0)
	require.ErrorIs(t, err, domain.ErrNoLiquidity)
}

func TestDecimalsCached(t *testing.T) {
	caller := newFakeCaller()
	caller.stubDecimals(wcore.Address, 9)

	v := newTestVenue(caller)
	ctx := context.Background()
	assert.Equal(t, uint8(9), v.Decimals(ctx, wcore.Address))
	assert.Equal(t, uint8(9), v.Decimals(ctx, wcore.Address))

	key := callKey(wcore.Address, selector(erc20ABI, "decimals"))
	assert.Equal(t, 1, caller.calls[key], "second read should hit the cache")
}

func TestDecimalsFallbackOnFailure(t *testing.T) {
	caller := newFakeCaller()
	key := callKey(wcore.Address, selector(erc20ABI, "decimals"))
	caller.errs[key] = fmt.Errorf("boom")

	v := newTestVenue(caller)
	assert.Equal(t, uint8(18), v.Decimals(context.Background(), wcore.Address))

	// Failure is not cached; once the read works the real value wins.
	delete(caller.errs, key)
	caller.stubDecimals(wcore.Address, 6)
	assert.Equal(t, uint8(6), v.Decimals(context.Background(), wcore.Address))
}

func TestPairCacheSkipsZero(t *testing.T) {
	caller := newFakeCaller()
	caller.stubGetPair(domain.ZeroAddress)

	v := newTestVenue(caller)
	ctx := context.Background()
	p, err := v.ResolvePair(ctx, wcore.Address, ice.Address)
	require.NoError(t, err)
	assert.Equal(t, domain.ZeroAddress, p)

	// Pool appears later; a fresh lookup must see it.
	caller.stubGetPair(pairAddr)
	p, err = v.ResolvePair(ctx, wcore.Address, ice.Address)
	require.NoError(t, err)
	assert.Equal(t, pairAddr, p)
}

func TestPriceImpact(t *testing.T) {
	// Tiny trade against a deep pool barely moves the price.
	small := PriceImpact(1_000_000, 1_000_000, 1)
	// A trade that is 10% of reserves moves it a lot.
	large := PriceImpact(1_000_000, 1_000_000, 100_000)

	assert.Greater(t, large, small)
	assert.Greater(t, small, 0.0)

	assert.Zero(t, PriceImpact(0, 1, 1))
	assert.Zero(t, PriceImpact(1, 1, 0))
}

func TestBaseUnitConversionRoundTrip(t *testing.T) {
	raw := ToBaseUnits(1.5, 18)
	assert.Equal(t, "1500000000000000000", raw.String())
	assert.InDelta(t, 1.5, FromBaseUnits(raw, 18), 1e-12)
}
