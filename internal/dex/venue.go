// Package dex adapts UniswapV2-style venues (router + factory contracts) to
// the quoting interface the scanner consumes. All reads go through the chain
// caller; amounts cross the ABI boundary as integers scaled by each token's
// decimals and come back as float64 for scoring.
package dex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/corewatch/dexarb/internal/chain"
	"github.com/corewatch/dexarb/internal/config"
	"github.com/corewatch/dexarb/internal/domain"
)

// Venue is a quote adapter for one UniswapV2-style DEX.
type Venue struct {
	name    string
	router  common.Address
	factory common.Address
	caller  chain.Caller
	logger  *slog.Logger

	// decimalsCache is read-mostly. Concurrent fills of the same token are
	// harmless since decimals is an immutable on-chain value.
	decMu         sync.RWMutex
	decimalsCache map[common.Address]uint8

	// pairCache memoizes factory.getPair lookups. Only resolved (non-zero)
	// pairs are cached; missing pairs are re-queried so a pool created later
	// becomes visible.
	pairMu    sync.RWMutex
	pairCache map[[2]common.Address]common.Address
}

var _ domain.Quoter = (*Venue)(nil)

// NewVenue builds a Venue from its configuration entry.
func NewVenue(cfg config.VenueConfig, caller chain.Caller, logger *slog.Logger) *Venue {
	return &Venue{
		name:          cfg.Name,
		router:        common.HexToAddress(cfg.Router),
		factory:       common.HexToAddress(cfg.Factory),
		caller:        caller,
		logger:        logger.With(slog.String("component", "dex"), slog.String("venue", cfg.Name)),
		decimalsCache: make(map[common.Address]uint8),
		pairCache:     make(map[[2]common.Address]common.Address),
	}
}

// Name returns the venue identifier used in opportunity records.
func (v *Venue) Name() string { return v.name }

// Router returns the venue's router contract address.
func (v *Venue) Router() common.Address { return v.router }

// Quote asks the router for the output of swapping amountIn of tokenIn into
// tokenOut. It returns domain.ErrNoLiquidity when the pair does not exist or
// produces no output, and domain.ErrRPCFailure on transport problems.
func (v *Venue) Quote(ctx context.Context, tokenIn, tokenOut domain.TokenRef, amountIn float64) (domain.Quote, error) {
	if !tokenIn.Verified() || !tokenOut.Verified() {
		return domain.Quote{}, fmt.Errorf("dex: quote %s/%s: unverified token: %w",
			tokenIn.Symbol, tokenOut.Symbol, domain.ErrNoLiquidity)
	}

	pair, err := v.ResolvePair(ctx, tokenIn.Address, tokenOut.Address)
	if err != nil {
		return domain.Quote{}, err
	}
	if pair == domain.ZeroAddress {
		return domain.Quote{}, fmt.Errorf("dex: quote %s/%s on %s: no pool: %w",
			tokenIn.Symbol, tokenOut.Symbol, v.name, domain.ErrNoLiquidity)
	}

	decIn := v.Decimals(ctx, tokenIn.Address)
	decOut := v.Decimals(ctx, tokenOut.Address)

	rawIn := ToBaseUnits(amountIn, decIn)
	if rawIn.Sign() <= 0 {
		return domain.Quote{}, fmt.Errorf("dex: quote %s/%s: amount %g rounds to zero: %w",
			tokenIn.Symbol, tokenOut.Symbol, amountIn, domain.ErrNoLiquidity)
	}

	data, err := routerABI.Pack("getAmountsOut", rawIn, []common.Address{tokenIn.Address, tokenOut.Address})
	if err != nil {
		return domain.Quote{}, fmt.Errorf("dex: packing getAmountsOut: %w", err)
	}

	out, err := v.caller.CallContract(ctx, v.router, data)
	if err != nil {
		if errors.Is(err, domain.ErrRPCFailure) {
			return domain.Quote{}, err
		}
		// Router reverts when the pair has no reserves.
		return domain.Quote{}, fmt.Errorf("dex: quote %s/%s on %s: %v: %w",
			tokenIn.Symbol, tokenOut.Symbol, v.name, err, domain.ErrNoLiquidity)
	}

	amounts, err := unpackAmounts(out)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("dex: quote %s/%s: %w", tokenIn.Symbol, tokenOut.Symbol, err)
	}
	rawOut := amounts[len(amounts)-1]
	if rawOut.Sign() == 0 {
		return domain.Quote{}, fmt.Errorf("dex: quote %s/%s on %s: zero output: %w",
			tokenIn.Symbol, tokenOut.Symbol, v.name, domain.ErrNoLiquidity)
	}

	return domain.Quote{
		Venue:     v.name,
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AmountIn:  amountIn,
		AmountOut: FromBaseUnits(rawOut, decOut),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// ResolvePair returns the pool address for the token pair, or the zero
// address when the factory has no pool. Resolved pairs are cached.
func (v *Venue) ResolvePair(ctx context.Context, a, b common.Address) (common.Address, error) {
	key := pairKey(a, b)

	v.pairMu.RLock()
	cached, ok := v.pairCache[key]
	v.pairMu.RUnlock()
	if ok {
		return cached, nil
	}

	data, err := factoryABI.Pack("getPair", a, b)
	if err != nil {
		return domain.ZeroAddress, fmt.Errorf("dex: packing getPair: %w", err)
	}
	out, err := v.caller.CallContract(ctx, v.factory, data)
	if err != nil {
		return domain.ZeroAddress, err
	}

	vals, err := factoryABI.Unpack("getPair", out)
	if err != nil {
		return domain.ZeroAddress, fmt.Errorf("dex: unpacking getPair: %w", err)
	}
	pair := vals[0].(common.Address)

	if pair != domain.ZeroAddress {
		v.pairMu.Lock()
		v.pairCache[key] = pair
		v.pairMu.Unlock()
	}
	return pair, nil
}

// Decimals returns the token's decimals, consulting a cache first. On read
// failure it logs a warning and falls back to 18 without caching, so a later
// call can still pick up the real value.
func (v *Venue) Decimals(ctx context.Context, token common.Address) uint8 {
	v.decMu.RLock()
	d, ok := v.decimalsCache[token]
	v.decMu.RUnlock()
	if ok {
		return d
	}

	data, err := erc20ABI.Pack("decimals")
	if err != nil {
		v.logger.Warn("packing decimals call failed", slog.String("error", err.Error()))
		return 18
	}
	out, err := v.caller.CallContract(ctx, token, data)
	if err != nil {
		v.logger.Warn("decimals read failed, assuming 18",
			slog.String("token", token.Hex()),
			slog.String("error", err.Error()))
		return 18
	}
	vals, err := erc20ABI.Unpack("decimals", out)
	if err != nil {
		v.logger.Warn("decimals decode failed, assuming 18",
			slog.String("token", token.Hex()),
			slog.String("error", err.Error()))
		return 18
	}
	d = vals[0].(uint8)

	v.decMu.Lock()
	v.decimalsCache[token] = d
	v.decMu.Unlock()
	return d
}

// Reserves reads the pool's current reserves, returned in token0/token1 order
// together with the pool's token0 address so callers can orient them.
func (v *Venue) Reserves(ctx context.Context, pair common.Address) (r0, r1 *big.Int, token0 common.Address, err error) {
	data, err := pairABI.Pack("getReserves")
	if err != nil {
		return nil, nil, domain.ZeroAddress, fmt.Errorf("dex: packing getReserves: %w", err)
	}
	out, err := v.caller.CallContract(ctx, pair, data)
	if err != nil {
		return nil, nil, domain.ZeroAddress, err
	}
	vals, err := pairABI.Unpack("getReserves", out)
	if err != nil {
		return nil, nil, domain.ZeroAddress, fmt.Errorf("dex: unpacking getReserves: %w", err)
	}
	r0 = vals[0].(*big.Int)
	r1 = vals[1].(*big.Int)

	data, err = pairABI.Pack("token0")
	if err != nil {
		return nil, nil, domain.ZeroAddress, fmt.Errorf("dex: packing token0: %w", err)
	}
	out, err = v.caller.CallContract(ctx, pair, data)
	if err != nil {
		return nil, nil, domain.ZeroAddress, err
	}
	vals, err = pairABI.Unpack("token0", out)
	if err != nil {
		return nil, nil, domain.ZeroAddress, fmt.Errorf("dex: unpacking token0: %w", err)
	}
	return r0, r1, vals[0].(common.Address), nil
}

// Pools enumerates every existing pool among the given tokens and returns a
// reserve snapshot for each. Pairs with no pool are skipped; read failures on
// a single pool skip that pool rather than failing the sweep.
func (v *Venue) Pools(ctx context.Context, tokens []domain.TokenRef) ([]domain.PoolInfo, error) {
	var pools []domain.PoolInfo
	for i := 0; i < len(tokens); i++ {
		for j := i + 1; j < len(tokens); j++ {
			a, b := tokens[i], tokens[j]
			if !a.Verified() || !b.Verified() {
				continue
			}
			pair, err := v.ResolvePair(ctx, a.Address, b.Address)
			if err != nil {
				return nil, err
			}
			if pair == domain.ZeroAddress {
				continue
			}
			r0, r1, token0, err := v.Reserves(ctx, pair)
			if err != nil {
				v.logger.Warn("reserve read failed, skipping pool",
					slog.String("pair", pair.Hex()),
					slog.String("error", err.Error()))
				continue
			}
			// Orient reserves to the (a, b) ordering.
			t0, t1 := a, b
			if token0 != a.Address {
				t0, t1 = b, a
			}
			pools = append(pools, domain.PoolInfo{
				Venue:    v.name,
				Pair:     t0.Symbol + "/" + t1.Symbol,
				Token0:   t0.Symbol,
				Token1:   t1.Symbol,
				Address:  pair.Hex(),
				Reserve0: FromBaseUnits(r0, v.Decimals(ctx, t0.Address)),
				Reserve1: FromBaseUnits(r1, v.Decimals(ctx, t1.Address)),
			})
		}
	}
	return pools, nil
}

// PriceImpact estimates the relative price impact of swapping amountIn
// against a constant-product pool with the given reserves. Diagnostic only:
// quotes from the router already embed slippage for the quoted size.
func PriceImpact(reserveIn, reserveOut, amountIn float64) float64 {
	if reserveIn <= 0 || reserveOut <= 0 || amountIn <= 0 {
		return 0
	}
	spot := reserveOut / reserveIn
	amountInWithFee := amountIn * 0.997
	out := (amountInWithFee * reserveOut) / (reserveIn + amountInWithFee)
	effective := out / amountIn
	return (spot - effective) / spot
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func pairKey(a, b common.Address) [2]common.Address {
	if b.Cmp(a) < 0 {
		a, b = b, a
	}
	return [2]common.Address{a, b}
}

// ToBaseUnits converts a whole-token amount to integer base units.
func ToBaseUnits(amount float64, decimals uint8) *big.Int {
	f := new(big.Float).SetFloat64(amount)
	scale := new(big.Float).SetInt(pow10(decimals))
	f.Mul(f, scale)
	out, _ := f.Int(nil)
	return out
}

// FromBaseUnits converts integer base units back to a whole-token amount.
func FromBaseUnits(raw *big.Int, decimals uint8) float64 {
	f := new(big.Float).SetInt(raw)
	scale := new(big.Float).SetInt(pow10(decimals))
	f.Quo(f, scale)
	out, _ := f.Float64()
	return out
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func unpackAmounts(out []byte) ([]*big.Int, error) {
	vals, err := routerABI.Unpack("getAmountsOut", out)
	if err != nil {
		return nil, fmt.Errorf("unpacking getAmountsOut: %w", err)
	}
	amounts, ok := vals[0].([]*big.Int)
	if !ok || len(amounts) == 0 {
		return nil, fmt.Errorf("unexpected getAmountsOut shape")
	}
	return amounts, nil
}
