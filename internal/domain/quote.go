package domain

import (
	"context"
	"time"
)

// Quote is a point-in-time on-chain price observation: swapping AmountIn of
// TokenIn yields AmountOut of TokenOut on Venue. Amounts are expressed in the
// human decimal precision of their respective tokens. Quotes are never
// mutated after creation.
type Quote struct {
	Venue     string    `json:"venue"`
	TokenIn   TokenRef  `json:"token_in"`
	TokenOut  TokenRef  `json:"token_out"`
	AmountIn  float64   `json:"amount_in"`
	AmountOut float64   `json:"amount_out"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Quoter answers "how much TokenOut do I get for AmountIn of TokenIn" for one
// DEX venue. Implementations perform read-only contract calls only; a failed
// call can always be retried or skipped.
//
// Quote returns ErrNoLiquidity when no pool exists for the pair (a negative
// result, not a failure) and ErrRPCFailure-wrapped errors on transport
// problems.
type Quoter interface {
	// Name returns the venue identifier, e.g. "icecreamswap".
	Name() string
	Quote(ctx context.Context, tokenIn, tokenOut TokenRef, amountIn float64) (Quote, error)
}
