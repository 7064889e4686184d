package domain

import "errors"

var (
	// ErrNoLiquidity signals that no pool exists for a pair. It is a negative
	// result, not a failure: the caller drops the leg and moves on.
	ErrNoLiquidity = errors.New("no liquidity pool")
	// ErrRPCFailure wraps transient node/network problems. Absorbed at the
	// smallest possible scope (one leg, one quote).
	ErrRPCFailure = errors.New("rpc failure")
	// ErrExecutionReverted wraps a contract-side revert of an eth_call. The
	// node answered; the contract refused. Routers revert on empty pools, so
	// quote paths map this to ErrNoLiquidity rather than a transport failure.
	ErrExecutionReverted = errors.New("execution reverted")
	// ErrSigningUnavailable is returned when an operation needs a signing key
	// and the process runs in read-only mode. Expected, not an error condition.
	ErrSigningUnavailable = errors.New("signing key not configured")
	// ErrNoEndpoints is returned at startup when no configured RPC endpoint
	// answers the liveness check. This is the one fatal connectivity error.
	ErrNoEndpoints = errors.New("no live rpc endpoint")
	ErrNotFound    = errors.New("not found")
)
