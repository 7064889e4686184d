package domain

import (
	"context"
	"math/big"
)

// GasOracle reports the current network gas price in wei.
type GasOracle interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}
