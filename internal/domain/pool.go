package domain

// PoolInfo is a snapshot of one liquidity pool, surfaced by the pool
// analytics endpoint. Reserves are reported in whole token units.
type PoolInfo struct {
	Venue    string  `json:"venue"`
	Pair     string  `json:"pair"`
	Token0   string  `json:"token0"`
	Token1   string  `json:"token1"`
	Address  string  `json:"address"`
	Reserve0 float64 `json:"reserve0"`
	Reserve1 float64 `json:"reserve1"`
}
