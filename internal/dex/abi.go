package dex

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Minimal ABI fragments for the UniswapV2-style contract surface the adapter
// reads. Kept as JSON literals so the parsed objects match the on-chain
// selectors exactly.
const (
	routerABIJSON = `[
		{"name":"getAmountsOut","type":"function","stateMutability":"view",
		 "inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],
		 "outputs":[{"name":"amounts","type":"uint256[]"}]},
		{"name":"swapExactTokensForTokens","type":"function","stateMutability":"nonpayable",
		 "inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},
		           {"name":"path","type":"address[]"},{"name":"to","type":"address"},
		           {"name":"deadline","type":"uint256"}],
		 "outputs":[{"name":"amounts","type":"uint256[]"}]}
	]`

	factoryABIJSON = `[
		{"name":"getPair","type":"function","stateMutability":"view",
		 "inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],
		 "outputs":[{"name":"pair","type":"address"}]}
	]`

	pairABIJSON = `[
		{"name":"getReserves","type":"function","stateMutability":"view",
		 "inputs":[],
		 "outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},
		            {"name":"blockTimestampLast","type":"uint32"}]},
		{"name":"token0","type":"function","stateMutability":"view",
		 "inputs":[],"outputs":[{"name":"","type":"address"}]},
		{"name":"token1","type":"function","stateMutability":"view",
		 "inputs":[],"outputs":[{"name":"","type":"address"}]}
	]`

	erc20ABIJSON = `[
		{"name":"decimals","type":"function","stateMutability":"view",
		 "inputs":[],"outputs":[{"name":"","type":"uint8"}]}
	]`
)

var (
	routerABI  abi.ABI
	factoryABI abi.ABI
	pairABI    abi.ABI
	erc20ABI   abi.ABI
)

func init() {
	routerABI = mustParseABI(routerABIJSON)
	factoryABI = mustParseABI(factoryABIJSON)
	pairABI = mustParseABI(pairABIJSON)
	erc20ABI = mustParseABI(erc20ABIJSON)
}

// PackSwapExactTokensForTokens encodes a router swap call. amountIn and
// amountOutMin are already in base units.
func PackSwapExactTokensForTokens(amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return routerABI.Pack("swapExactTokensForTokens", amountIn, amountOutMin, path, to, deadline)
}

func mustParseABI(src string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic("dex: parsing ABI: " + err.Error())
	}
	return parsed
}
