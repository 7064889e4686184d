package domain

import "github.com/ethereum/go-ethereum/common"

// TokenRef identifies an ERC-20 token on the scanned chain. Decimals is
// resolved lazily on first use and never changes for the process lifetime.
type TokenRef struct {
	Symbol   string         `json:"symbol"`
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
}

// ZeroAddress marks a token entry as unverified. Tokens mapped to the zero
// address are excluded from every scan.
var ZeroAddress = common.Address{}

// Verified reports whether the token has a usable on-chain address.
func (t TokenRef) Verified() bool {
	return t.Address != ZeroAddress
}
