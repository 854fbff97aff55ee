package quote

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"arbiswap/pkg/types"
)

// KeyFor returns the request key for p. ok is false when a token is missing or
// the amount is not a positive integer, meaning nothing should be fetched.
func KeyFor(p types.SwapParameters) (types.SwapParameters, bool) {
	if p.TokenIn == (common.Address{}) || p.TokenOut == (common.Address{}) {
		return types.SwapParameters{}, false
	}
	amount, ok := new(big.Int).SetString(p.AmountIn, 10)
	if !ok || amount.Sign() <= 0 {
		return types.SwapParameters{}, false
	}
	// canonical form so "007" and "7" share a key
	p.AmountIn = amount.String()
	return p, true
}

