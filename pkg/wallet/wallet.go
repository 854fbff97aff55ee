package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"arbiswap/pkg/erc20"
	"arbiswap/pkg/types"
)

// ErrNoAccount is returned by Connect when the wallet exposes no account
var ErrNoAccount = errors.New("wallet has no account")

// TxArgs is the JSON shape of an eth_sendTransaction request. Quantities are
// hex encoded.
type TxArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
}

// Wallet is the capability set the swap flow needs from a signing wallet
type Wallet interface {
	// Connect returns the active account
	Connect(ctx context.Context) (common.Address, error)
	// Balance returns the native balance of addr
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
	// SendTransaction signs and broadcasts args, returning the transaction hash
	SendTransaction(ctx context.Context, args TxArgs) (common.Hash, error)
}

// TokenBalance returns owner's balance of token. The native sentinel is read
// through the wallet, ERC-20 tokens through reader. Any failure yields zero.
func TokenBalance(ctx context.Context, w Wallet, reader erc20.Caller, token types.Token, native, owner common.Address) *big.Int {
	var (
		bal *big.Int
		err error
	)
	if token.IsNative(native) {
		bal, err = w.Balance(ctx, owner)
	} else {
		bal, err = erc20.BalanceOf(ctx, reader, token.Address, owner)
	}
	if err != nil {
		log.Debug().Err(err).Str("component", "wallet").Str("token", token.Symbol).Msg("Balance read failed")
		return new(big.Int)
	}
	return bal
}
