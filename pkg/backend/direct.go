package backend

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"arbiswap/pkg/erc20"
	"arbiswap/pkg/types"
	"arbiswap/pkg/wallet"
)

// Direct reads allowance through a configured RPC endpoint and hands hex
// encoded transactions to the wallet, keeping the quoted gas limit.
type Direct struct {
	wallet  wallet.Wallet
	reader  Reader
	spender common.Address
	poll    time.Duration
}

func NewDirect(w wallet.Wallet, reader Reader, spender common.Address, poll time.Duration) *Direct {
	return &Direct{wallet: w, reader: reader, spender: spender, poll: poll}
}

func (d *Direct) Kind() Kind {
	return KindRPC
}

func (d *Direct) CheckAllowance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return erc20.Allowance(ctx, d.reader, token, owner, d.spender)
}

func (d *Direct) Approve(ctx context.Context, owner, token common.Address) (common.Hash, error) {
	data, err := erc20.PackApprove(d.spender, erc20.MaxApproval())
	if err != nil {
		return common.Hash{}, err
	}
	return d.wallet.SendTransaction(ctx, wallet.TxArgs{
		From:  owner,
		To:    &token,
		Data:  data,
		Value: (*hexutil.Big)(new(big.Int)),
	})
}

func (d *Direct) SendSwap(ctx context.Context, owner common.Address, tx *types.UnsignedTx) (common.Hash, error) {
	if tx == nil {
		return common.Hash{}, errors.New("missing swap transaction")
	}
	return d.wallet.SendTransaction(ctx, EncodeTx(owner, tx))
}

func (d *Direct) WaitReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	return WaitForReceipt(ctx, d.reader, hash, d.poll)
}

// EncodeTx converts a quoted transaction to hex encoded wallet arguments.
// A zero gas limit is left for the wallet to estimate.
func EncodeTx(owner common.Address, tx *types.UnsignedTx) wallet.TxArgs {
	to := tx.To
	value := new(big.Int)
	if tx.Value != nil {
		value = new(big.Int).Set(tx.Value)
	}
	args := wallet.TxArgs{
		From:  owner,
		To:    &to,
		Data:  hexutil.Bytes(tx.Data),
		Value: (*hexutil.Big)(value),
	}
	if tx.GasLimit > 0 {
		gas := hexutil.Uint64(tx.GasLimit)
		args.Gas = &gas
	}
	return args
}
