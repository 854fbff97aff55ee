package backend

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"arbiswap/pkg/erc20"
	"arbiswap/pkg/types"
	"arbiswap/pkg/wallet"
)

// Signer reads allowance through the signer's own connection and signs
// in-process. The quoted gas limit is ignored and re-estimated.
type Signer struct {
	keyed   *wallet.Keyed
	spender common.Address
	poll    time.Duration
}

func NewSigner(keyed *wallet.Keyed, spender common.Address, poll time.Duration) *Signer {
	return &Signer{keyed: keyed, spender: spender, poll: poll}
}

func (s *Signer) Kind() Kind {
	return KindSigner
}

func (s *Signer) CheckAllowance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return erc20.Allowance(ctx, s.keyed.Client(), token, owner, s.spender)
}

func (s *Signer) Approve(ctx context.Context, owner, token common.Address) (common.Hash, error) {
	if owner != s.keyed.Address() {
		return common.Hash{}, errors.Errorf("owner %s is not the signing account", owner.Hex())
	}
	data, err := erc20.PackApprove(s.spender, erc20.MaxApproval())
	if err != nil {
		return common.Hash{}, err
	}
	return s.keyed.Send(ctx, token, data, new(big.Int), 0)
}

func (s *Signer) SendSwap(ctx context.Context, owner common.Address, tx *types.UnsignedTx) (common.Hash, error) {
	if tx == nil {
		return common.Hash{}, errors.New("missing swap transaction")
	}
	if owner != s.keyed.Address() {
		return common.Hash{}, errors.Errorf("owner %s is not the signing account", owner.Hex())
	}
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}
	return s.keyed.Send(ctx, tx.To, tx.Data, value, 0)
}

func (s *Signer) WaitReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	return WaitForReceipt(ctx, s.keyed.Client(), hash, s.poll)
}
