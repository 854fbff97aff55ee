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

// Kind names a backend variant
type Kind string

const (
	// KindSigner reads and signs through the wallet's own chain connection
	KindSigner Kind = "signer"
	// KindRPC reads through a configured RPC endpoint and hands hex encoded
	// transactions to the wallet
	KindRPC Kind = "rpc"
)

// DefaultPollInterval is used when no receipt poll interval is configured
const DefaultPollInterval = 2 * time.Second

// TransactionBackend performs the chain side of approve and swap
type TransactionBackend interface {
	Kind() Kind
	// CheckAllowance returns token.allowance(owner, spender)
	CheckAllowance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	// Approve grants the spender an unlimited allowance of token
	Approve(ctx context.Context, owner, token common.Address) (common.Hash, error)
	// SendSwap submits the quoted swap transaction
	SendSwap(ctx context.Context, owner common.Address, tx *types.UnsignedTx) (common.Hash, error)
	// WaitReceipt blocks until the transaction is mined or ctx ends
	WaitReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error)
}

// Reader is the read side of a chain connection
type Reader interface {
	erc20.Caller
	ReceiptReader
}

// Options configures New
type Options struct {
	Kind         Kind
	Spender      common.Address
	PollInterval time.Duration
}

// New selects a backend variant. The signer variant needs a *wallet.Keyed;
// the rpc variant accepts any wallet and reads through reader.
func New(opts Options, w wallet.Wallet, reader Reader) (TransactionBackend, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	switch opts.Kind {
	case KindSigner, "":
		keyed, ok := w.(*wallet.Keyed)
		if !ok {
			return nil, errors.Errorf("backend %q requires a keyed wallet, got %T", KindSigner, w)
		}
		return NewSigner(keyed, opts.Spender, opts.PollInterval), nil
	case KindRPC:
		if reader == nil {
			return nil, errors.Errorf("backend %q requires an RPC reader", KindRPC)
		}
		return NewDirect(w, reader, opts.Spender, opts.PollInterval), nil
	default:
		return nil, errors.Errorf("unsupported backend: %s", opts.Kind)
	}
}
