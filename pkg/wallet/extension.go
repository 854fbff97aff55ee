package wallet

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

// Extension talks to an external wallet over JSON-RPC. The wallet owns the
// keys and performs signing.
type Extension struct {
	client *rpc.Client

	mu      sync.Mutex
	account common.Address
}

// DialExtension connects to a wallet JSON-RPC endpoint
func DialExtension(ctx context.Context, endpoint string) (*Extension, error) {
	client, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to wallet endpoint")
	}
	return &Extension{client: client}, nil
}

// Connect requests accounts from the wallet and remembers the first one
func (e *Extension) Connect(ctx context.Context) (common.Address, error) {
	var accounts []common.Address
	if err := e.client.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return common.Address{}, errors.Wrap(err, "eth_requestAccounts")
	}
	if len(accounts) == 0 {
		return common.Address{}, ErrNoAccount
	}

	e.mu.Lock()
	e.account = accounts[0]
	e.mu.Unlock()
	return accounts[0], nil
}

func (e *Extension) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var bal hexutil.Big
	if err := e.client.CallContext(ctx, &bal, "eth_getBalance", addr, "latest"); err != nil {
		return nil, errors.Wrap(err, "eth_getBalance")
	}
	return bal.ToInt(), nil
}

// SendTransaction hands args to the wallet. An empty From is filled with the
// connected account.
func (e *Extension) SendTransaction(ctx context.Context, args TxArgs) (common.Hash, error) {
	if args.From == (common.Address{}) {
		e.mu.Lock()
		args.From = e.account
		e.mu.Unlock()
	}

	var hash common.Hash
	if err := e.client.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, errors.Wrap(err, "eth_sendTransaction")
	}
	return hash, nil
}

func (e *Extension) Close() {
	e.client.Close()
}
