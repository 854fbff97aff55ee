package wallet

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ChainClient is the subset of ethclient.Client used for signing and reads
type ChainClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// gasBufferPercent is added on top of estimated gas
const gasBufferPercent = 20

// Keyed signs transactions in-process with a local private key
type Keyed struct {
	client     ChainClient
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
}

// NewKeyed builds a keyed wallet on an existing client
func NewKeyed(client ChainClient, hexKey string, chainID int64) (*Keyed, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}

	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("failed to get public key")
	}

	return &Keyed{
		client:     client,
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(*publicKeyECDSA),
		chainID:    big.NewInt(chainID),
	}, nil
}

// Address returns the signing account
func (k *Keyed) Address() common.Address {
	return k.address
}

// Client returns the connection the wallet signs and reads through
func (k *Keyed) Client() ChainClient {
	return k.client
}

func (k *Keyed) Connect(context.Context) (common.Address, error) {
	return k.address, nil
}

func (k *Keyed) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	bal, err := k.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get balance")
	}
	return bal, nil
}

// SendTransaction decodes hex encoded args and sends them. A missing gas
// limit is estimated.
func (k *Keyed) SendTransaction(ctx context.Context, args TxArgs) (common.Hash, error) {
	if args.To == nil {
		return common.Hash{}, errors.New("contract creation is not supported")
	}
	if args.From != (common.Address{}) && args.From != k.address {
		return common.Hash{}, errors.Errorf("from %s does not match wallet account %s", args.From.Hex(), k.address.Hex())
	}

	value := new(big.Int)
	if args.Value != nil {
		value = args.Value.ToInt()
	}
	var gas uint64
	if args.Gas != nil {
		gas = uint64(*args.Gas)
	}
	return k.Send(ctx, *args.To, args.Data, value, gas)
}

// Send signs a legacy EIP-155 transaction and broadcasts it. gasLimit 0 means
// estimate and add a 20% buffer.
func (k *Keyed) Send(ctx context.Context, to common.Address, data []byte, value *big.Int, gasLimit uint64) (common.Hash, error) {
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := k.client.PendingNonceAt(ctx, k.address)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to get nonce")
	}

	gasPrice, err := k.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to get gas price")
	}

	if gasLimit == 0 {
		gasLimit, err = k.EstimateGas(ctx, to, data, value)
		if err != nil {
			return common.Hash{}, err
		}
	}

	tx := types.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(k.chainID), k.privateKey)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to sign transaction")
	}

	if err := k.client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to send transaction")
	}

	log.Debug().
		Str("component", "wallet").
		Str("tx", signedTx.Hash().Hex()).
		Uint64("nonce", nonce).
		Uint64("gas", gasLimit).
		Msg("Transaction broadcast")

	return signedTx.Hash(), nil
}

// EstimateGas estimates a call from the wallet account and adds the buffer
func (k *Keyed) EstimateGas(ctx context.Context, to common.Address, data []byte, value *big.Int) (uint64, error) {
	estimated, err := k.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  k.address,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to estimate gas")
	}
	return estimated * (100 + gasBufferPercent) / 100, nil
}
