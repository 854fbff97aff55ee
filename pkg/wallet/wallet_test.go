package wallet

import (
	"context"
	"math/big"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	swaptypes "arbiswap/pkg/types"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

var native = common.HexToAddress("0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")

type fakeChain struct {
	mu       sync.Mutex
	balance  *big.Int
	callRes  []byte
	callErr  error
	estimate uint64
	sent     []*types.Transaction
}

func (f *fakeChain) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return f.callRes, f.callErr
}

func (f *fakeChain) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	if f.balance == nil {
		return nil, errors.New("unavailable")
	}
	return f.balance, nil
}

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(25_000_000_000), nil
}

func (f *fakeChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return f.estimate, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChain) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

func TestKeyedSend(t *testing.T) {
	t.Parallel()

	chain := &fakeChain{estimate: 100_000}
	k, err := NewKeyed(chain, "0x"+testKey, 9001)
	require.NoError(t, err)

	key, err := crypto.HexToECDSA(testKey)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), k.Address())

	to := common.HexToAddress("0xdf7ba1982ff003a80A74CdC0eEf246bc2a3E5F32")

	t.Run("estimates gas with buffer", func(t *testing.T) {
		hash, err := k.Send(context.Background(), to, []byte{0x01}, big.NewInt(5), 0)
		require.NoError(t, err)

		tx := chain.sent[len(chain.sent)-1]
		require.Equal(t, hash, tx.Hash())
		require.Equal(t, uint64(120_000), tx.Gas())
		require.Equal(t, int64(5), tx.Value().Int64())

		sender, err := types.Sender(types.NewEIP155Signer(big.NewInt(9001)), tx)
		require.NoError(t, err)
		require.Equal(t, k.Address(), sender)
	})

	t.Run("hex args keep given gas", func(t *testing.T) {
		gas := hexutil.Uint64(300_000)
		_, err := k.SendTransaction(context.Background(), TxArgs{
			To:    &to,
			Data:  hexutil.Bytes{0xab},
			Value: (*hexutil.Big)(big.NewInt(7)),
			Gas:   &gas,
		})
		require.NoError(t, err)

		tx := chain.sent[len(chain.sent)-1]
		require.Equal(t, uint64(300_000), tx.Gas())
		require.Equal(t, int64(7), tx.Value().Int64())
		require.Equal(t, []byte{0xab}, tx.Data())
	})

	t.Run("foreign from is refused", func(t *testing.T) {
		_, err := k.SendTransaction(context.Background(), TxArgs{
			From: common.HexToAddress("0x01"),
			To:   &to,
		})
		require.Error(t, err)
	})

	t.Run("missing to is refused", func(t *testing.T) {
		_, err := k.SendTransaction(context.Background(), TxArgs{})
		require.Error(t, err)
	})
}

func TestNewKeyedRejectsBadKey(t *testing.T) {
	t.Parallel()

	_, err := NewKeyed(&fakeChain{}, "not-a-key", 9001)
	require.Error(t, err)
}

type fakeWalletService struct {
	accounts []common.Address
	balance  *big.Int

	mu   sync.Mutex
	sent []TxArgs
}

func (s *fakeWalletService) RequestAccounts() ([]common.Address, error) {
	return s.accounts, nil
}

func (s *fakeWalletService) GetBalance(_ common.Address, _ string) (*hexutil.Big, error) {
	return (*hexutil.Big)(s.balance), nil
}

func (s *fakeWalletService) SendTransaction(args TxArgs) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, args)
	return common.HexToHash("0x1234"), nil
}

func startWallet(t *testing.T, svc *fakeWalletService) *Extension {
	t.Helper()

	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", svc))
	httpServer := httptest.NewServer(server)
	t.Cleanup(func() {
		httpServer.Close()
		server.Stop()
	})

	ext, err := DialExtension(context.Background(), httpServer.URL)
	require.NoError(t, err)
	t.Cleanup(ext.Close)
	return ext
}

func TestExtension(t *testing.T) {
	t.Parallel()

	account := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	svc := &fakeWalletService{accounts: []common.Address{account}, balance: big.NewInt(1_000)}
	ext := startWallet(t, svc)
	ctx := context.Background()

	got, err := ext.Connect(ctx)
	require.NoError(t, err)
	require.Equal(t, account, got)

	bal, err := ext.Balance(ctx, account)
	require.NoError(t, err)
	require.Equal(t, int64(1_000), bal.Int64())

	to := common.HexToAddress("0xdf7ba1982ff003a80A74CdC0eEf246bc2a3E5F32")
	gas := hexutil.Uint64(21_000)
	hash, err := ext.SendTransaction(ctx, TxArgs{To: &to, Value: (*hexutil.Big)(big.NewInt(3)), Gas: &gas})
	require.NoError(t, err)
	require.Equal(t, common.HexToHash("0x1234"), hash)

	require.Len(t, svc.sent, 1)
	require.Equal(t, account, svc.sent[0].From)
	require.Equal(t, int64(3), svc.sent[0].Value.ToInt().Int64())
	require.Equal(t, hexutil.Uint64(21_000), *svc.sent[0].Gas)
}

func TestExtensionWithoutAccounts(t *testing.T) {
	t.Parallel()

	ext := startWallet(t, &fakeWalletService{balance: big.NewInt(0)})
	_, err := ext.Connect(context.Background())
	require.ErrorIs(t, err, ErrNoAccount)
}

func TestTokenBalance(t *testing.T) {
	t.Parallel()

	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	evmos := swaptypes.Token{Address: native, Symbol: "EVMOS", Decimals: 18}
	usdc := swaptypes.Token{Address: common.HexToAddress("0x15C3Eb3B621d1Bff62CbA1c9536B7c1AE9149b57"), Symbol: "axlUSDC", Decimals: 6}

	chain := &fakeChain{
		balance: big.NewInt(77),
		callRes: common.LeftPadBytes(big.NewInt(55).Bytes(), 32),
	}
	k, err := NewKeyed(chain, testKey, 9001)
	require.NoError(t, err)

	require.Equal(t, int64(77), TokenBalance(context.Background(), k, chain, evmos, native, owner).Int64())
	require.Equal(t, int64(55), TokenBalance(context.Background(), k, chain, usdc, native, owner).Int64())

	broken := &fakeChain{callErr: errors.New("boom")}
	kb, err := NewKeyed(broken, testKey, 9001)
	require.NoError(t, err)
	require.Equal(t, int64(0), TokenBalance(context.Background(), kb, broken, evmos, native, owner).Int64())
	require.Equal(t, int64(0), TokenBalance(context.Background(), kb, broken, usdc, native, owner).Int64())
}
