package store

import (
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"arbiswap/pkg/amount"
	"arbiswap/pkg/apperrors"
	"arbiswap/pkg/orchestrator"
	"arbiswap/pkg/quote"
	"arbiswap/pkg/types"
)

var (
	evmos = types.Token{Address: common.HexToAddress("0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"), Symbol: "EVMOS", Decimals: 18}
	usdc  = types.Token{Address: common.HexToAddress("0x15C3Eb3B621d1Bff62CbA1c9536B7c1AE9149b57"), Symbol: "axlUSDC", Decimals: 6}
	user  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

type pairRecorder struct {
	mu    sync.Mutex
	pairs [][2]types.Token
	err   error
}

func (p *pairRecorder) SaveTokenPair(in, out types.Token) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pairs = append(p.pairs, [2]types.Token{in, out})
	return p.err
}

func newStore(saver PairSaver) *Store {
	return New(State{
		TokenIn:         evmos,
		TokenOut:        usdc,
		SlippagePercent: decimal.NewFromInt(1),
		Routing:         Routing{MaxEdge: 4, MaxSplit: 10},
	}, saver)
}

func TestSetAmountKeepsPreviousOnReject(t *testing.T) {
	t.Parallel()

	s := newStore(nil)
	var versions []uint64
	s.Subscribe(func(st State) { versions = append(versions, st.Version) })

	require.True(t, s.SetAmount("1.5").OK)
	require.Equal(t, "1.5", s.Snapshot().AmountText)

	res := s.SetAmount("1.123456")
	require.False(t, res.OK)
	require.Equal(t, amount.ReasonTooPrecise, res.Reason)
	require.Equal(t, "1.5", s.Snapshot().AmountText)

	require.False(t, s.SetAmount("12345678901").OK)
	require.Equal(t, "1.5", s.Snapshot().AmountText)
	require.Len(t, versions, 1, "rejected input publishes nothing")

	s.ClearAmount()
	require.Equal(t, "", s.Snapshot().AmountText)
}

func TestParams(t *testing.T) {
	t.Parallel()

	s := newStore(nil)
	s.SetAddress(user)
	s.SetAmount("1.5")
	require.NoError(t, s.SetSlippage(decimal.RequireFromString("0.5")))

	p := s.Snapshot().Params()
	require.Equal(t, evmos.Address, p.TokenIn)
	require.Equal(t, usdc.Address, p.TokenOut)
	require.Equal(t, user, p.From)
	require.Equal(t, "1500000000000000000", p.AmountIn)
	require.Equal(t, int64(50), p.SlippageBps)
	require.Equal(t, 4, p.MaxEdge)
	require.Equal(t, 10, p.MaxSplit)
	require.False(t, p.WithCycle)

	s.SetMode(types.ModeFlash)
	require.True(t, s.Snapshot().Params().WithCycle)

	_, ok := quote.KeyFor(New(State{TokenIn: evmos, TokenOut: usdc}, nil).Snapshot().Params())
	require.False(t, ok, "no amount means no key")
}

func TestQuoteInputKeepsAmountAsText(t *testing.T) {
	t.Parallel()

	s := newStore(nil)
	s.SetAmount("1.5")

	in := s.Snapshot().QuoteInput()
	require.Equal(t, "1.5", in.AmountText)
	require.Equal(t, 18, in.Decimals)
	require.Empty(t, in.Params.AmountIn)
	require.Equal(t, evmos.Address, in.Params.TokenIn)

	s.SetTokenIn(types.Token{Address: common.HexToAddress("0x51e44FfaD5C2B122C8b635671FCC8139dc636E82"), Symbol: "ceUSDC", Decimals: 6})
	in = s.Snapshot().QuoteInput()
	require.Equal(t, "1.5", in.AmountText)
	require.Equal(t, 6, in.Decimals)
}

func TestSlippageBounds(t *testing.T) {
	t.Parallel()

	s := newStore(nil)
	require.ErrorIs(t, s.SetSlippage(decimal.Zero), apperrors.ErrInputRejected)
	require.ErrorIs(t, s.SetSlippage(decimal.NewFromInt(51)), apperrors.ErrInputRejected)
	require.NoError(t, s.SetSlippage(decimal.RequireFromString("2.555")))
	require.Equal(t, int64(256), s.Snapshot().SlippageBps())
}

func TestReverse(t *testing.T) {
	t.Parallel()

	saver := &pairRecorder{}
	s := newStore(saver)
	s.SetAmount("10")
	s.SetBalance(big.NewInt(99))

	s.Reverse()
	st := s.Snapshot()
	require.Equal(t, usdc, st.TokenIn)
	require.Equal(t, evmos, st.TokenOut)
	require.Equal(t, "0", st.AmountText)
	require.Zero(t, st.Balance.Sign())

	_, ok := quote.KeyFor(st.Params())
	require.False(t, ok)

	require.Len(t, saver.pairs, 1)
	require.Equal(t, [2]types.Token{usdc, evmos}, saver.pairs[0])
}

func TestTokenSelectionPersists(t *testing.T) {
	t.Parallel()

	saver := &pairRecorder{err: errors.New("disk full")}
	s := New(State{}, saver)

	s.SetTokenIn(evmos)
	require.Empty(t, saver.pairs, "incomplete pair is not persisted")

	s.SetTokenOut(usdc)
	require.Len(t, saver.pairs, 1)
	require.Equal(t, usdc, s.Snapshot().TokenOut, "persistence failure does not block selection")
}

func TestApplyQuoteDropsOlderSnapshots(t *testing.T) {
	t.Parallel()

	s := newStore(nil)
	s.ApplyQuote(quote.Snapshot{Seq: 5, HasKey: true, Quote: &types.QuoteResult{ExpectedAmountOut: "2500000"}})
	s.ApplyQuote(quote.Snapshot{Seq: 4, HasKey: true})

	st := s.Snapshot()
	require.Equal(t, uint64(5), st.Quote.Seq)

	out, ok := st.ExpectedOut()
	require.True(t, ok)
	require.True(t, out.Equal(decimal.RequireFromString("2.5")))
	require.Equal(t, "2.500", amount.RenderDecimal(out, 3))
}

func TestCanExecute(t *testing.T) {
	t.Parallel()

	s := newStore(nil)
	s.SetAmount("1")

	require.ErrorIs(t, s.Snapshot().CanExecute(), apperrors.ErrNotExecutable)

	s.SetAddress(user)
	key, ok := quote.KeyFor(s.Snapshot().Params())
	require.True(t, ok)

	executable := &types.QuoteResult{
		ExpectedAmountOut: "1",
		Tx:                &types.UnsignedTx{To: common.HexToAddress("0xdf7ba1982ff003a80A74CdC0eEf246bc2a3E5F32")},
	}

	s.ApplyQuote(quote.Snapshot{Seq: 1, Key: key, HasKey: true, Quote: &types.QuoteResult{ExpectedAmountOut: "1"}})
	require.ErrorIs(t, s.Snapshot().CanExecute(), apperrors.ErrNotExecutable)

	s.ApplyQuote(quote.Snapshot{Seq: 2, Key: key, HasKey: true, Quote: executable})
	require.NoError(t, s.Snapshot().CanExecute())

	s.SetMode(types.ModeFlash)
	require.ErrorIs(t, s.Snapshot().CanExecute(), apperrors.ErrNotExecutable)
	s.SetMode(types.ModeSwap)

	s.SetExecution(orchestrator.CheckingAllowance, true, nil)
	require.ErrorIs(t, s.Snapshot().CanExecute(), apperrors.ErrExecutionInProgress)
	s.SetExecution(orchestrator.Confirmed, false, nil)
	require.NoError(t, s.Snapshot().CanExecute())

	s.SetAmount("2")
	require.ErrorIs(t, s.Snapshot().CanExecute(), apperrors.ErrNotExecutable, "quote for another amount")

	s.ApplyQuote(quote.Snapshot{Seq: 3, Key: key, HasKey: true, Invalid: true, Err: apperrors.ErrQuoteFetchFailed})
	err := s.Snapshot().CanExecute()
	require.ErrorIs(t, err, apperrors.ErrQuoteFetchFailed)
}

func TestBalanceDecimal(t *testing.T) {
	t.Parallel()

	s := newStore(nil)
	s.SetBalance(new(big.Int).Mul(big.NewInt(15), big.NewInt(1e17)))
	require.True(t, s.Snapshot().BalanceDecimal().Equal(decimal.RequireFromString("1.5")))
}
