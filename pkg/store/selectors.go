package store

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"arbiswap/pkg/amount"
	"arbiswap/pkg/apperrors"
	"arbiswap/pkg/quote"
	"arbiswap/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// SlippageBps converts the percent setting to basis points
func (st State) SlippageBps() int64 {
	return st.SlippagePercent.Mul(hundred).Round(0).IntPart()
}

// Params derives the quote request parameters. AmountIn is empty when no
// amount is entered or no input token is selected.
func (st State) Params() types.SwapParameters {
	p := types.SwapParameters{
		TokenIn:     st.TokenIn.Address,
		TokenOut:    st.TokenOut.Address,
		From:        st.Address,
		SlippageBps: st.SlippageBps(),
		MaxEdge:     st.Routing.MaxEdge,
		MaxSplit:    st.Routing.MaxSplit,
		WithCycle:   st.Mode == types.ModeFlash,
	}
	if st.AmountText != "" && !st.TokenIn.IsZero() {
		if units, ok := amount.ToSmallestUnit(st.AmountText, st.TokenIn.Decimals); ok {
			p.AmountIn = units
		}
	}
	return p
}

// QuoteInput is what the quote coordinator follows. The amount stays as text
// so it is converted with the decimals of the token selected when it settles.
func (st State) QuoteInput() quote.Input {
	p := st.Params()
	p.AmountIn = ""
	in := quote.Input{Params: p}
	if !st.TokenIn.IsZero() {
		in.AmountText = st.AmountText
		in.Decimals = st.TokenIn.Decimals
	}
	return in
}

// CanExecute returns nil when the swap control should be enabled
func (st State) CanExecute() error {
	switch {
	case st.Executing:
		return apperrors.ErrExecutionInProgress
	case st.Address == (common.Address{}):
		return apperrors.Wrap(apperrors.ErrNotExecutable, errors.New("wallet not connected"))
	case st.Mode == types.ModeFlash:
		return apperrors.Wrap(apperrors.ErrNotExecutable, errors.New("flash mode is preview only"))
	case st.Quote.Invalid:
		return apperrors.Wrap(apperrors.ErrNotExecutable, st.Quote.Err)
	case !st.Quote.HasKey || !st.Quote.Quote.Executable():
		return apperrors.Wrap(apperrors.ErrNotExecutable, errors.New("no executable quote"))
	case st.Quote.Key != st.Params():
		return apperrors.Wrap(apperrors.ErrNotExecutable, errors.New("quote is outdated"))
	}
	return nil
}

// ExpectedOut converts the quoted output to output token units
func (st State) ExpectedOut() (decimal.Decimal, bool) {
	if st.Quote.Quote == nil || st.TokenOut.IsZero() {
		return decimal.Zero, false
	}
	return amount.FromSmallestUnit(st.Quote.Quote.ExpectedAmountOut, st.TokenOut.Decimals)
}

// BalanceDecimal converts the raw balance to input token units
func (st State) BalanceDecimal() decimal.Decimal {
	if st.Balance == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(st.Balance, -int32(st.TokenIn.Decimals))
}
