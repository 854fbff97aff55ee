package types

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Token describes an entry of the token list
type Token struct {
	Address  common.Address `json:"address"`
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Decimals int            `json:"decimals"`
	LogoURI  string         `json:"logoURI,omitempty"`
}

// IsZero reports whether no token is selected
func (t Token) IsZero() bool {
	return t.Address == (common.Address{}) && t.Symbol == ""
}

// IsNative reports whether the token is the chain's native asset sentinel
func (t Token) IsNative(sentinel common.Address) bool {
	return t.Address == sentinel
}

// Mode selects between a point-to-point swap and a cyclic (flash) route
type Mode string

const (
	ModeSwap  Mode = "swap"
	ModeFlash Mode = "flash"
)

// ParseMode accepts "swap" or "flash" in any case
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSwap:
		return ModeSwap, true
	case ModeFlash:
		return ModeFlash, true
	}
	return "", false
}

// SwapRequest represents a user's swap command
type SwapRequest struct {
	Amount      string
	SourceToken string
	DestToken   string
}

// SwapParameters is the identity of a quote request. Two equal values always
// refer to the same quote.
type SwapParameters struct {
	TokenIn     common.Address
	TokenOut    common.Address
	From        common.Address
	AmountIn    string // smallest units of TokenIn
	SlippageBps int64
	MaxEdge     int
	MaxSplit    int
	WithCycle   bool
}

// UnsignedTx is the transaction payload returned by the quote service
type UnsignedTx struct {
	To       common.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
}

// QuoteResult holds a priced quote for one SwapParameters value
type QuoteResult struct {
	ExpectedAmountOut string // smallest units of TokenOut
	Tx                *UnsignedTx
	FetchedAt         time.Time
}

// Executable reports whether the quote carries a swap transaction
func (q *QuoteResult) Executable() bool {
	return q != nil && q.Tx != nil && q.Tx.To != (common.Address{})
}
