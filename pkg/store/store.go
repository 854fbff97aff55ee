package store

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"arbiswap/pkg/amount"
	"arbiswap/pkg/apperrors"
	"arbiswap/pkg/orchestrator"
	"arbiswap/pkg/quote"
	"arbiswap/pkg/types"
)

// MaxSlippagePercent bounds the slippage a user may set
var MaxSlippagePercent = decimal.NewFromInt(50)

// Routing holds the routing tunables sent with every quote request
type Routing struct {
	MaxEdge  int
	MaxSplit int
}

// State is one immutable view of the session
type State struct {
	Version uint64

	TokenIn         types.Token
	TokenOut        types.Token
	AmountText      string
	SlippagePercent decimal.Decimal
	Mode            types.Mode
	Routing         Routing

	Address common.Address
	Balance *big.Int

	Quote quote.Snapshot

	Execution orchestrator.State
	Executing bool
	LastError error
}

// PairSaver persists the selected token pair
type PairSaver interface {
	SaveTokenPair(in, out types.Token) error
}

// Store owns the session state. Every change is published to subscribers.
type Store struct {
	saver PairSaver
	field *amount.Field

	mu      sync.Mutex
	state   State
	subs    map[int]func(State)
	nextSub int
}

// New creates a store from an initial state. saver may be nil.
func New(initial State, saver PairSaver) *Store {
	if initial.Mode == "" {
		initial.Mode = types.ModeSwap
	}
	if initial.Balance == nil {
		initial.Balance = new(big.Int)
	}
	field := amount.NewField(initial.AmountText)
	initial.AmountText = field.Text()

	return &Store{
		saver: saver,
		field: field,
		state: initial,
		subs:  make(map[int]func(State)),
	}
}

// Snapshot returns the current state
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for every change and returns a cancel func
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// update applies fn under the lock and publishes the result
func (s *Store) update(fn func(st *State) bool) {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return
	}
	s.state.Version++
	st := s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(st)
	}
}

// SetAmount accepts raw input when it is valid. Rejected input leaves the
// previous amount in place and is reported only through the Result.
func (s *Store) SetAmount(raw string) amount.Result {
	res := s.field.Set(raw)
	if !res.OK {
		log.Debug().Str("component", "store").Str("input", raw).Str("reason", res.Reason).Msg("Amount rejected")
		return res
	}
	s.update(func(st *State) bool {
		if st.AmountText == res.Text {
			return false
		}
		st.AmountText = res.Text
		return true
	})
	return res
}

// ClearAmount empties the amount
func (s *Store) ClearAmount() {
	s.field.Clear()
	s.update(func(st *State) bool {
		if st.AmountText == "" {
			return false
		}
		st.AmountText = ""
		return true
	})
}

func (s *Store) SetTokenIn(t types.Token) {
	s.setPair(func(st *State) { st.TokenIn = t })
}

func (s *Store) SetTokenOut(t types.Token) {
	s.setPair(func(st *State) { st.TokenOut = t })
}

// Reverse swaps input and output tokens and resets the amount to "0"
func (s *Store) Reverse() {
	s.field.Set("0")
	s.setPair(func(st *State) {
		st.TokenIn, st.TokenOut = st.TokenOut, st.TokenIn
		st.AmountText = "0"
		st.Balance = new(big.Int)
	})
}

func (s *Store) setPair(fn func(st *State)) {
	var in, out types.Token
	s.update(func(st *State) bool {
		fn(st)
		in, out = st.TokenIn, st.TokenOut
		return true
	})

	if s.saver == nil || in.IsZero() || out.IsZero() {
		return
	}
	if err := s.saver.SaveTokenPair(in, out); err != nil {
		log.Warn().Err(err).Str("component", "store").Msg("Failed to persist token pair")
	}
}

// SetSlippage sets the tolerated slippage in percent
func (s *Store) SetSlippage(percent decimal.Decimal) error {
	if percent.Sign() <= 0 || percent.GreaterThan(MaxSlippagePercent) {
		return apperrors.Wrap(apperrors.ErrInputRejected, errors.Errorf("slippage must be within (0, %s]", MaxSlippagePercent))
	}
	s.update(func(st *State) bool {
		if st.SlippagePercent.Equal(percent) {
			return false
		}
		st.SlippagePercent = percent
		return true
	})
	return nil
}

func (s *Store) SetMode(m types.Mode) {
	s.update(func(st *State) bool {
		if st.Mode == m {
			return false
		}
		st.Mode = m
		return true
	})
}

func (s *Store) SetAddress(addr common.Address) {
	s.update(func(st *State) bool {
		if st.Address == addr {
			return false
		}
		st.Address = addr
		return true
	})
}

func (s *Store) SetBalance(bal *big.Int) {
	if bal == nil {
		bal = new(big.Int)
	}
	s.update(func(st *State) bool {
		if st.Balance != nil && st.Balance.Cmp(bal) == 0 {
			return false
		}
		st.Balance = bal
		return true
	})
}

// ApplyQuote stores a coordinator snapshot unless a newer one is already held
func (s *Store) ApplyQuote(snap quote.Snapshot) {
	s.update(func(st *State) bool {
		if snap.Seq <= st.Quote.Seq {
			return false
		}
		st.Quote = snap
		return true
	})
}

// SetExecution records orchestrator progress
func (s *Store) SetExecution(state orchestrator.State, executing bool, err error) {
	s.update(func(st *State) bool {
		st.Execution = state
		st.Executing = executing
		st.LastError = err
		return true
	})
}
