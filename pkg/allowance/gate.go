package allowance

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"arbiswap/pkg/apperrors"
)

// State is the allowance verdict for one (token, spender, owner) triple
type State int

const (
	StateUnknown State = iota
	StateInsufficient
	StateSufficient
)

func (s State) String() string {
	switch s {
	case StateInsufficient:
		return "insufficient"
	case StateSufficient:
		return "sufficient"
	default:
		return "unknown"
	}
}

// Reader reads token.allowance(owner, spender) for a fixed spender
type Reader interface {
	CheckAllowance(ctx context.Context, token, owner common.Address) (*big.Int, error)
}

// Gate decides whether an approval is needed before swapping. Results are
// never cached.
type Gate struct {
	reader Reader
	native common.Address
}

func NewGate(reader Reader, native common.Address) *Gate {
	return &Gate{reader: reader, native: native}
}

// Check reports StateSufficient for the native sentinel without reading. Any
// non-zero allowance counts as sufficient because approvals are unlimited.
func (g *Gate) Check(ctx context.Context, token, owner common.Address) (State, error) {
	if token == g.native {
		return StateSufficient, nil
	}

	allowance, err := g.reader.CheckAllowance(ctx, token, owner)
	if err != nil {
		log.Warn().Err(err).Str("component", "allowance").Str("token", token.Hex()).Msg("Allowance read failed")
		return StateUnknown, apperrors.Wrap(apperrors.ErrAllowanceReadFailed, err)
	}
	if allowance == nil || allowance.Sign() == 0 {
		return StateInsufficient, nil
	}
	return StateSufficient, nil
}
