package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"arbiswap/pkg/allowance"
	"arbiswap/pkg/apperrors"
	"arbiswap/pkg/backend"
	"arbiswap/pkg/types"
)

// Transition is reported to the observer on every state change
type Transition struct {
	Attempt string
	From    State
	To      State
	TxHash  common.Hash
	Err     error
	At      time.Time
}

// Observer receives transitions in order, on the executing goroutine
type Observer func(Transition)

// Request is the input of one execution
type Request struct {
	TokenIn common.Address
	Owner   common.Address
	Quote   *types.QuoteResult
}

// Result summarises an execution
type Result struct {
	Attempt    string
	State      State
	Path       []State
	ApprovalTx common.Hash
	SwapTx     common.Hash
	Receipt    *gethtypes.Receipt
}

// Orchestrator runs approve then swap for one execution at a time
type Orchestrator struct {
	backend  backend.TransactionBackend
	gate     *allowance.Gate
	native   common.Address
	observer Observer

	mu      sync.Mutex
	running bool
	state   State
}

// New creates an orchestrator. observer may be nil.
func New(b backend.TransactionBackend, native common.Address, observer Observer) *Orchestrator {
	return &Orchestrator{
		backend:  b,
		gate:     allowance.NewGate(b, native),
		native:   native,
		observer: observer,
	}
}

// State returns the state of the current or last execution
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Running reports whether an execution is in progress
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Execute runs one attempt from Idle. Allowance is always re-read; nothing
// from a previous attempt is reused.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (Result, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return Result{}, apperrors.ErrExecutionInProgress
	}
	o.running = true
	o.state = Idle
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	res := Result{Attempt: uuid.NewString(), State: Idle, Path: []State{Idle}}
	logger := log.With().Str("component", "orchestrator").Str("attempt", res.Attempt).Logger()

	if req.Owner == (common.Address{}) {
		return res, apperrors.Wrap(apperrors.ErrNotExecutable, errors.New("no connected address"))
	}
	if !req.Quote.Executable() {
		return res, apperrors.Wrap(apperrors.ErrNotExecutable, errors.New("quote has no swap transaction"))
	}

	fail := func(to State, kind, cause error) (Result, error) {
		err := cause
		if kind != nil {
			err = apperrors.Wrap(kind, cause)
		}
		logger.Error().Err(cause).Stringer("state", to).Msg("Swap attempt aborted")
		if terr := o.advance(&res, to, common.Hash{}, err); terr != nil {
			return res, terr
		}
		return res, err
	}

	if req.TokenIn == o.native {
		if err := o.advance(&res, Ready, common.Hash{}, nil); err != nil {
			return res, err
		}
	} else {
		if err := o.advance(&res, CheckingAllowance, common.Hash{}, nil); err != nil {
			return res, err
		}

		verdict, err := o.gate.Check(ctx, req.TokenIn, req.Owner)
		if err != nil {
			// already carries ErrAllowanceReadFailed
			return fail(Failed, nil, err)
		}
		logger.Debug().Stringer("allowance", verdict).Msg("Allowance checked")

		if verdict == allowance.StateInsufficient {
			if err := o.advance(&res, NeedsApproval, common.Hash{}, nil); err != nil {
				return res, err
			}
			if err := o.advance(&res, Approving, common.Hash{}, nil); err != nil {
				return res, err
			}

			hash, err := o.backend.Approve(ctx, req.Owner, req.TokenIn)
			if err != nil {
				return fail(ApprovalFailed, apperrors.ErrApprovalRejected, err)
			}
			res.ApprovalTx = hash
			logger.Info().Str("tx", hash.Hex()).Msg("Approval sent")

			receipt, err := o.backend.WaitReceipt(ctx, hash)
			if err != nil {
				return fail(ApprovalFailed, apperrors.ErrApprovalRejected, err)
			}
			if receipt == nil || receipt.Status != gethtypes.ReceiptStatusSuccessful {
				return fail(ApprovalFailed, apperrors.ErrApprovalRejected, errors.Errorf("approval %s reverted", hash.Hex()))
			}
		}

		if err := o.advance(&res, Ready, res.ApprovalTx, nil); err != nil {
			return res, err
		}
	}

	if err := o.advance(&res, SigningSwap, common.Hash{}, nil); err != nil {
		return res, err
	}

	hash, err := o.backend.SendSwap(ctx, req.Owner, req.Quote.Tx)
	if err != nil {
		return fail(Failed, apperrors.ErrSwapSubmissionFailed, err)
	}
	res.SwapTx = hash
	if err := o.advance(&res, Submitted, hash, nil); err != nil {
		return res, err
	}
	logger.Info().Str("tx", hash.Hex()).Msg("Swap submitted")

	receipt, err := o.backend.WaitReceipt(ctx, hash)
	if err != nil {
		return fail(Failed, apperrors.ErrReceiptFailed, err)
	}
	if receipt == nil {
		return fail(Failed, apperrors.ErrReceiptFailed, errors.Errorf("no receipt for %s", hash.Hex()))
	}
	res.Receipt = receipt
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return fail(Failed, apperrors.ErrReceiptFailed, errors.Errorf("swap %s reverted", hash.Hex()))
	}

	if err := o.advance(&res, Confirmed, hash, nil); err != nil {
		return res, err
	}
	return res, nil
}

func (o *Orchestrator) advance(res *Result, to State, hash common.Hash, cause error) error {
	o.mu.Lock()
	from := o.state
	if !CanTransition(from, to) {
		o.mu.Unlock()
		return errors.Errorf("invalid transition %s -> %s", from, to)
	}
	o.state = to
	o.mu.Unlock()

	res.State = to
	res.Path = append(res.Path, to)

	if o.observer != nil {
		o.observer(Transition{
			Attempt: res.Attempt,
			From:    from,
			To:      to,
			TxHash:  hash,
			Err:     cause,
			At:      time.Now(),
		})
	}
	return nil
}
