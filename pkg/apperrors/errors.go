package apperrors

import "github.com/pkg/errors"

var (
	// ErrInputRejected is returned when amount text is malformed or out of bounds.
	ErrInputRejected = errors.New("input rejected")

	// ErrQuoteFetchFailed is returned when the quote service could not be reached
	// or answered with an error after all retry attempts.
	ErrQuoteFetchFailed = errors.New("quote fetch failed")

	// ErrAllowanceReadFailed is returned when the on-chain allowance read fails.
	ErrAllowanceReadFailed = errors.New("allowance read failed")

	// ErrApprovalRejected is returned when the approval was declined, could not be
	// sent or was mined with a failed status.
	ErrApprovalRejected = errors.New("approval rejected")

	// ErrSwapSubmissionFailed is returned when the swap transaction could not be
	// signed or broadcast.
	ErrSwapSubmissionFailed = errors.New("swap submission failed")

	// ErrReceiptFailed is returned when the swap was mined but reverted, or the
	// receipt could not be obtained.
	ErrReceiptFailed = errors.New("receipt failed")

	// ErrExecutionInProgress is returned when execute is triggered while a
	// previous attempt has not reached a terminal state.
	ErrExecutionInProgress = errors.New("execution in progress")

	// ErrNotExecutable is returned when a precondition for execution is unmet.
	ErrNotExecutable = errors.New("swap not executable")
)

// Error binds an error kind to the underlying cause. Both are visible to errors.Is.
type Error struct {
	Kind error
	Err  error
}

// Wrap attaches kind to err. A nil err yields the bare kind.
func Wrap(kind, err error) error {
	if err == nil {
		return kind
	}
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Err.Error()
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

var kinds = []error{
	ErrInputRejected,
	ErrQuoteFetchFailed,
	ErrAllowanceReadFailed,
	ErrApprovalRejected,
	ErrSwapSubmissionFailed,
	ErrReceiptFailed,
	ErrExecutionInProgress,
	ErrNotExecutable,
}

// KindOf returns the first error kind err carries, or nil.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// UserMessage returns a generic, non-technical sentence for err.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInputRejected):
		return "The amount you entered is not valid."
	case errors.Is(err, ErrQuoteFetchFailed):
		return "Amount of token is unavailable to swap."
	case errors.Is(err, ErrAllowanceReadFailed):
		return "Could not check token approval. Please try again."
	case errors.Is(err, ErrApprovalRejected):
		return "Need to approve first!"
	case errors.Is(err, ErrSwapSubmissionFailed), errors.Is(err, ErrReceiptFailed):
		return "Sorry. Something went wrong, please try again."
	case errors.Is(err, ErrExecutionInProgress):
		return "A swap is already in progress."
	case errors.Is(err, ErrNotExecutable):
		return "Swap is not available yet."
	default:
		return "Sorry. Something went wrong, please try again."
	}
}
