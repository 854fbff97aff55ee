package orchestrator

// State is a step of one swap execution
type State int

const (
	Idle State = iota
	CheckingAllowance
	NeedsApproval
	Approving
	ApprovalFailed
	Ready
	SigningSwap
	Submitted
	Confirmed
	Failed
)

var stateNames = map[State]string{
	Idle:              "idle",
	CheckingAllowance: "checking-allowance",
	NeedsApproval:     "needs-approval",
	Approving:         "approving",
	ApprovalFailed:    "approval-failed",
	Ready:             "ready",
	SigningSwap:       "signing-swap",
	Submitted:         "submitted",
	Confirmed:         "confirmed",
	Failed:            "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further step follows s
func (s State) Terminal() bool {
	return s == ApprovalFailed || s == Confirmed || s == Failed
}

var transitions = map[State][]State{
	Idle:              {Ready, CheckingAllowance},
	CheckingAllowance: {Ready, NeedsApproval, Failed},
	NeedsApproval:     {Approving},
	Approving:         {Ready, ApprovalFailed},
	Ready:             {SigningSwap},
	SigningSwap:       {Submitted, Failed},
	Submitted:         {Confirmed, Failed},
}

// CanTransition reports whether from -> to is an allowed step
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
