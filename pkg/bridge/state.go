package bridge

// State is the current phase of the bridge state machine. It is recomputed
// from session, input validity, and in-flight work; it is never persisted.
type State int

const (
	StateConnectWallet State = iota
	StateWrongNetwork
	StateReady
	StateFetchingBalance
	StateQuotingFee
	StateNeedApproval
	StateApproving
	StateDepositing
	StateSending
	StateConfirmed
	StateError
)

func (s State) String() string {
	switch s {
	case StateConnectWallet:
		return "CONNECT_WALLET"
	case StateWrongNetwork:
		return "WRONG_NETWORK"
	case StateReady:
		return "READY"
	case StateFetchingBalance:
		return "FETCHING_BALANCE"
	case StateQuotingFee:
		return "QUOTING_FEE"
	case StateNeedApproval:
		return "NEED_APPROVAL"
	case StateApproving:
		return "APPROVING"
	case StateDepositing:
		return "DEPOSITING"
	case StateSending:
		return "SENDING"
	case StateConfirmed:
		return "CONFIRMED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// sendPhase reports whether the state belongs to an in-flight send attempt.
// While a send owns the machine, reactive recomputation must not clobber it.
func (s State) sendPhase() bool {
	switch s {
	case StateNeedApproval, StateApproving, StateDepositing, StateSending:
		return true
	default:
		return false
	}
}
