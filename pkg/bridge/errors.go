package bridge

import (
	"errors"
	"fmt"

	"dtc-bridge/pkg/types"
)

// ErrorKind classifies a failed send attempt.
type ErrorKind int

const (
	// ErrKindInvalidInput covers unparseable/zero amounts and invalid
	// recipients. Recoverable by editing the input; never persisted.
	ErrKindInvalidInput ErrorKind = iota
	// ErrKindPolicyViolation covers balance- and cap-exceeded amounts.
	// Auto-clears once the amount is corrected.
	ErrKindPolicyViolation
	// ErrKindQuoteFailed is a failed fee quote. Transient; never persisted.
	ErrKindQuoteFailed
	// ErrKindInsufficientNative means the wallet cannot cover fee + buffer.
	// Terminal for the attempt; a new explicit send is required.
	ErrKindInsufficientNative
	// ErrKindOnChainRejected covers approval/deposit/send rejection or
	// revert. Terminal for the attempt and persisted to history.
	ErrKindOnChainRejected
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindInvalidInput:
		return "invalid input"
	case ErrKindPolicyViolation:
		return "policy violation"
	case ErrKindQuoteFailed:
		return "quote failed"
	case ErrKindInsufficientNative:
		return "insufficient native funds"
	case ErrKindOnChainRejected:
		return "on-chain rejection"
	default:
		return "unknown"
	}
}

// Sentinel errors returned when a send is rejected before any state
// progression beyond validation.
var (
	ErrNoSession      = errors.New("wallet not connected")
	ErrWrongNetwork   = errors.New("unsupported network")
	ErrSendInProgress = errors.New("a send is already in progress")
)

// SendError is the typed failure of one send attempt, carrying the
// best-known context at failure time for display and history.
type SendError struct {
	Kind      ErrorKind
	Direction types.Direction
	Amount    string // decimal string as entered, may be empty
	Recipient string // may be empty when unresolved
	Reason    string // short human-readable message
	Cause     error
}

func (e *SendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
	}
	return e.Reason
}

func (e *SendError) Unwrap() error {
	return e.Cause
}

// Short returns the message shown to the user, falling back to a generic
// string when no reason is known.
func (e *SendError) Short() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "unknown"
}
