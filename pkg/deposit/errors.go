package deposit

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies why an invocation failed.
type Kind int

const (
	KindInvalidParameters Kind = iota + 1
	KindAccountNotFound
	KindSigningFailure
	KindNetworkUnreachable
	KindOperationRejected
	KindTimedOut
)

func (k Kind) String() string {
	switch k {
	case KindInvalidParameters:
		return "invalid_parameters"
	case KindAccountNotFound:
		return "account_not_found"
	case KindSigningFailure:
		return "signing_failure"
	case KindNetworkUnreachable:
		return "network_unreachable"
	case KindOperationRejected:
		return "operation_rejected"
	case KindTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinels for errors.Is. Every *Error matches the sentinel of its Kind.
var (
	ErrInvalidParameters  = errors.New("invalid parameters")
	ErrAccountNotFound    = errors.New("account not found")
	ErrSigningFailure     = errors.New("signing failure")
	ErrNetworkUnreachable = errors.New("network unreachable")
	ErrOperationRejected  = errors.New("operation rejected")
	ErrTimedOut           = errors.New("timed out")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidParameters:
		return ErrInvalidParameters
	case KindAccountNotFound:
		return ErrAccountNotFound
	case KindSigningFailure:
		return ErrSigningFailure
	case KindNetworkUnreachable:
		return ErrNetworkUnreachable
	case KindOperationRejected:
		return ErrOperationRejected
	case KindTimedOut:
		return ErrTimedOut
	default:
		return nil
	}
}

// TxLevel is the OperationIndex of a rejection that applies to the whole
// transaction rather than to one operation (for example tx_bad_seq).
const TxLevel = -1

// Error is the structured failure of an invocation.
type Error struct {
	Kind Kind
	// State is where the invocation stopped.
	State State
	// OperationIndex and ReasonCode are set for KindOperationRejected.
	OperationIndex int
	ReasonCode     string
	// TxHash is set once the transaction has been signed.
	TxHash string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if s := e.Kind.sentinel(); s != nil {
		b.WriteString(s.Error())
	} else {
		b.WriteString(e.Kind.String())
	}
	if e.Kind == KindOperationRejected {
		if e.OperationIndex == TxLevel {
			fmt.Fprintf(&b, ": transaction rejected with %s", e.ReasonCode)
		} else {
			fmt.Fprintf(&b, ": operation %d rejected with %s", e.OperationIndex, e.ReasonCode)
		}
	}
	if e.TxHash != "" {
		fmt.Fprintf(&b, " (tx %s)", e.TxHash)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Advice tells the caller what to do about a failure.
type Advice int

const (
	// AdviceFixInputs: the same request will fail again.
	AdviceFixInputs Advice = iota + 1
	// AdviceRetry: nothing was applied; a fresh invocation may succeed.
	AdviceRetry
	// AdviceRecheck: the outcome is unknown. Look the transaction up by hash
	// before resubmitting.
	AdviceRecheck
)

func (a Advice) String() string {
	switch a {
	case AdviceFixInputs:
		return "fix inputs"
	case AdviceRetry:
		return "retry"
	case AdviceRecheck:
		return "re-check transaction status"
	default:
		return fmt.Sprintf("Advice(%d)", int(a))
	}
}

// retryableTxReasons are transaction-level rejections caused by timing
// rather than by the request's content.
var retryableTxReasons = map[string]bool{
	"tx_bad_seq":          true,
	"tx_too_late":         true,
	"tx_too_early":        true,
	"tx_insufficient_fee": true,
	"tx_internal_error":   true,
}

// Advice classifies the failure for the caller.
func (e *Error) Advice() Advice {
	switch e.Kind {
	case KindNetworkUnreachable:
		// The envelope may have arrived; a fresh invocation could deposit twice.
		if e.State == StateSubmitted {
			return AdviceRecheck
		}
		return AdviceRetry
	case KindTimedOut:
		return AdviceRecheck
	case KindOperationRejected:
		if e.OperationIndex == TxLevel && retryableTxReasons[e.ReasonCode] {
			return AdviceRetry
		}
		return AdviceFixInputs
	default:
		return AdviceFixInputs
	}
}

func newError(kind Kind, state State, err error) *Error {
	return &Error{Kind: kind, State: state, OperationIndex: TxLevel, Err: err}
}
