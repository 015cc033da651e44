package ledger

import (
	"context"
	"errors"
)

// Ledger is the network port the deposit orchestrator depends on. The
// orchestrator talks only to this interface, never to a transport directly.
type Ledger interface {
	// Account returns the current state of an account. It fails with
	// ErrAccountNotFound when the account does not exist (is unfunded).
	Account(ctx context.Context, accountID string) (*Account, error)

	// SendTransaction submits a base64 XDR envelope. A nil error means the
	// endpoint answered; the answer itself may still be a rejection.
	SendTransaction(ctx context.Context, envelopeXDR string) (*SendResult, error)

	// GetTransaction looks up a submitted transaction by hash.
	GetTransaction(ctx context.Context, hash string) (*TransactionInfo, error)
}

var (
	// ErrAccountNotFound means the account does not exist on the network.
	ErrAccountNotFound = errors.New("account not found")

	// ErrUnreachable wraps transport failures: the request may not have
	// reached the network at all.
	ErrUnreachable = errors.New("ledger endpoint unreachable")

	// ErrRequestRejected wraps protocol-level refusals of a request, such as
	// a JSON-RPC error object, as opposed to transport failures.
	ErrRequestRejected = errors.New("ledger endpoint rejected request")
)

// Account is the subset of account state needed to build a transaction.
type Account struct {
	ID       string
	Sequence int64
	Balance  int64
}

// SendStatus is the endpoint's immediate answer to a submission.
type SendStatus string

const (
	SendPending       SendStatus = "PENDING"
	SendDuplicate     SendStatus = "DUPLICATE"
	SendTryAgainLater SendStatus = "TRY_AGAIN_LATER"
	SendError         SendStatus = "ERROR"
)

// SendResult is the answer to SendTransaction. ErrorResultXDR is set for
// SendError and carries the base64 XDR TransactionResult.
type SendResult struct {
	Status         SendStatus
	Hash           string
	LatestLedger   uint32
	ErrorResultXDR string
}

// TxStatus is the lookup status of a submitted transaction.
type TxStatus string

const (
	TxSuccess  TxStatus = "SUCCESS"
	TxFailed   TxStatus = "FAILED"
	TxNotFound TxStatus = "NOT_FOUND"
)

// TransactionInfo is the answer to GetTransaction. ResultXDR is set for
// TxSuccess and TxFailed.
type TransactionInfo struct {
	Status       TxStatus
	Ledger       uint32
	LatestLedger uint32
	ResultXDR    string
}
