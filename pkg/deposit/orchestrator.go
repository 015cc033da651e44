// Package deposit builds, signs and submits the two-operation transaction
// that trusts a liquidity pool's share asset and deposits into the pool, and
// reports a structured terminal outcome for every invocation.
package deposit

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/defistate/stellar-pool-client-go/pkg/chains"
	"github.com/defistate/stellar-pool-client-go/pkg/ledger"
	"github.com/defistate/stellar-pool-client-go/pkg/txn"
	"github.com/defistate/stellar-pool-client-go/protocols/liquiditypool"
	"github.com/google/uuid"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
)

const (
	DefaultTxTimeout    = 30 * time.Second
	DefaultPollInterval = time.Second
	DefaultConfirmGrace = 10 * time.Second
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Credentials are supplied per invocation and never retained.
type Credentials struct {
	// Secret is the S... seed that signs the transaction.
	Secret string
	// Account is the G... account the transaction is built for.
	Account string
}

// String omits the secret.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Account: %s}", c.Account)
}

// Config holds the configuration for the orchestrator.
type Config struct {
	Ledger  ledger.Ledger
	Network chains.Network
	Logger  Logger
	// Metrics is optional.
	Metrics *Metrics

	// BaseFee is the fee per operation in stroops. Zero means txn.BaseFee.
	BaseFee uint32
	// TxTimeout is how long a signed transaction stays valid. Zero means 30s.
	TxTimeout time.Duration
	// PollInterval is the delay between confirmation lookups. Zero means 1s.
	PollInterval time.Duration
	// ConfirmGrace is how long to keep polling after the transaction's
	// validity window closes. Zero means 10s.
	ConfirmGrace time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.Ledger == nil {
		return errors.New("config: Ledger is required")
	}
	if c.Network.Passphrase == "" {
		return errors.New("config: Network.Passphrase is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.BaseFee != 0 && c.BaseFee < txn.BaseFee {
		return fmt.Errorf("config: BaseFee must be at least %d", txn.BaseFee)
	}
	if c.TxTimeout < 0 || c.PollInterval < 0 || c.ConfirmGrace < 0 {
		return errors.New("config: durations must not be negative")
	}
	return nil
}

// Orchestrator runs deposit invocations. It holds no per-invocation state and
// is safe for concurrent use, but concurrent invocations for one account race
// for the same sequence number; callers must serialize them per account.
type Orchestrator struct {
	ledger       ledger.Ledger
	network      chains.Network
	logger       Logger
	metrics      *Metrics
	baseFee      uint32
	txTimeout    time.Duration
	pollInterval time.Duration
	confirmGrace time.Duration
	now          func() time.Time
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	o := &Orchestrator{
		ledger:       cfg.Ledger,
		network:      cfg.Network,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		baseFee:      cfg.BaseFee,
		txTimeout:    cfg.TxTimeout,
		pollInterval: cfg.PollInterval,
		confirmGrace: cfg.ConfirmGrace,
		now:          cfg.Clock,
	}
	if o.baseFee == 0 {
		o.baseFee = txn.BaseFee
	}
	if o.txTimeout == 0 {
		o.txTimeout = DefaultTxTimeout
	}
	if o.pollInterval == 0 {
		o.pollInterval = DefaultPollInterval
	}
	if o.confirmGrace == 0 {
		o.confirmGrace = DefaultConfirmGrace
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// SignedTransaction is the output of Prepare. It can be submitted once, or
// again after the endpoint answered TRY_AGAIN_LATER.
type SignedTransaction struct {
	InvocationID string
	Account      string
	Sequence     int64
	PoolID       liquiditypool.PoolID
	// Hash is the hex transaction hash, known before submission.
	Hash        string
	EnvelopeXDR string
	// ValidUntil is the transaction's max time. The network will not apply
	// it afterwards.
	ValidUntil time.Time

	state atomic.Int32
}

// State returns where the transaction is in its lifecycle.
func (st *SignedTransaction) State() State {
	return State(st.state.Load())
}

// Confirmation is the result of a successful invocation.
type Confirmation struct {
	InvocationID string
	TxHash       string
	Ledger       uint32
	// ExplorerURL is empty if the network has no explorer configured.
	ExplorerURL string
	PoolID      liquiditypool.PoolID
	Sequence    int64
	FeeCharged  int64
}

// Execute runs a full invocation: fetch, build, sign, submit, confirm. The
// error, if any, is always a *Error.
func (o *Orchestrator) Execute(ctx context.Context, creds Credentials, intent DepositIntent) (*Confirmation, error) {
	st, err := o.Prepare(ctx, creds, intent)
	if err != nil {
		return nil, err
	}
	return o.Submit(ctx, st)
}

// Prepare fetches the account's sequence number and returns the signed
// transaction. Nothing is sent to the network besides the account lookup, so
// the caller may abandon the result freely.
func (o *Orchestrator) Prepare(ctx context.Context, creds Credentials, intent DepositIntent) (*SignedTransaction, error) {
	id := uuid.NewString()

	if err := intent.Validate(); err != nil {
		return nil, o.fail(id, asError(err))
	}
	if !strkey.IsValidEd25519PublicKey(creds.Account) {
		return nil, o.fail(id, invalid(fmt.Errorf("account %q is not a valid account address", creds.Account)))
	}

	o.logger.Info("Preparing deposit",
		"invocation_id", id,
		"account", creds.Account,
		"pool_id", intent.Pool.ID,
		"max_amount_a", intent.MaxAmountA,
		"max_amount_b", intent.MaxAmountB,
		"min_price", intent.MinPrice,
		"max_price", intent.MaxPrice,
	)

	start := time.Now()
	acct, err := o.ledger.Account(ctx, creds.Account)
	o.metrics.observeStage(stageFetch, start)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return nil, o.fail(id, newError(KindAccountNotFound, StateBuilding, err))
		}
		return nil, o.fail(id, newError(KindNetworkUnreachable, StateBuilding, err))
	}

	validUntil := time.Unix(o.now().Add(o.txTimeout).Unix(), 0)
	tx := &txn.Transaction{
		Source:     creds.Account,
		Sequence:   acct.Sequence + 1,
		TimeBounds: &txn.TimeBounds{MaxTime: uint64(validUntil.Unix())},
		Operations: []txn.Operation{
			txn.ChangeTrustPoolShare{Params: intent.Pool.Params, Limit: txn.MaxTrustLimit},
			txn.LiquidityPoolDeposit{
				PoolID:     intent.Pool.ID,
				MaxAmountA: intent.MaxAmountA,
				MaxAmountB: intent.MaxAmountB,
				MinPrice:   intent.MinPrice,
				MaxPrice:   intent.MaxPrice,
			},
		},
	}
	fee := tx.MinFee(o.baseFee)
	if fee > math.MaxUint32 {
		return nil, o.fail(id, invalid(fmt.Errorf("base fee %d overflows the fee for %d operations", o.baseFee, len(tx.Operations))))
	}
	tx.Fee = uint32(fee)
	if err := tx.Validate(); err != nil {
		return nil, o.fail(id, invalid(err))
	}

	start = time.Now()
	st, sigErr := o.sign(id, creds, tx)
	o.metrics.observeStage(stageSign, start)
	if sigErr != nil {
		return nil, o.fail(id, sigErr)
	}
	st.PoolID = intent.Pool.ID
	st.ValidUntil = validUntil

	o.logger.Info("Transaction signed",
		"invocation_id", id,
		"hash", st.Hash,
		"sequence", st.Sequence,
		"valid_until", validUntil,
		"state", st.State(),
	)
	return st, nil
}

// sign signs tx once and checks the result locally, so that a bad key or a
// key for the wrong account never reaches the network.
func (o *Orchestrator) sign(id string, creds Credentials, tx *txn.Transaction) (*SignedTransaction, *Error) {
	kp, err := keypair.ParseFull(creds.Secret)
	if err != nil {
		return nil, newError(KindSigningFailure, StateBuilding, err)
	}
	if kp.Address() != creds.Account {
		return nil, newError(KindSigningFailure, StateBuilding,
			fmt.Errorf("secret belongs to %s, not %s", kp.Address(), creds.Account))
	}

	env, err := tx.Sign(o.network.Passphrase, kp)
	if err != nil {
		return nil, newError(KindSigningFailure, StateBuilding, err)
	}
	if err := env.VerifySignatures(o.network.Passphrase); err != nil {
		return nil, newError(KindSigningFailure, StateBuilding, err)
	}
	b64, err := env.EncodeBase64()
	if err != nil {
		return nil, newError(KindInvalidParameters, StateBuilding, err)
	}
	hash, err := tx.Hash(o.network.Passphrase)
	if err != nil {
		return nil, newError(KindInvalidParameters, StateBuilding, err)
	}

	st := &SignedTransaction{
		InvocationID: id,
		Account:      creds.Account,
		Sequence:     tx.Sequence,
		Hash:         hex.EncodeToString(hash[:]),
		EnvelopeXDR:  b64,
	}
	st.state.Store(int32(StateSigned))
	return st, nil
}

// Submit sends a prepared transaction and waits for its outcome. Once the
// transaction is sent, cancellation of ctx is ignored: the submission cannot
// be revoked, so Submit keeps polling until the transaction confirms, fails,
// or its validity window plus the grace period has passed.
func (o *Orchestrator) Submit(ctx context.Context, st *SignedTransaction) (*Confirmation, error) {
	if st == nil {
		return nil, o.fail("", invalid(errors.New("nil transaction")))
	}
	if err := ctx.Err(); err != nil {
		e := newError(KindNetworkUnreachable, StateSigned, fmt.Errorf("abandoned before submission: %w", err))
		e.TxHash = st.Hash
		return nil, o.fail(st.InvocationID, e)
	}
	if !st.state.CompareAndSwap(int32(StateSigned), int32(StateSubmitted)) {
		e := invalid(fmt.Errorf("transaction is %s, not signed", st.State()))
		e.TxHash = st.Hash
		return nil, o.fail(st.InvocationID, e)
	}

	ctx = context.WithoutCancel(ctx)
	o.logger.Info("Submitting transaction", "invocation_id", st.InvocationID, "hash", st.Hash, "state", st.State())

	start := time.Now()
	res, err := o.ledger.SendTransaction(ctx, st.EnvelopeXDR)
	o.metrics.observeStage(stageSubmit, start)
	if err != nil {
		if errors.Is(err, ledger.ErrRequestRejected) {
			return nil, o.reject(st, TxLevel, txn.TxMalformed.String(), err)
		}
		return nil, o.failSubmitted(st, KindNetworkUnreachable, err)
	}
	if res.Hash != "" && res.Hash != st.Hash {
		o.logger.Warn("Endpoint reported a different transaction hash", "invocation_id", st.InvocationID, "hash", st.Hash, "reported_hash", res.Hash)
	}

	switch res.Status {
	case ledger.SendPending, ledger.SendDuplicate:
		return o.confirm(ctx, st)
	case ledger.SendError:
		return nil, o.rejectWithResult(st, res.ErrorResultXDR)
	case ledger.SendTryAgainLater:
		// Not accepted, so the same envelope may be submitted again.
		st.state.Store(int32(StateSigned))
		return nil, o.failSubmitted(st, KindNetworkUnreachable, errors.New("endpoint asked to try again later"))
	default:
		return nil, o.failSubmitted(st, KindNetworkUnreachable, fmt.Errorf("unexpected submission status %q", res.Status))
	}
}

func (o *Orchestrator) confirm(ctx context.Context, st *SignedTransaction) (*Confirmation, error) {
	start := time.Now()
	defer o.metrics.observeStage(stageConfirm, start)

	giveUp := st.ValidUntil.Add(o.confirmGrace)
	for {
		info, err := o.ledger.GetTransaction(ctx, st.Hash)
		switch {
		case err != nil:
			o.logger.Warn("Transaction lookup failed", "invocation_id", st.InvocationID, "hash", st.Hash, "error", err)
		case info.Status == ledger.TxSuccess:
			return o.confirmed(st, info), nil
		case info.Status == ledger.TxFailed:
			return nil, o.rejectWithResult(st, info.ResultXDR)
		}

		if o.now().After(giveUp) {
			st.state.Store(int32(StateTimedOut))
			e := newError(KindTimedOut, StateTimedOut, fmt.Errorf("no outcome by %s", giveUp.UTC().Format(time.RFC3339)))
			e.TxHash = st.Hash
			return nil, o.fail(st.InvocationID, e)
		}
		time.Sleep(o.pollInterval)
	}
}

func (o *Orchestrator) confirmed(st *SignedTransaction, info *ledger.TransactionInfo) *Confirmation {
	st.state.Store(int32(StateConfirmed))
	c := &Confirmation{
		InvocationID: st.InvocationID,
		TxHash:       st.Hash,
		Ledger:       info.Ledger,
		ExplorerURL:  o.network.TxURL(st.Hash),
		PoolID:       st.PoolID,
		Sequence:     st.Sequence,
	}
	if res, err := txn.DecodeResult(info.ResultXDR); err == nil {
		c.FeeCharged = res.FeeCharged
	} else {
		o.logger.Warn("Could not decode transaction result", "invocation_id", st.InvocationID, "hash", st.Hash, "error", err)
	}

	o.metrics.recordOutcome(outcomeConfirmed)
	o.logger.Info("Deposit confirmed",
		"invocation_id", st.InvocationID,
		"hash", st.Hash,
		"ledger", c.Ledger,
		"explorer_url", c.ExplorerURL,
		"state", st.State(),
	)
	return c
}

func (o *Orchestrator) rejectWithResult(st *SignedTransaction, resultXDR string) *Error {
	res, err := txn.DecodeResult(resultXDR)
	if err != nil {
		return o.reject(st, TxLevel, "unknown", err)
	}
	idx, reason, failed := res.FirstFailure()
	if !failed {
		return o.reject(st, TxLevel, "unknown", errors.New("network reported failure with a successful result"))
	}
	return o.reject(st, idx, reason, nil)
}

func (o *Orchestrator) reject(st *SignedTransaction, index int, reason string, err error) *Error {
	st.state.Store(int32(StateRejected))
	return o.fail(st.InvocationID, &Error{
		Kind:           KindOperationRejected,
		State:          StateRejected,
		OperationIndex: index,
		ReasonCode:     reason,
		TxHash:         st.Hash,
		Err:            err,
	})
}

// failSubmitted reports a failure after the transaction was handed to the
// endpoint but before the network accepted it for evaluation.
func (o *Orchestrator) failSubmitted(st *SignedTransaction, kind Kind, err error) *Error {
	e := newError(kind, st.State(), err)
	e.TxHash = st.Hash
	return o.fail(st.InvocationID, e)
}

func (o *Orchestrator) fail(id string, e *Error) *Error {
	o.metrics.recordOutcome(e.Kind.String())
	o.logger.Warn("Deposit failed",
		"invocation_id", id,
		"kind", e.Kind,
		"state", e.State,
		"operation_index", e.OperationIndex,
		"reason", e.ReasonCode,
		"tx_hash", e.TxHash,
		"advice", e.Advice(),
		"error", e.Err,
	)
	return e
}

func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return invalid(err)
}
