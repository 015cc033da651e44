package mock

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/defistate/stellar-pool-client-go/pkg/amount"
	"github.com/defistate/stellar-pool-client-go/pkg/ledger"
	"github.com/defistate/stellar-pool-client-go/pkg/txn"
	"github.com/defistate/stellar-pool-client-go/protocols/asset"
	"github.com/defistate/stellar-pool-client-go/protocols/liquiditypool"
)

const (
	// BaseReserve is the per-entry minimum balance, in stroops.
	BaseReserve int64 = 5_000_000

	// A pool share trust line counts as two subentries.
	poolShareSubentries = 2
)

type account struct {
	id         string
	sequence   int64
	balance    int64
	subentries int
	// credit balances by asset string; presence means a trust line exists
	assets map[string]int64
	// pool share balances by pool; presence means a trust line exists
	shares map[liquiditypool.PoolID]int64
}

func (a *account) clone() *account {
	c := *a
	c.assets = make(map[string]int64, len(a.assets))
	for k, v := range a.assets {
		c.assets[k] = v
	}
	c.shares = make(map[liquiditypool.PoolID]int64, len(a.shares))
	for k, v := range a.shares {
		c.shares[k] = v
	}
	return &c
}

func (a *account) minBalance() int64 {
	return int64(2+a.subentries) * BaseReserve
}

// trusts reports whether the account can hold x. Issuers hold their own
// assets without a trust line.
func (a *account) trusts(x asset.Asset) bool {
	if x.IsNative() || x.Issuer() == a.id {
		return true
	}
	_, ok := a.assets[x.String()]
	return ok
}

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type pool struct {
	params      liquiditypool.Params
	reserveA    int64
	reserveB    int64
	totalShares int64
}

// Ledger implements ledger.Ledger in memory. It applies change-trust and
// pool-deposit operations with the network's validation rules closely enough
// to exercise every outcome a deposit can have.
type Ledger struct {
	mu         sync.Mutex
	passphrase string
	now        func() time.Time
	logger     Logger
	baseFee    uint32

	accounts map[string]*account
	pools    map[liquiditypool.PoolID]*pool
	txs      map[string]ledger.TransactionInfo

	ledgerSeq   uint32
	hold        bool
	failNext    int
	submissions int
}

var _ ledger.Ledger = (*Ledger)(nil)

// NewLedger creates an empty ledger for the given network passphrase. It logs
// nothing until SetLogger is called.
func NewLedger(passphrase string) *Ledger {
	return &Ledger{
		passphrase: passphrase,
		now:        time.Now,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		baseFee:    txn.BaseFee,
		accounts:   make(map[string]*account),
		pools:      make(map[liquiditypool.PoolID]*pool),
		txs:        make(map[string]ledger.TransactionInfo),
		ledgerSeq:  1,
	}
}

// SetClock replaces the clock used for time-bound checks.
func (m *Ledger) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetLogger replaces the ledger's logger.
func (m *Ledger) SetLogger(l Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = l
}

// SetBaseFee sets the per-operation fee, in stroops, that transactions must
// offer and that is charged when they apply.
func (m *Ledger) SetBaseFee(fee uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseFee = fee
}

// FundAccount creates or resets an account with a native balance and
// sequence number.
func (m *Ledger) FundAccount(id string, balance, sequence int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[id] = &account{
		id:       id,
		sequence: sequence,
		balance:  balance,
		assets:   make(map[string]int64),
		shares:   make(map[liquiditypool.PoolID]int64),
	}
	m.logger.Debug("[MockLedger] Funded account", "account", id, "balance", balance, "sequence", sequence)
}

// FundAsset gives an existing account a trust line to a and sets its
// balance. It panics if the account does not exist.
func (m *Ledger) FundAsset(id string, a asset.Asset, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[id]
	if !ok {
		panic(fmt.Sprintf("mock: account %s does not exist", id))
	}
	if _, had := acct.assets[a.String()]; !had {
		acct.subentries++
	}
	acct.assets[a.String()] = balance
}

// SetPool sets the reserves of a pool, creating it if needed. Non-zero
// reserves get a share supply of sqrt(reserveA*reserveB).
func (m *Ledger) SetPool(params liquiditypool.Params, reserveA, reserveB int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[params.ID()] = &pool{
		params:      params,
		reserveA:    reserveA,
		reserveB:    reserveB,
		totalShares: isqrtProduct(reserveA, reserveB),
	}
}

// PoolReserves returns a pool's reserves and share supply.
func (m *Ledger) PoolReserves(id liquiditypool.PoolID) (reserveA, reserveB, totalShares int64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[id]
	if !ok {
		return 0, 0, 0, false
	}
	return p.reserveA, p.reserveB, p.totalShares, true
}

// PoolShares returns the account's pool share balance and whether it holds
// a trust line to the pool.
func (m *Ledger) PoolShares(accountID string, id liquiditypool.PoolID) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[accountID]
	if !ok {
		return 0, false
	}
	shares, ok := acct.shares[id]
	return shares, ok
}

// Balance returns the account's balance of a.
func (m *Ledger) Balance(accountID string, a asset.Asset) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[accountID]
	if !ok {
		return 0
	}
	if a.IsNative() {
		return acct.balance
	}
	return acct.assets[a.String()]
}

// HoldTransactions makes accepted transactions invisible to GetTransaction
// until released, as if they never made it into a ledger.
func (m *Ledger) HoldTransactions(hold bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hold = hold
}

// FailNext makes the next n calls fail with ledger.ErrUnreachable.
func (m *Ledger) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// Submissions reports how many SendTransaction calls reached the ledger.
func (m *Ledger) Submissions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submissions
}

func (m *Ledger) injectFailure(ctx context.Context, method string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ledger.ErrUnreachable, method, err)
	}
	if m.failNext > 0 {
		m.failNext--
		return fmt.Errorf("%w: %s: injected failure", ledger.ErrUnreachable, method)
	}
	return nil
}

// Account implements ledger.Ledger.
func (m *Ledger) Account(ctx context.Context, accountID string) (*ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injectFailure(ctx, "account"); err != nil {
		return nil, err
	}
	acct, ok := m.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, accountID)
	}
	return &ledger.Account{ID: accountID, Sequence: acct.sequence, Balance: acct.balance}, nil
}

// SendTransaction implements ledger.Ledger. Transactions that pass
// validation are applied immediately and reported PENDING.
func (m *Ledger) SendTransaction(ctx context.Context, envelopeXDR string) (*ledger.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injectFailure(ctx, "sendTransaction"); err != nil {
		return nil, err
	}
	m.submissions++

	env, err := txn.DecodeEnvelope(envelopeXDR)
	if err != nil {
		return nil, fmt.Errorf("%w: sendTransaction: %v", ledger.ErrRequestRejected, err)
	}
	hash, err := env.Tx.Hash(m.passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: sendTransaction: %v", ledger.ErrRequestRejected, err)
	}
	hashHex := hex.EncodeToString(hash[:])

	if _, seen := m.txs[hashHex]; seen {
		return &ledger.SendResult{Status: ledger.SendDuplicate, Hash: hashHex, LatestLedger: m.ledgerSeq}, nil
	}

	if code := m.precheck(env); code != txn.TxSuccess {
		m.logger.Debug("[MockLedger] Rejected transaction", "hash", hashHex, "code", code)
		res := &txn.Result{Code: code}
		b64, err := res.EncodeBase64()
		if err != nil {
			return nil, err
		}
		return &ledger.SendResult{Status: ledger.SendError, Hash: hashHex, LatestLedger: m.ledgerSeq, ErrorResultXDR: b64}, nil
	}

	res := m.apply(env)
	b64, err := res.EncodeBase64()
	if err != nil {
		return nil, err
	}
	m.ledgerSeq++
	status := ledger.TxSuccess
	if !res.Successful() {
		status = ledger.TxFailed
	}
	m.txs[hashHex] = ledger.TransactionInfo{
		Status:    status,
		Ledger:    m.ledgerSeq,
		ResultXDR: b64,
	}
	m.logger.Debug("[MockLedger] Applied transaction", "hash", hashHex, "status", status, "ledger", m.ledgerSeq)
	return &ledger.SendResult{Status: ledger.SendPending, Hash: hashHex, LatestLedger: m.ledgerSeq}, nil
}

// GetTransaction implements ledger.Ledger.
func (m *Ledger) GetTransaction(ctx context.Context, hash string) (*ledger.TransactionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injectFailure(ctx, "getTransaction"); err != nil {
		return nil, err
	}
	info, ok := m.txs[hash]
	if !ok || m.hold {
		return &ledger.TransactionInfo{Status: ledger.TxNotFound, LatestLedger: m.ledgerSeq}, nil
	}
	info.LatestLedger = m.ledgerSeq
	return &info, nil
}

// precheck performs the transaction-level checks that reject a transaction
// without consuming its sequence number.
func (m *Ledger) precheck(env *txn.Envelope) txn.TxCode {
	tx := &env.Tx
	if err := tx.Validate(); err != nil {
		return txn.TxMalformed
	}
	if uint64(tx.Fee) < tx.MinFee(m.baseFee) {
		return txn.TxInsufficientFee
	}
	acct, ok := m.accounts[tx.Source]
	if !ok {
		return txn.TxNoAccount
	}
	if tx.Sequence != acct.sequence+1 {
		return txn.TxBadSeq
	}
	if tb := tx.TimeBounds; tb != nil {
		now := uint64(m.now().Unix())
		if now < tb.MinTime {
			return txn.TxTooEarly
		}
		if tb.MaxTime != 0 && now > tb.MaxTime {
			return txn.TxTooLate
		}
	}
	if err := env.VerifySignatures(m.passphrase); err != nil {
		return txn.TxBadAuth
	}
	if acct.balance < int64(tx.MinFee(m.baseFee)) {
		return txn.TxInsufficientBalance
	}
	return txn.TxSuccess
}

// apply consumes the sequence number, charges the fee and runs the
// operations against a scratch copy of state. The copy is committed only if
// every operation succeeds.
func (m *Ledger) apply(env *txn.Envelope) *txn.Result {
	tx := &env.Tx
	acct := m.accounts[tx.Source]
	fee := int64(tx.MinFee(m.baseFee))
	acct.sequence = tx.Sequence
	acct.balance -= fee

	scratch := acct.clone()
	scratchPools := make(map[liquiditypool.PoolID]*pool)
	lookupPool := func(id liquiditypool.PoolID) *pool {
		if p, ok := scratchPools[id]; ok {
			return p
		}
		if p, ok := m.pools[id]; ok {
			c := *p
			scratchPools[id] = &c
			return &c
		}
		return nil
	}

	res := &txn.Result{FeeCharged: fee, Code: txn.TxSuccess}
	for _, op := range tx.Operations {
		var code int32
		switch op := op.(type) {
		case txn.ChangeTrustPoolShare:
			code = changeTrust(scratch, op, lookupPool, scratchPools)
		case txn.LiquidityPoolDeposit:
			code = deposit(scratch, op, lookupPool)
		}
		res.Operations = append(res.Operations, txn.OpResult{Code: txn.OpInner, Type: op.Type(), ResultCode: code})
		if code != 0 {
			res.Code = txn.TxFailed
		}
	}

	if res.Successful() {
		m.accounts[tx.Source] = scratch
		for id, p := range scratchPools {
			m.pools[id] = p
		}
	}
	return res
}

func changeTrust(acct *account, op txn.ChangeTrustPoolShare, lookupPool func(liquiditypool.PoolID) *pool, created map[liquiditypool.PoolID]*pool) int32 {
	if op.Limit <= 0 {
		return txn.ChangeTrustMalformed
	}
	for _, a := range []asset.Asset{op.Params.AssetA, op.Params.AssetB} {
		if !acct.trusts(a) {
			return txn.ChangeTrustLineMissing
		}
	}

	id := op.Params.ID()
	if _, ok := acct.shares[id]; ok {
		return txn.ChangeTrustSuccess
	}
	acct.subentries += poolShareSubentries
	if acct.balance < acct.minBalance() {
		acct.subentries -= poolShareSubentries
		return txn.ChangeTrustLowReserve
	}
	acct.shares[id] = 0
	if lookupPool(id) == nil {
		created[id] = &pool{params: op.Params}
	}
	return txn.ChangeTrustSuccess
}

func deposit(acct *account, op txn.LiquidityPoolDeposit, lookupPool func(liquiditypool.PoolID) *pool) int32 {
	if op.MaxAmountA <= 0 || op.MaxAmountB <= 0 ||
		op.MinPrice.Validate() != nil || op.MaxPrice.Validate() != nil ||
		op.MinPrice.Cmp(op.MaxPrice) > 0 {
		return txn.DepositMalformed
	}
	if _, ok := acct.shares[op.PoolID]; !ok {
		return txn.DepositNoTrust
	}
	p := lookupPool(op.PoolID)
	if p == nil {
		return txn.DepositNoTrust
	}
	for _, a := range []asset.Asset{p.params.AssetA, p.params.AssetB} {
		if !acct.trusts(a) {
			return txn.DepositNoTrust
		}
	}

	var depA, depB, shares int64
	if p.totalShares == 0 {
		if !priceWithin(op.MaxAmountA, op.MaxAmountB, op.MinPrice, op.MaxPrice) {
			return txn.DepositBadPrice
		}
		depA, depB = op.MaxAmountA, op.MaxAmountB
		shares = isqrtProduct(depA, depB)
	} else {
		if !priceWithin(p.reserveA, p.reserveB, op.MinPrice, op.MaxPrice) {
			return txn.DepositBadPrice
		}
		depA, depB, shares = proportionalDeposit(p, op.MaxAmountA, op.MaxAmountB)
	}

	if available(acct, p.params.AssetA) < depA || available(acct, p.params.AssetB) < depB {
		return txn.DepositUnderfunded
	}
	if p.reserveA > math.MaxInt64-depA || p.reserveB > math.MaxInt64-depB || p.totalShares > math.MaxInt64-shares {
		return txn.DepositPoolFull
	}

	debit(acct, p.params.AssetA, depA)
	debit(acct, p.params.AssetB, depB)
	acct.shares[op.PoolID] += shares
	p.reserveA += depA
	p.reserveB += depB
	p.totalShares += shares
	return txn.DepositSuccess
}

// priceWithin reports whether a/b lies in [lo, hi].
func priceWithin(a, b int64, lo, hi amount.Price) bool {
	price := new(big.Rat).SetFrac(big.NewInt(a), big.NewInt(b))
	return price.Cmp(lo.Rat()) >= 0 && price.Cmp(hi.Rat()) <= 0
}

// proportionalDeposit takes as much as possible at the pool's current ratio
// without exceeding either maximum.
func proportionalDeposit(p *pool, maxA, maxB int64) (depA, depB, shares int64) {
	ra, rb, total := big.NewInt(p.reserveA), big.NewInt(p.reserveB), big.NewInt(p.totalShares)

	sharesA := new(big.Int).Div(new(big.Int).Mul(total, big.NewInt(maxA)), ra)
	sharesB := new(big.Int).Div(new(big.Int).Mul(total, big.NewInt(maxB)), rb)
	s := sharesA
	if sharesB.Cmp(sharesA) < 0 {
		s = sharesB
	}
	ceilDiv := func(x, y *big.Int) *big.Int {
		q, r := new(big.Int).QuoRem(x, y, new(big.Int))
		if r.Sign() != 0 {
			q.Add(q, big.NewInt(1))
		}
		return q
	}
	a := ceilDiv(new(big.Int).Mul(s, ra), total)
	b := ceilDiv(new(big.Int).Mul(s, rb), total)
	if a.Int64() > maxA {
		a.SetInt64(maxA)
	}
	if b.Int64() > maxB {
		b.SetInt64(maxB)
	}
	return a.Int64(), b.Int64(), s.Int64()
}

func available(acct *account, a asset.Asset) int64 {
	switch {
	case a.IsNative():
		return acct.balance - acct.minBalance()
	case a.Issuer() == acct.id:
		return math.MaxInt64
	default:
		return acct.assets[a.String()]
	}
}

func debit(acct *account, a asset.Asset, v int64) {
	switch {
	case a.IsNative():
		acct.balance -= v
	case a.Issuer() == acct.id:
		// issuers mint on demand
	default:
		acct.assets[a.String()] -= v
	}
}

func isqrtProduct(a, b int64) int64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	prod := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	return prod.Sqrt(prod).Int64()
}
