// Package txn assembles, signs and encodes the two-operation pool deposit
// transaction, and decodes the network's transaction results.
package txn

import (
	"errors"
	"fmt"
	"math"

	"github.com/defistate/stellar-pool-client-go/pkg/amount"
	"github.com/defistate/stellar-pool-client-go/protocols/liquiditypool"
	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"
)

// OperationType is the XDR OperationType discriminant.
type OperationType int32

const (
	OpChangeTrust          = OperationType(xdr.OperationTypeChangeTrust)
	OpLiquidityPoolDeposit = OperationType(xdr.OperationTypeLiquidityPoolDeposit)
)

func (t OperationType) String() string {
	switch t {
	case OpChangeTrust:
		return "change_trust"
	case OpLiquidityPoolDeposit:
		return "liquidity_pool_deposit"
	default:
		return fmt.Sprintf("OperationType(%d)", int32(t))
	}
}

const (
	// BaseFee is the minimum fee per operation, in stroops.
	BaseFee uint32 = 100

	// MaxTrustLimit is the default change-trust limit: the largest amount.
	MaxTrustLimit int64 = math.MaxInt64

	maxOperations = 100
	maxSignatures = 20
)

var ErrMalformed = errors.New("malformed transaction")

// Operation is one of the operation bodies this package can encode.
type Operation interface {
	Type() OperationType
	toXDR() (xdr.OperationBody, error)
}

// ChangeTrustPoolShare establishes (or resizes) the source account's trust
// line to a pool's share asset.
type ChangeTrustPoolShare struct {
	Params liquiditypool.Params
	Limit  int64
}

func (op ChangeTrustPoolShare) Type() OperationType { return OpChangeTrust }

func (op ChangeTrustPoolShare) toXDR() (xdr.OperationBody, error) {
	line, err := xdr.NewChangeTrustAsset(xdr.AssetTypeAssetTypePoolShare, op.Params.ToXDR())
	if err != nil {
		return xdr.OperationBody{}, err
	}
	return xdr.NewOperationBody(xdr.OperationTypeChangeTrust, xdr.ChangeTrustOp{
		Line:  line,
		Limit: xdr.Int64(op.Limit),
	})
}

// LiquidityPoolDeposit deposits up to the max amounts, provided the pool's
// price A/B lies within [MinPrice, MaxPrice] when the operation applies.
type LiquidityPoolDeposit struct {
	PoolID     liquiditypool.PoolID
	MaxAmountA int64
	MaxAmountB int64
	MinPrice   amount.Price
	MaxPrice   amount.Price
}

func (op LiquidityPoolDeposit) Type() OperationType { return OpLiquidityPoolDeposit }

func (op LiquidityPoolDeposit) toXDR() (xdr.OperationBody, error) {
	return xdr.NewOperationBody(xdr.OperationTypeLiquidityPoolDeposit, xdr.LiquidityPoolDepositOp{
		LiquidityPoolId: xdr.PoolId(op.PoolID),
		MaxAmountA:      xdr.Int64(op.MaxAmountA),
		MaxAmountB:      xdr.Int64(op.MaxAmountB),
		MinPrice:        priceToXDR(op.MinPrice),
		MaxPrice:        priceToXDR(op.MaxPrice),
	})
}

func priceToXDR(p amount.Price) xdr.Price {
	return xdr.Price{N: xdr.Int32(p.N), D: xdr.Int32(p.D)}
}

func priceFromXDR(p xdr.Price) amount.Price {
	return amount.Price{N: int32(p.N), D: int32(p.D)}
}

// TimeBounds are inclusive unix-second bounds on when the transaction may
// apply. MaxTime 0 means no upper bound.
type TimeBounds struct {
	MinTime uint64
	MaxTime uint64
}

// Transaction is an unsigned transaction. Operations have no per-operation
// source account; they all act on Source.
type Transaction struct {
	Source     string
	Fee        uint32
	Sequence   int64
	TimeBounds *TimeBounds
	Operations []Operation
}

// Validate performs the structural checks the network's preflight would.
// Fee sufficiency is left to the network, which knows the current base fee.
func (tx *Transaction) Validate() error {
	if len(tx.Operations) == 0 || len(tx.Operations) > maxOperations {
		return fmt.Errorf("%w: %d operations", ErrMalformed, len(tx.Operations))
	}
	if tx.Sequence <= 0 {
		return fmt.Errorf("%w: sequence %d", ErrMalformed, tx.Sequence)
	}
	if tb := tx.TimeBounds; tb != nil && tb.MaxTime != 0 && tb.MaxTime < tb.MinTime {
		return fmt.Errorf("%w: time bounds [%d, %d]", ErrMalformed, tb.MinTime, tb.MaxTime)
	}
	return nil
}

// MinFee is the smallest fee the network accepts for tx at baseFee stroops
// per operation.
func (tx *Transaction) MinFee(baseFee uint32) uint64 {
	return uint64(baseFee) * uint64(len(tx.Operations))
}

// ToXDR validates tx and converts it to the XDR Transaction.
func (tx *Transaction) ToXDR() (xdr.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return xdr.Transaction{}, err
	}
	source, err := xdr.AddressToAccountId(tx.Source)
	if err != nil {
		return xdr.Transaction{}, fmt.Errorf("%w: source account: %v", ErrMalformed, err)
	}

	out := xdr.Transaction{
		SourceAccount: source.ToMuxedAccount(),
		Fee:           xdr.Uint32(tx.Fee),
		SeqNum:        xdr.SequenceNumber(tx.Sequence),
		Cond:          xdr.Preconditions{Type: xdr.PreconditionTypePrecondNone},
		Memo:          xdr.Memo{Type: xdr.MemoTypeMemoNone},
		Operations:    make([]xdr.Operation, 0, len(tx.Operations)),
	}
	if tb := tx.TimeBounds; tb != nil {
		out.Cond = xdr.Preconditions{
			Type: xdr.PreconditionTypePrecondTime,
			TimeBounds: &xdr.TimeBounds{
				MinTime: xdr.TimePoint(tb.MinTime),
				MaxTime: xdr.TimePoint(tb.MaxTime),
			},
		}
	}
	for i, op := range tx.Operations {
		body, err := op.toXDR()
		if err != nil {
			return xdr.Transaction{}, fmt.Errorf("%w: operation %d: %v", ErrMalformed, i, err)
		}
		out.Operations = append(out.Operations, xdr.Operation{Body: body})
	}
	return out, nil
}

// MarshalBinary returns the XDR Transaction bytes.
func (tx *Transaction) MarshalBinary() ([]byte, error) {
	x, err := tx.ToXDR()
	if err != nil {
		return nil, err
	}
	return x.MarshalBinary()
}

// Hash returns the transaction hash on the given network: the digest that is
// signed and that identifies the transaction once submitted.
func (tx *Transaction) Hash(passphrase string) ([32]byte, error) {
	x, err := tx.ToXDR()
	if err != nil {
		return [32]byte{}, err
	}
	return network.HashTransaction(x, passphrase)
}

func transactionFromXDR(x xdr.Transaction) (Transaction, error) {
	if x.SourceAccount.Type != xdr.CryptoKeyTypeKeyTypeEd25519 {
		return Transaction{}, errors.New("muxed source accounts are not supported")
	}
	source, err := x.SourceAccount.GetAddress()
	if err != nil {
		return Transaction{}, err
	}
	tx := Transaction{
		Source:   source,
		Fee:      uint32(x.Fee),
		Sequence: int64(x.SeqNum),
	}
	switch x.Cond.Type {
	case xdr.PreconditionTypePrecondNone:
	case xdr.PreconditionTypePrecondTime:
		tb := x.Cond.MustTimeBounds()
		tx.TimeBounds = &TimeBounds{MinTime: uint64(tb.MinTime), MaxTime: uint64(tb.MaxTime)}
	default:
		return Transaction{}, fmt.Errorf("unsupported precondition type %d", x.Cond.Type)
	}
	if x.Memo.Type != xdr.MemoTypeMemoNone {
		return Transaction{}, fmt.Errorf("unsupported memo type %d", x.Memo.Type)
	}
	if x.Ext.V != 0 {
		return Transaction{}, fmt.Errorf("unsupported transaction ext %d", x.Ext.V)
	}
	for i, op := range x.Operations {
		o, err := operationFromXDR(op)
		if err != nil {
			return Transaction{}, fmt.Errorf("operation %d: %w", i, err)
		}
		tx.Operations = append(tx.Operations, o)
	}
	return tx, nil
}

func operationFromXDR(op xdr.Operation) (Operation, error) {
	if op.SourceAccount != nil {
		return nil, errors.New("operation source accounts are not supported")
	}
	switch op.Body.Type {
	case xdr.OperationTypeChangeTrust:
		ct := op.Body.MustChangeTrustOp()
		lp, ok := ct.Line.GetLiquidityPool()
		if !ok {
			return nil, fmt.Errorf("change_trust on asset type %d is not supported", ct.Line.Type)
		}
		params, err := liquiditypool.ParamsFromXDR(lp)
		if err != nil {
			return nil, err
		}
		return ChangeTrustPoolShare{Params: params, Limit: int64(ct.Limit)}, nil

	case xdr.OperationTypeLiquidityPoolDeposit:
		d := op.Body.MustLiquidityPoolDepositOp()
		return LiquidityPoolDeposit{
			PoolID:     liquiditypool.PoolID(d.LiquidityPoolId),
			MaxAmountA: int64(d.MaxAmountA),
			MaxAmountB: int64(d.MaxAmountB),
			MinPrice:   priceFromXDR(d.MinPrice),
			MaxPrice:   priceFromXDR(d.MaxPrice),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported operation type %s", op.Body.Type)
	}
}
