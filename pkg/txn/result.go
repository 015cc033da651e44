package txn

import (
	"errors"
	"fmt"

	"github.com/stellar/go/xdr"
)

// TxCode is the XDR TransactionResultCode.
type TxCode int32

const (
	TxSuccess             = TxCode(xdr.TransactionResultCodeTxSuccess)
	TxFailed              = TxCode(xdr.TransactionResultCodeTxFailed)
	TxTooEarly            = TxCode(xdr.TransactionResultCodeTxTooEarly)
	TxTooLate             = TxCode(xdr.TransactionResultCodeTxTooLate)
	TxMissingOperation    = TxCode(xdr.TransactionResultCodeTxMissingOperation)
	TxBadSeq              = TxCode(xdr.TransactionResultCodeTxBadSeq)
	TxBadAuth             = TxCode(xdr.TransactionResultCodeTxBadAuth)
	TxInsufficientBalance = TxCode(xdr.TransactionResultCodeTxInsufficientBalance)
	TxNoAccount           = TxCode(xdr.TransactionResultCodeTxNoAccount)
	TxInsufficientFee     = TxCode(xdr.TransactionResultCodeTxInsufficientFee)
	TxBadAuthExtra        = TxCode(xdr.TransactionResultCodeTxBadAuthExtra)
	TxInternalError       = TxCode(xdr.TransactionResultCodeTxInternalError)
	TxNotSupported        = TxCode(xdr.TransactionResultCodeTxNotSupported)
	TxBadSponsorship      = TxCode(xdr.TransactionResultCodeTxBadSponsorship)
	TxBadMinSeqAgeOrGap   = TxCode(xdr.TransactionResultCodeTxBadMinSeqAgeOrGap)
	TxMalformed           = TxCode(xdr.TransactionResultCodeTxMalformed)
	TxSorobanInvalid      = TxCode(xdr.TransactionResultCodeTxSorobanInvalid)

	txFeeBumpInnerSuccess = TxCode(xdr.TransactionResultCodeTxFeeBumpInnerSuccess)
	txFeeBumpInnerFailed  = TxCode(xdr.TransactionResultCodeTxFeeBumpInnerFailed)
)

var txCodeNames = map[TxCode]string{
	TxSuccess:             "tx_success",
	TxFailed:              "tx_failed",
	TxTooEarly:            "tx_too_early",
	TxTooLate:             "tx_too_late",
	TxMissingOperation:    "tx_missing_operation",
	TxBadSeq:              "tx_bad_seq",
	TxBadAuth:             "tx_bad_auth",
	TxInsufficientBalance: "tx_insufficient_balance",
	TxNoAccount:           "tx_no_source_account",
	TxInsufficientFee:     "tx_insufficient_fee",
	TxBadAuthExtra:        "tx_bad_auth_extra",
	TxInternalError:       "tx_internal_error",
	TxNotSupported:        "tx_not_supported",
	txFeeBumpInnerFailed:  "tx_fee_bump_inner_failed",
	TxBadSponsorship:      "tx_bad_sponsorship",
	TxBadMinSeqAgeOrGap:   "tx_bad_min_seq_age_or_gap",
	TxMalformed:           "tx_malformed",
	TxSorobanInvalid:      "tx_soroban_invalid",
}

func (c TxCode) String() string {
	if s, ok := txCodeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("tx_code_%d", int32(c))
}

// Operation-level result codes. OpInner means the operation ran and its
// type-specific code is in OpResult.ResultCode.
const (
	OpInner = int32(xdr.OperationResultCodeOpInner)

	ChangeTrustSuccess     = int32(xdr.ChangeTrustResultCodeChangeTrustSuccess)
	ChangeTrustMalformed   = int32(xdr.ChangeTrustResultCodeChangeTrustMalformed)
	ChangeTrustLowReserve  = int32(xdr.ChangeTrustResultCodeChangeTrustLowReserve)
	ChangeTrustLineMissing = int32(xdr.ChangeTrustResultCodeChangeTrustTrustLineMissing)

	DepositSuccess     = int32(xdr.LiquidityPoolDepositResultCodeLiquidityPoolDepositSuccess)
	DepositMalformed   = int32(xdr.LiquidityPoolDepositResultCodeLiquidityPoolDepositMalformed)
	DepositNoTrust     = int32(xdr.LiquidityPoolDepositResultCodeLiquidityPoolDepositNoTrust)
	DepositUnderfunded = int32(xdr.LiquidityPoolDepositResultCodeLiquidityPoolDepositUnderfunded)
	DepositBadPrice    = int32(xdr.LiquidityPoolDepositResultCodeLiquidityPoolDepositBadPrice)
	DepositPoolFull    = int32(xdr.LiquidityPoolDepositResultCodeLiquidityPoolDepositPoolFull)
)

var opOuterNames = map[int32]string{
	-1: "op_bad_auth",
	-2: "op_no_source_account",
	-3: "op_not_supported",
	-4: "op_too_many_subentries",
	-5: "op_exceeded_work_limit",
	-6: "op_too_many_sponsoring",
}

var opInnerNames = map[OperationType]map[int32]string{
	OpChangeTrust: {
		0:  "op_success",
		-1: "op_malformed",
		-2: "op_no_issuer",
		-3: "op_invalid_limit",
		-4: "op_low_reserve",
		-5: "op_self_not_allowed",
		-6: "op_trust_line_missing",
		-7: "op_cannot_delete",
		-8: "op_not_aut_maintain_liabilities",
	},
	OpLiquidityPoolDeposit: {
		0:  "op_success",
		-1: "op_malformed",
		-2: "op_no_trust",
		-3: "op_not_authorized",
		-4: "op_underfunded",
		-5: "op_line_full",
		-6: "op_bad_price",
		-7: "op_pool_full",
	},
}

// OpResult is the outcome of one operation.
type OpResult struct {
	Code       int32
	Type       OperationType
	ResultCode int32
}

// Success reports whether the operation applied.
func (r OpResult) Success() bool {
	return r.Code == OpInner && r.ResultCode == 0
}

// Reason returns the Horizon-style name of the result, e.g. "op_bad_price".
func (r OpResult) Reason() string {
	if r.Code != OpInner {
		if s, ok := opOuterNames[r.Code]; ok {
			return s
		}
		return fmt.Sprintf("op_code_%d", r.Code)
	}
	if s, ok := opInnerNames[r.Type][r.ResultCode]; ok {
		return s
	}
	return fmt.Sprintf("op_%s_%d", r.Type, r.ResultCode)
}

// Result is a decoded XDR TransactionResult. Operations is only populated
// for TxSuccess and TxFailed.
type Result struct {
	FeeCharged int64
	Code       TxCode
	Operations []OpResult
}

// Successful reports whether the transaction applied.
func (r *Result) Successful() bool {
	return r.Code == TxSuccess
}

// FirstFailure locates the reason a failed transaction failed. For
// operation-level failures it returns the index of the first failing
// operation; for transaction-level failures the index is -1.
func (r *Result) FirstFailure() (index int, reason string, failed bool) {
	if r.Successful() {
		return 0, "", false
	}
	if r.Code == TxFailed {
		for i, op := range r.Operations {
			if !op.Success() {
				return i, op.Reason(), true
			}
		}
	}
	return -1, r.Code.String(), true
}

// ToXDR converts the result to an XDR TransactionResult.
func (r *Result) ToXDR() (xdr.TransactionResult, error) {
	var results []xdr.OperationResult
	switch r.Code {
	case TxSuccess, TxFailed:
		results = make([]xdr.OperationResult, 0, len(r.Operations))
		for i, op := range r.Operations {
			x, err := op.toXDR()
			if err != nil {
				return xdr.TransactionResult{}, fmt.Errorf("operation %d: %w", i, err)
			}
			results = append(results, x)
		}
	case txFeeBumpInnerSuccess, txFeeBumpInnerFailed:
		return xdr.TransactionResult{}, errors.New("fee bump results are not supported")
	}
	res, err := xdr.NewTransactionResultResult(xdr.TransactionResultCode(r.Code), results)
	if err != nil {
		return xdr.TransactionResult{}, err
	}
	return xdr.TransactionResult{FeeCharged: xdr.Int64(r.FeeCharged), Result: res}, nil
}

// EncodeBase64 returns the base64 XDR form of the result.
func (r *Result) EncodeBase64() (string, error) {
	x, err := r.ToXDR()
	if err != nil {
		return "", err
	}
	return xdr.MarshalBase64(x)
}

func (r OpResult) toXDR() (xdr.OperationResult, error) {
	if r.Code != OpInner {
		return xdr.NewOperationResult(xdr.OperationResultCode(r.Code), nil)
	}
	var (
		tr  xdr.OperationResultTr
		err error
	)
	switch r.Type {
	case OpChangeTrust:
		tr, err = xdr.NewOperationResultTr(xdr.OperationTypeChangeTrust,
			xdr.ChangeTrustResult{Code: xdr.ChangeTrustResultCode(r.ResultCode)})
	case OpLiquidityPoolDeposit:
		tr, err = xdr.NewOperationResultTr(xdr.OperationTypeLiquidityPoolDeposit,
			xdr.LiquidityPoolDepositResult{Code: xdr.LiquidityPoolDepositResultCode(r.ResultCode)})
	default:
		err = fmt.Errorf("unsupported operation result type %s", r.Type)
	}
	if err != nil {
		return xdr.OperationResult{}, err
	}
	return xdr.NewOperationResult(xdr.OperationResultCodeOpInner, tr)
}

// DecodeResult parses a base64 XDR TransactionResult.
func DecodeResult(b64 string) (*Result, error) {
	var x xdr.TransactionResult
	if err := xdr.SafeUnmarshalBase64(b64, &x); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}

	r := Result{FeeCharged: int64(x.FeeCharged), Code: TxCode(x.Result.Code)}
	switch r.Code {
	case txFeeBumpInnerSuccess, txFeeBumpInnerFailed:
		return nil, errors.New("decode result: fee bump results are not supported")
	}
	if ops, ok := x.Result.GetResults(); ok {
		for i, op := range ops {
			res, err := opResultFromXDR(op)
			if err != nil {
				return nil, fmt.Errorf("decode result: operation %d: %w", i, err)
			}
			r.Operations = append(r.Operations, res)
		}
	}
	return &r, nil
}

func opResultFromXDR(x xdr.OperationResult) (OpResult, error) {
	r := OpResult{Code: int32(x.Code)}
	tr, ok := x.GetTr()
	if !ok {
		return r, nil
	}
	r.Type = OperationType(tr.Type)
	switch tr.Type {
	case xdr.OperationTypeChangeTrust:
		r.ResultCode = int32(tr.MustChangeTrustResult().Code)
	case xdr.OperationTypeLiquidityPoolDeposit:
		r.ResultCode = int32(tr.MustLiquidityPoolDepositResult().Code)
	default:
		return r, fmt.Errorf("unsupported operation result type %s", tr.Type)
	}
	return r, nil
}
