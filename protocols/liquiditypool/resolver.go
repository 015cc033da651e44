package liquiditypool

import (
	"crypto/sha256"
	"errors"
	"fmt"

		"github.com/defistate/stellar-pool-client-go/protocols/asset"
	"github.com/stellar/go/xdr"
)

// ErrInvalidParameters is wrapped by every resolver failure.
var ErrInvalidParameters = errors.New("invalid pool parameters")

// PoolType is the XDR LiquidityPoolType discriminant.
type PoolType int32

const (
	ConstantProduct PoolType = 0
)

func (t PoolType) String() string {
	if t == ConstantProduct {
		return "constant_product"
	}
	return fmt.Sprintf("PoolType(%d)", int32(t))
}

// ParsePoolType accepts the names used by the network's SDKs.
func ParsePoolType(s string) (PoolType, error) {
	if s == "constant_product" {
		return ConstantProduct, nil
	}
	return 0, fmt.Errorf("%w: unsupported pool type %q", ErrInvalidParameters, s)
}

const (
	// DefaultFeeBasisPoints is the only fee the network currently accepts for
	// constant-product pools.
	DefaultFeeBasisPoints int32 = 30
	maxFeeBasisPoints     int32 = 10000
)

// Params are pool parameters in canonical order. Values of this type are only
// produced by NewPool, so AssetA always sorts strictly before AssetB.
type Params struct {
	AssetA asset.Asset
	AssetB asset.Asset
	Type   PoolType
	Fee    int32
}

// ToXDR returns the XDR LiquidityPoolParameters union.
func (p Params) ToXDR() xdr.LiquidityPoolParameters {
	return xdr.LiquidityPoolParameters{
		Type: xdr.LiquidityPoolType(p.Type),
		ConstantProduct: &xdr.LiquidityPoolConstantProductParameters{
			AssetA: p.AssetA.ToXDR(),
			AssetB: p.AssetB.ToXDR(),
			Fee:    xdr.Int32(p.Fee),
		},
	}
}

// ParamsFromXDR converts XDR pool parameters and re-checks the canonical
// ordering.
func ParamsFromXDR(x xdr.LiquidityPoolParameters) (Params, error) {
	cp, ok := x.GetConstantProduct()
	if !ok {
		return Params{}, fmt.Errorf("%w: unsupported pool type %d", ErrInvalidParameters, x.Type)
	}
	a, err := asset.FromXDR(cp.AssetA)
	if err != nil {
		return Params{}, err
	}
	b, err := asset.FromXDR(cp.AssetB)
	if err != nil {
		return Params{}, err
	}
	if err := validate(a, b, PoolType(x.Type), int32(cp.Fee)); err != nil {
		return Params{}, err
	}
	if a.Compare(b) > 0 {
		return Params{}, fmt.Errorf("%w: assets out of canonical order", ErrInvalidParameters)
	}
	return Params{AssetA: a, AssetB: b, Type: PoolType(x.Type), Fee: int32(cp.Fee)}, nil
}

// ID derives the pool ID: SHA-256 over the XDR parameters. xdr.NewPoolId is
// not used because it orders issuers by their strkey text rather than their
// raw key bytes.
func (p Params) ID() PoolID {
	b, err := p.ToXDR().MarshalBinary()
	if err != nil {
		panic(fmt.Sprintf("liquiditypool: encode %v: %v", p, err))
	}
	return PoolID(sha256.Sum256(b))
}

// Pool is a resolved pool: canonical parameters, their ID, and whether the
// caller's asset pair had to be swapped to reach canonical order.
type Pool struct {
	Params    Params
	ID        PoolID
	Reordered bool
}

// NewPool validates the inputs, puts the pair in canonical order and derives
// the pool ID.
func NewPool(assetA, assetB asset.Asset, poolType PoolType, feeBasisPoints int32) (Pool, error) {
	if err := validate(assetA, assetB, poolType, feeBasisPoints); err != nil {
		return Pool{}, err
	}

	reordered := assetA.Compare(assetB) > 0
	if reordered {
		assetA, assetB = assetB, assetA
	}

	params := Params{AssetA: assetA, AssetB: assetB, Type: poolType, Fee: feeBasisPoints}
	return Pool{
		Params:    params,
		ID:        params.ID(),
		Reordered: reordered,
	}, nil
}

// Resolve returns the canonical pool ID for the pair. The result does not
// depend on the order in which the assets are given.
func Resolve(assetA, assetB asset.Asset, poolType PoolType, feeBasisPoints int32) (PoolID, error) {
	pool, err := NewPool(assetA, assetB, poolType, feeBasisPoints)
	if err != nil {
		return PoolID{}, err
	}
	return pool.ID, nil
}

func validate(assetA, assetB asset.Asset, poolType PoolType, fee int32) error {
	if poolType != ConstantProduct {
		return fmt.Errorf("%w: unsupported pool type %s", ErrInvalidParameters, poolType)
	}
	if assetA.Equal(assetB) {
		return fmt.Errorf("%w: both assets are %s", ErrInvalidParameters, assetA)
	}
	if fee < 0 || fee >= maxFeeBasisPoints {
		return fmt.Errorf("%w: fee %d bps outside [0, %d)", ErrInvalidParameters, fee, maxFeeBasisPoints)
	}
	return nil
}
