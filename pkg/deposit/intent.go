package deposit

import (
	"errors"
	"fmt"

	"github.com/defistate/stellar-pool-client-go/pkg/amount"
	"github.com/defistate/stellar-pool-client-go/protocols/liquiditypool"
)

// DepositIntent is a validated deposit request in the pool's canonical
// orientation: amount A and prices A/B refer to Pool.Params.AssetA.
type DepositIntent struct {
	Pool       liquiditypool.Pool
	MaxAmountA int64
	MaxAmountB int64
	MinPrice   amount.Price
	MaxPrice   amount.Price
}

// NewDepositIntent validates a deposit given in the order the caller passed
// the assets to liquiditypool.NewPool. Amounts are decimal strings; prices
// are amount-of-first-asset per amount-of-second-asset. If the resolver
// reordered the pair, the amounts are swapped and the band is inverted so the
// intent matches the pool's canonical orientation.
func NewDepositIntent(pool liquiditypool.Pool, maxAmountA, maxAmountB string, minPrice, maxPrice amount.Price) (DepositIntent, error) {
	a, err := amount.ParseStroops(maxAmountA)
	if err != nil {
		return DepositIntent{}, invalid(fmt.Errorf("max amount A: %w", err))
	}
	b, err := amount.ParseStroops(maxAmountB)
	if err != nil {
		return DepositIntent{}, invalid(fmt.Errorf("max amount B: %w", err))
	}

	intent := DepositIntent{
		Pool:       pool,
		MaxAmountA: a,
		MaxAmountB: b,
		MinPrice:   minPrice,
		MaxPrice:   maxPrice,
	}
	if err := intent.Validate(); err != nil {
		return DepositIntent{}, err
	}

	if pool.Reordered {
		intent.MaxAmountA, intent.MaxAmountB = b, a
		intent.MinPrice, intent.MaxPrice = maxPrice.Invert(), minPrice.Invert()
	}
	return intent, nil
}

// Validate checks the invariants of an intent: a resolved pool, positive
// amounts and a non-empty band of positive prices.
func (i DepositIntent) Validate() error {
	if i.Pool.ID.IsZero() || i.Pool.Params.ID() != i.Pool.ID {
		return invalid(errors.New("pool is not resolved"))
	}
	if i.MaxAmountA <= 0 || i.MaxAmountB <= 0 {
		return invalid(fmt.Errorf("max amounts %d and %d must be positive", i.MaxAmountA, i.MaxAmountB))
	}
	if err := i.MinPrice.Validate(); err != nil {
		return invalid(fmt.Errorf("min price: %w", err))
	}
	if err := i.MaxPrice.Validate(); err != nil {
		return invalid(fmt.Errorf("max price: %w", err))
	}
	if i.MinPrice.Cmp(i.MaxPrice) > 0 {
		return invalid(fmt.Errorf("min price %s is above max price %s", i.MinPrice, i.MaxPrice))
	}
	return nil
}

func invalid(err error) *Error {
	return newError(KindInvalidParameters, StateBuilding, err)
}
