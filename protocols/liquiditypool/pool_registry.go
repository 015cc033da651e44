package liquiditypool

import "github.com/defistate/stellar-pool-client-go/protocols/asset"

// PoolView represents the data for a single known pool.
type PoolView struct {
	Label  string      `json:"label"`
	ID     PoolID      `json:"id"`
	AssetA asset.Asset `json:"assetA"`
	AssetB asset.Asset `json:"assetB"`
	Fee    int32       `json:"fee"`
}

// View returns the registry form of a resolved pool.
func (p Pool) View(label string) PoolView {
	return PoolView{
		Label:  label,
		ID:     p.ID,
		AssetA: p.Params.AssetA,
		AssetB: p.Params.AssetB,
		Fee:    p.Params.Fee,
	}
}

// Pool re-derives the pool from the view. It fails if the stored ID does not
// match the stored parameters, which catches stale or hand-edited records.
func (v PoolView) Pool() (Pool, error) {
	p, err := NewPool(v.AssetA, v.AssetB, ConstantProduct, v.Fee)
	if err != nil {
		return Pool{}, err
	}
	if p.ID != v.ID {
		return Pool{}, ErrIDMismatch
	}
	return p, nil
}

// PoolRegistryView represents the complete state of the registry.
type PoolRegistryView struct {
	Pools []PoolView `json:"pools"`
}
