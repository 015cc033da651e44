package liquiditypool

import (
	"errors"

	"github.com/defistate/stellar-pool-client-go/protocols/asset"
)

// ErrIDMismatch is returned when a stored pool ID does not match its parameters.
var ErrIDMismatch = errors.New("pool id does not match pool parameters")

type Indexer struct{}

// New creates a new Indexer.
func New() *Indexer {
	return &Indexer{}
}

// Index creates an indexed pool registry from a raw slice of pools.
func (i *Indexer) Index(pools []PoolView) *IndexablePoolRegistry {
	return NewIndexablePoolRegistry(pools)
}

// IndexablePoolRegistry provides fast, indexed access to known pools.
type IndexablePoolRegistry struct {
	byID    map[PoolID]PoolView
	byLabel map[string]PoolView
	byAsset map[string][]PoolView
	assets  *asset.IndexableAssetSystem
	all     []PoolView
}

// NewIndexablePoolRegistry creates a new indexed pool registry from a raw slice.
func NewIndexablePoolRegistry(pools []PoolView) *IndexablePoolRegistry {
	byID := make(map[PoolID]PoolView, len(pools))
	byLabel := make(map[string]PoolView, len(pools))
	byAsset := make(map[string][]PoolView, 2*len(pools))
	members := make([]asset.Asset, 0, 2*len(pools))

	for _, p := range pools {
		byID[p.ID] = p
		if p.Label != "" {
			byLabel[p.Label] = p
		}
		for _, a := range []asset.Asset{p.AssetA, p.AssetB} {
			byAsset[a.String()] = append(byAsset[a.String()], p)
			members = append(members, a)
		}
	}

	return &IndexablePoolRegistry{
		byID:    byID,
		byLabel: byLabel,
		byAsset: byAsset,
		assets:  asset.New().Index(members),
		all:     pools,
	}
}

// GetByID retrieves a pool by its ID.
func (ipr *IndexablePoolRegistry) GetByID(id PoolID) (PoolView, bool) {
	p, ok := ipr.byID[id]
	return p, ok
}

// GetByLabel retrieves a pool by the label it was stored under.
func (ipr *IndexablePoolRegistry) GetByLabel(label string) (PoolView, bool) {
	p, ok := ipr.byLabel[label]
	return p, ok
}

// GetByAsset returns every pool holding the given asset.
func (ipr *IndexablePoolRegistry) GetByAsset(a asset.Asset) []PoolView {
	found := ipr.byAsset[a.String()]
	out := make([]PoolView, len(found))
	copy(out, found)
	return out
}

// GetByAssetCode returns every pool holding an asset with the given code,
// whatever its issuer.
func (ipr *IndexablePoolRegistry) GetByAssetCode(code string) []PoolView {
	var out []PoolView
	seen := make(map[PoolID]bool)
	for _, a := range ipr.assets.GetByCode(code) {
		for _, p := range ipr.byAsset[a.String()] {
			if !seen[p.ID] {
				seen[p.ID] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// Assets returns every asset that appears in at least one pool, in canonical order.
func (ipr *IndexablePoolRegistry) Assets() []asset.Asset {
	return ipr.assets.All()
}

// All returns a defensive copy of the slice of all pools in the registry.
func (ipr *IndexablePoolRegistry) All() []PoolView {
	allCopy := make([]PoolView, len(ipr.all))
	copy(allCopy, ipr.all)
	return allCopy
}
