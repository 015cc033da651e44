package asset

import "sort"

// Indexer builds indexed asset sets.
type Indexer struct{}

// New creates a new Indexer.
func New() *Indexer {
	return &Indexer{}
}

// Index creates an indexed asset system from a raw slice of assets.
func (i *Indexer) Index(assets []Asset) *IndexableAssetSystem {
	return NewIndexableAssetSystem(assets)
}

// IndexableAssetSystem provides fast, indexed access to a set of assets.
// Duplicates in the input are collapsed.
type IndexableAssetSystem struct {
	byKey  map[string]Asset
	byCode map[string][]Asset
	all    []Asset
}

// NewIndexableAssetSystem creates a new indexed asset system from a raw slice.
// All() returns the assets in canonical order.
func NewIndexableAssetSystem(assets []Asset) *IndexableAssetSystem {
	byKey := make(map[string]Asset, len(assets))
	byCode := make(map[string][]Asset, len(assets))
	all := make([]Asset, 0, len(assets))

	for _, a := range assets {
		key := a.String()
		if _, seen := byKey[key]; seen {
			continue
		}
		byKey[key] = a
		byCode[a.Code()] = append(byCode[a.Code()], a)
		all = append(all, a)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Compare(all[j]) < 0 })

	return &IndexableAssetSystem{
		byKey:  byKey,
		byCode: byCode,
		all:    all,
	}
}

// Get retrieves an asset by its String form.
func (ias *IndexableAssetSystem) Get(key string) (Asset, bool) {
	a, ok := ias.byKey[key]
	return a, ok
}

// GetByCode returns every indexed asset with the given code, across issuers.
func (ias *IndexableAssetSystem) GetByCode(code string) []Asset {
	found := ias.byCode[code]
	out := make([]Asset, len(found))
	copy(out, found)
	return out
}

// All returns a defensive copy of the slice of all assets in the system.
func (ias *IndexableAssetSystem) All() []Asset {
	allCopy := make([]Asset, len(ias.all))
	copy(allCopy, ias.all)
	return allCopy
}
