package poolcache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/defistate/stellar-pool-client-go/protocols/asset"
	"github.com/defistate/stellar-pool-client-go/protocols/liquiditypool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	issuerA = "GB7TAYRUZGE6TVT7NHP5SMIZRNQA6PLM423EYISAOAP3MKYIQMVYP2JO"
	issuerB = "GCEZWKCA5VLDNRLN3RPRJMRZOX3Z6G5CHCGSNFHEYVXM3XOJMDS674JZ"
)

func view(t *testing.T, label string, a, b asset.Asset) liquiditypool.PoolView {
	t.Helper()
	p, err := liquiditypool.NewPool(a, b, liquiditypool.ConstantProduct, liquiditypool.DefaultFeeBasisPoints)
	require.NoError(t, err)
	return p.View(label)
}

func TestCache_PutGetPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pools.json")
	token := asset.MustIssued("TOKEN", issuerA)
	usd := asset.MustIssued("USD", issuerB)

	c, err := Open(path)
	require.NoError(t, err)
	assert.Empty(t, c.List())

	require.NoError(t, c.Put(view(t, "xlm-token", asset.Native(), token)))
	require.NoError(t, c.Put(view(t, "usd-token", usd, token)))

	got, ok := c.Get("xlm-token")
	require.True(t, ok)
	assert.Equal(t, "095f43b4281ee4f4744f790c3901b1eb6d300a1b99a5f442c6dea3e35d15a344", got.ID.String())

	reopened, err := Open(path)
	require.NoError(t, err)
	list := reopened.List()
	require.Len(t, list, 2)
	assert.Equal(t, "usd-token", list[0].Label)
	assert.Equal(t, "xlm-token", list[1].Label)
	assert.Equal(t, got, list[1])

	reg := reopened.Registry()
	assert.Len(t, reg.GetByAsset(token), 2)
	byID, ok := reg.GetByID(got.ID)
	require.True(t, ok)
	assert.Equal(t, "xlm-token", byID.Label)

	require.NoError(t, reopened.Delete("usd-token"))
	require.NoError(t, reopened.Delete("missing"))
	again, err := Open(path)
	require.NoError(t, err)
	assert.Len(t, again.List(), 1)
}

func TestCache_RejectsBadEntries(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "pools.json"))
	require.NoError(t, err)

	v := view(t, "", asset.Native(), asset.MustIssued("TOKEN", issuerA))
	assert.ErrorIs(t, c.Put(v), ErrEmptyLabel)

	v.Label = "tampered"
	v.ID[0] ^= 0xff
	assert.ErrorIs(t, c.Put(v), liquiditypool.ErrIDMismatch)
	assert.Empty(t, c.List())
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pools.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestCache_ConcurrentPuts(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "pools.json"))
	require.NoError(t, err)
	codes := []string{"AAA", "BBB", "CCC", "DDD", "EEE", "FFF", "GGG", "HHH"}

	var wg sync.WaitGroup
	for _, code := range codes {
		v := view(t, code, asset.Native(), asset.MustIssued(code, issuerA))
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Put(v))
		}()
	}
	wg.Wait()
	assert.Len(t, c.List(), len(codes))
}
