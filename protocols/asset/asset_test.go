package asset

import (
	"encoding/json"
	"testing"

	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	issuerA = "GB7TAYRUZGE6TVT7NHP5SMIZRNQA6PLM423EYISAOAP3MKYIQMVYP2JO"
	issuerB = "GCEZWKCA5VLDNRLN3RPRJMRZOX3Z6G5CHCGSNFHEYVXM3XOJMDS674JZ"
)

func TestNewIssued(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		issuer  string
		want    Type
		wantErr bool
	}{
		{name: "Alphanum4", code: "USD", issuer: issuerA, want: TypeCreditAlphanum4},
		{name: "Alphanum4_FourChars", code: "ARST", issuer: issuerA, want: TypeCreditAlphanum4},
		{name: "Alphanum12", code: "TOKEN", issuer: issuerA, want: TypeCreditAlphanum12},
		{name: "Alphanum12_TwelveChars", code: "ABCDEFGHIJKL", issuer: issuerA, want: TypeCreditAlphanum12},
		{name: "EmptyCode", code: "", issuer: issuerA, wantErr: true},
		{name: "CodeTooLong", code: "ABCDEFGHIJKLM", issuer: issuerA, wantErr: true},
		{name: "NonAlphanumeric", code: "US-D", issuer: issuerA, wantErr: true},
		{name: "BadIssuer", code: "USD", issuer: "GABC", wantErr: true},
		{name: "SeedAsIssuer", code: "USD", issuer: "SADQOBYHA4DQOBYHA4DQOBYHA4DQOBYHA4DQOBYHA4DQOBYHA4DQP54X", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, err := NewIssued(tc.code, tc.issuer)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAsset)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, a.Type())
			assert.Equal(t, tc.code, a.Code())
			assert.Equal(t, tc.issuer, a.Issuer())
			assert.False(t, a.IsNative())
		})
	}
}

func TestParse(t *testing.T) {
	n, err := Parse("native")
	require.NoError(t, err)
	assert.True(t, n.IsNative())
	assert.True(t, n.Equal(Asset{}), "zero value is the native asset")

	x, err := Parse("XLM")
	require.NoError(t, err)
	assert.True(t, x.IsNative())

	usd, err := Parse("USD:" + issuerB)
	require.NoError(t, err)
	assert.Equal(t, "USD:"+issuerB, usd.String())

	_, err = Parse("USD")
	assert.ErrorIs(t, err, ErrInvalidAsset)
}

func TestCompare(t *testing.T) {
	native := Native()
	usdA := MustIssued("USD", issuerA)
	usdB := MustIssued("USD", issuerB)
	arst := MustIssued("ARST", issuerB)
	token := MustIssued("TOKEN", issuerA)

	t.Run("NativeFirst", func(t *testing.T) {
		assert.Equal(t, -1, native.Compare(usdA))
		assert.Equal(t, 1, token.Compare(native))
		assert.Equal(t, 0, native.Compare(Native()))
	})

	t.Run("TypeBeforeCode", func(t *testing.T) {
		// "TOKEN" > "USD" would be false by code, but alphanum4 sorts first.
		assert.Equal(t, -1, usdA.Compare(token))
	})

	t.Run("CodeBeforeIssuer", func(t *testing.T) {
		assert.Equal(t, -1, arst.Compare(usdA))
	})

	t.Run("IssuerByRawKey", func(t *testing.T) {
		// GB7T... decodes to 0x7f..., GCEZ... to 0x89...
		assert.Equal(t, -1, usdA.Compare(usdB))
		assert.Equal(t, 1, usdB.Compare(usdA))
	})

	t.Run("EqualAssets", func(t *testing.T) {
		assert.Equal(t, 0, usdA.Compare(MustIssued("USD", issuerA)))
		assert.True(t, usdA.Equal(MustIssued("USD", issuerA)))
		assert.False(t, usdA.Equal(usdB))
	})
}

func TestXDR(t *testing.T) {
	t.Run("Native", func(t *testing.T) {
		b, err := Native().ToXDR().MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0, 0, 0}, b)
	})

	t.Run("Alphanum12_RoundTrip", func(t *testing.T) {
		token := MustIssued("TOKEN", issuerA)
		b, err := token.ToXDR().MarshalBinary()
		require.NoError(t, err)
		// type + 12 code bytes + key type + 32 key bytes
		require.Len(t, b, 4+12+4+32)
		assert.Equal(t, []byte{0, 0, 0, 2, 'T', 'O', 'K', 'E', 'N', 0, 0, 0, 0, 0, 0, 0}, b[:16])

		var x xdr.Asset
		require.NoError(t, x.UnmarshalBinary(b))
		got, err := FromXDR(x)
		require.NoError(t, err)
		assert.True(t, token.Equal(got))
		assert.Equal(t, issuerA, got.Issuer())
	})

	t.Run("MatchesSDKConstruction", func(t *testing.T) {
		want, err := xdr.NewCreditAsset("USD", issuerA)
		require.NoError(t, err)
		assert.True(t, want.Equals(MustIssued("USD", issuerA).ToXDR()))
	})

	t.Run("ShortCodeInWideVariantRejected", func(t *testing.T) {
		var code [12]byte
		copy(code[:], "USD")
		x := xdr.Asset{
			Type:       xdr.AssetTypeAssetTypeCreditAlphanum12,
			AlphaNum12: &xdr.AlphaNum12{AssetCode: code, Issuer: xdr.MustAddress(issuerA)},
		}
		_, err := FromXDR(x)
		assert.ErrorIs(t, err, ErrInvalidAsset)
	})

	t.Run("PoolShareRejected", func(t *testing.T) {
		_, err := FromXDR(xdr.Asset{Type: xdr.AssetTypeAssetTypePoolShare})
		assert.ErrorIs(t, err, ErrInvalidAsset)
	})
}

func TestJSON(t *testing.T) {
	type pair struct {
		A Asset `json:"a"`
		B Asset `json:"b"`
	}
	in := pair{A: Native(), B: MustIssued("TOKEN", issuerA)}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"native","b":"TOKEN:`+issuerA+`"}`, string(data))

	var out pair
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, in.A.Equal(out.A))
	assert.True(t, in.B.Equal(out.B))

	var bad Asset
	assert.Error(t, json.Unmarshal([]byte(`"TOKEN"`), &bad))
}

func TestIndexableAssetSystem(t *testing.T) {
	usdA := MustIssued("USD", issuerA)
	usdB := MustIssued("USD", issuerB)
	token := MustIssued("TOKEN", issuerA)

	idx := New().Index([]Asset{token, usdB, Native(), usdA, usdB})

	all := idx.All()
	require.Len(t, all, 4, "duplicates should be collapsed")
	assert.True(t, all[0].IsNative())
	assert.True(t, all[1].Equal(usdA))
	assert.True(t, all[2].Equal(usdB))
	assert.True(t, all[3].Equal(token))

	assert.Len(t, idx.GetByCode("USD"), 2)
	assert.Empty(t, idx.GetByCode("EUR"))

	got, ok := idx.Get("TOKEN:" + issuerA)
	require.True(t, ok)
	assert.True(t, got.Equal(token))

	_, ok = idx.Get("TOKEN:" + issuerB)
	assert.False(t, ok)
}
