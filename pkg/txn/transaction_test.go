package txn

import (
	"encoding/hex"
	"testing"

	"github.com/defistate/stellar-pool-client-go/pkg/amount"
	"github.com/defistate/stellar-pool-client-go/protocols/asset"
	"github.com/defistate/stellar-pool-client-go/protocols/liquiditypool"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSeed      = "SADQOBYHA4DQOBYHA4DQOBYHA4DQOBYHA4DQOBYHA4DQOBYHA4DQP54X"
	testAccount   = "GDVEU3DD4KOFECV66VIHWEZOYX4ZKR3WV27L464SIIPOU2IUI3JCZA57"
	testIssuer    = "GB7TAYRUZGE6TVT7NHP5SMIZRNQA6PLM423EYISAOAP3MKYIQMVYP2JO"
	testnet       = network.TestNetworkPassphrase
	otherNetwork  = network.PublicNetworkPassphrase
	fixtureHash   = "e68ffa19a11c34e70870ef15938f02f1f251bbde4bc471a29b63d6c5a8d47a01"
	fixtureEnvB64 = "AAAAAgAAAADqSmxj4pxSCr71UHsTLsX5lUd2rr6+e5JCHuppFEbSLAAAAMgAAAAAB1vNFgAAAAEAAAAAAAAAAAAAAABlU/EeAAAAAAAAAAIAAAAAAAAABgAAAAMAAAAAAAAAAAAAAAJUT0tFTgAAAAAAAAAAAAAAfzBiNMmJ6dZ/ad/ZMRmLYA89bOa2TCJAcB+2KwiDK4cAAAAef/////////8AAAAAAAAAFglfQ7QoHuT0dE95DDkBsettMAobmaX0Qsbeo+NdFaNEAAAAADuaygAAAAAAO5rKAAAAAAEAAAABAAAAAQAAAAEAAAAAAAAAARRG0iwAAABAXCKvKCe3X6qv/MlEfpM+SZ4QGeTiNHDnmi6vanKOd0j2ycIGQYkLddEOmbM/xi+mjtMeYOHtclwOrqvYN8IwCg=="
)

func fixtureTransaction(t *testing.T) *Transaction {
	t.Helper()
	pool, err := liquiditypool.NewPool(asset.Native(), asset.MustIssued("TOKEN", testIssuer), liquiditypool.ConstantProduct, 30)
	require.NoError(t, err)

	return &Transaction{
		Source:     testAccount,
		Fee:        200,
		Sequence:   123456790,
		TimeBounds: &TimeBounds{MinTime: 0, MaxTime: 1700000030},
		Operations: []Operation{
			ChangeTrustPoolShare{Params: pool.Params, Limit: MaxTrustLimit},
			LiquidityPoolDeposit{
				PoolID:     pool.ID,
				MaxAmountA: 1_000_000_000,
				MaxAmountB: 1_000_000_000,
				MinPrice:   amount.OneToOne,
				MaxPrice:   amount.OneToOne,
			},
		},
	}
}

func TestTransaction_HashAndEnvelopeVector(t *testing.T) {
	tx := fixtureTransaction(t)
	kp, err := keypair.ParseFull(testSeed)
	require.NoError(t, err)

	hash, err := tx.Hash(testnet)
	require.NoError(t, err)
	assert.Equal(t, fixtureHash, hex.EncodeToString(hash[:]))

	env, err := tx.Sign(testnet, kp)
	require.NoError(t, err)

	b64, err := env.EncodeBase64()
	require.NoError(t, err)
	assert.Equal(t, fixtureEnvB64, b64)

	otherHash, err := tx.Hash(otherNetwork)
	require.NoError(t, err)
	assert.NotEqual(t, hash, otherHash, "the network passphrase must bind the hash")
}

func TestEnvelope_DecodeRoundTrip(t *testing.T) {
	env, err := DecodeEnvelope(fixtureEnvB64)
	require.NoError(t, err)

	assert.Equal(t, testAccount, env.Tx.Source)
	assert.Equal(t, uint32(200), env.Tx.Fee)
	assert.Equal(t, int64(123456790), env.Tx.Sequence)
	require.NotNil(t, env.Tx.TimeBounds)
	assert.Equal(t, uint64(1700000030), env.Tx.TimeBounds.MaxTime)
	require.Len(t, env.Tx.Operations, 2)

	ct, ok := env.Tx.Operations[0].(ChangeTrustPoolShare)
	require.True(t, ok, "first operation must be change_trust")
	assert.Equal(t, MaxTrustLimit, ct.Limit)
	assert.True(t, ct.Params.AssetA.IsNative())

	dep, ok := env.Tx.Operations[1].(LiquidityPoolDeposit)
	require.True(t, ok, "second operation must be the deposit")
	assert.Equal(t, ct.Params.ID(), dep.PoolID)
	assert.Equal(t, amount.OneToOne, dep.MinPrice)

	require.NoError(t, env.VerifySignatures(testnet))
	assert.Error(t, env.VerifySignatures(otherNetwork))

	b64, err := env.EncodeBase64()
	require.NoError(t, err)
	assert.Equal(t, fixtureEnvB64, b64)
}

func TestEnvelope_VerifySignatures_WrongSigner(t *testing.T) {
	tx := fixtureTransaction(t)
	other, err := keypair.FromRawSeed([32]byte{})
	require.NoError(t, err)

	env, err := tx.Sign(testnet, other)
	require.NoError(t, err)
	assert.Error(t, env.VerifySignatures(testnet))

	env.Signatures = nil
	assert.Error(t, env.VerifySignatures(testnet))
}

func TestTransaction_Validate(t *testing.T) {
	t.Run("NoOperations", func(t *testing.T) {
		tx := fixtureTransaction(t)
		tx.Operations = nil
		_, err := tx.MarshalBinary()
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("FeeBelowMinimumStillEncodes", func(t *testing.T) {
		tx := fixtureTransaction(t)
		tx.Fee = BaseFee
		assert.NoError(t, tx.Validate())
		assert.Equal(t, uint64(2*BaseFee), tx.MinFee(BaseFee))
		assert.Less(t, uint64(tx.Fee), tx.MinFee(BaseFee))
	})

	t.Run("BadSource", func(t *testing.T) {
		tx := fixtureTransaction(t)
		tx.Source = "GABC"
		_, err := tx.Hash(testnet)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("InvertedTimeBounds", func(t *testing.T) {
		tx := fixtureTransaction(t)
		tx.TimeBounds = &TimeBounds{MinTime: 10, MaxTime: 5}
		assert.ErrorIs(t, tx.Validate(), ErrMalformed)
	})
}

func TestEnvelope_MatchesSDKHash(t *testing.T) {
	env, err := DecodeEnvelope(fixtureEnvB64)
	require.NoError(t, err)
	x, err := env.ToXDR()
	require.NoError(t, err)

	hash, err := network.HashTransactionInEnvelope(x, testnet)
	require.NoError(t, err)
	assert.Equal(t, fixtureHash, hex.EncodeToString(hash[:]))
}

func TestDecodeEnvelope_UnsupportedShapes(t *testing.T) {
	base := func(t *testing.T) xdr.TransactionEnvelope {
		t.Helper()
		var x xdr.TransactionEnvelope
		require.NoError(t, xdr.SafeUnmarshalBase64(fixtureEnvB64, &x))
		return x
	}
	encode := func(t *testing.T, x xdr.TransactionEnvelope) string {
		t.Helper()
		b64, err := xdr.MarshalBase64(x)
		require.NoError(t, err)
		return b64
	}

	t.Run("Memo", func(t *testing.T) {
		x := base(t)
		x.V1.Tx.Memo = xdr.MemoText("hi")
		_, err := DecodeEnvelope(encode(t, x))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("OperationSource", func(t *testing.T) {
		x := base(t)
		src := xdr.MustMuxedAddress(testAccount)
		x.V1.Tx.Operations[0].SourceAccount = &src
		_, err := DecodeEnvelope(encode(t, x))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("CreditChangeTrust", func(t *testing.T) {
		x := base(t)
		body, err := xdr.NewOperationBody(xdr.OperationTypeChangeTrust, xdr.ChangeTrustOp{
			Line:  xdr.MustNewCreditAsset("TOKEN", testIssuer).ToChangeTrustAsset(),
			Limit: xdr.Int64(MaxTrustLimit),
		})
		require.NoError(t, err)
		x.V1.Tx.Operations[0].Body = body
		_, err = DecodeEnvelope(encode(t, x))
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestDecodeEnvelope_Garbage(t *testing.T) {
	_, err := DecodeEnvelope("not base64!")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeEnvelope("AAAAAg==")
	assert.ErrorIs(t, err, ErrMalformed)
}
