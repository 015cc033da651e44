package liquiditypool

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolID(t *testing.T) {
	const hexID = "095f43b4281ee4f4744f790c3901b1eb6d300a1b99a5f442c6dea3e35d15a344"

	t.Run("Parse_String_RoundTrip", func(t *testing.T) {
		id, err := ParsePoolID(hexID)
		require.NoError(t, err)
		assert.Equal(t, hexID, id.String())
		assert.Len(t, id.Bytes(), 32)
		assert.Equal(t, byte(0x09), id[0])
		assert.False(t, id.IsZero())
	})

	t.Run("Parse_Tolerates0xPrefix", func(t *testing.T) {
		id, err := ParsePoolID("0x" + hexID)
		require.NoError(t, err)
		assert.Equal(t, hexID, id.String())
	})

	t.Run("Parse_Rejects", func(t *testing.T) {
		_, err := ParsePoolID("0102")
		assert.Error(t, err, "short ids are not pool ids")

		_, err = ParsePoolID(strings.Repeat("zz", 32))
		assert.Error(t, err, "should fail on invalid hex")
	})

	t.Run("JSON_Marshaling_RoundTrip", func(t *testing.T) {
		id, err := ParsePoolID(hexID)
		require.NoError(t, err)

		jsonBytes, err := id.MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, `"`+hexID+`"`, string(jsonBytes))

		var decoded PoolID
		require.NoError(t, decoded.UnmarshalJSON(jsonBytes))
		assert.Equal(t, id, decoded)
	})

	t.Run("JSON_Unmarshal_Validation", func(t *testing.T) {
		var id PoolID
		assert.Error(t, id.UnmarshalJSON([]byte(`123`)), "should fail on non-string JSON")
		assert.Error(t, id.UnmarshalJSON([]byte(`"0x0102"`)), "should fail on short input")
		assert.Error(t, id.UnmarshalJSON([]byte(`"`+strings.Repeat("00", 33)+`"`)), "should fail on long input")
		assert.True(t, id.IsZero(), "failed unmarshal should leave the id untouched")
	})
}
