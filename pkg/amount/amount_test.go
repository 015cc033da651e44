package amount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStroops(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "100", want: 1_000_000_000},
		{in: "0.0000001", want: 1},
		{in: "1.5", want: 15_000_000},
		{in: " 2 ", want: 20_000_000},
		{in: "922337203685.4775807", want: 9223372036854775807},
		{in: "922337203685.4775808", wantErr: true},
		{in: "0.00000001", wantErr: true},
		{in: "0", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseStroops(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatStroops(t *testing.T) {
	assert.Equal(t, "100", FormatStroops(1_000_000_000))
	assert.Equal(t, "0.0000001", FormatStroops(1))
	assert.Equal(t, "1.5", FormatStroops(15_000_000))
}

func TestPrice(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		assert.NoError(t, OneToOne.Validate())
		assert.ErrorIs(t, Price{N: 0, D: 1}.Validate(), ErrInvalidPrice)
		assert.ErrorIs(t, Price{N: 1, D: -1}.Validate(), ErrInvalidPrice)
	})

	t.Run("Cmp", func(t *testing.T) {
		assert.Equal(t, 0, Price{N: 2, D: 2}.Cmp(OneToOne))
		assert.Equal(t, -1, Price{N: 1, D: 2}.Cmp(OneToOne))
		assert.Equal(t, 1, Price{N: 3, D: 2}.Cmp(OneToOne))
		// no int32 overflow
		big := Price{N: 2147483647, D: 1}
		assert.Equal(t, 1, big.Cmp(Price{N: 2147483646, D: 1}))
	})

	t.Run("Invert", func(t *testing.T) {
		assert.Equal(t, Price{N: 3, D: 2}, Price{N: 2, D: 3}.Invert())
	})

	t.Run("Rat", func(t *testing.T) {
		assert.Equal(t, "1/2", Price{N: 2, D: 4}.Rat().String())
	})

	t.Run("ParsePrice", func(t *testing.T) {
		p, err := ParsePrice("3/2")
		require.NoError(t, err)
		assert.Equal(t, Price{N: 3, D: 2}, p)
		assert.Equal(t, "3/2", p.String())

		p, err = ParsePrice("5")
		require.NoError(t, err)
		assert.Equal(t, Price{N: 5, D: 1}, p)

		_, err = ParsePrice("1/0")
		assert.ErrorIs(t, err, ErrInvalidPrice)
		_, err = ParsePrice("x/1")
		assert.ErrorIs(t, err, ErrInvalidPrice)
	})
}
