package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundHalfUp(t *testing.T) {
	cases := map[string]string{
		"4.95":   "4.95",
		"4.125":  "4.13",
		"4.124":  "4.12",
		"0.005":  "0.01",
		"10":     "10",
		"9.9949": "9.99",
	}
	for in, want := range cases {
		got := Round(decimal.RequireFromString(in))
		assert.True(t, got.Equal(decimal.RequireFromString(want)), "round(%s) = %s, want %s", in, got, want)
	}
}

func TestMinorUnitsRoundTrip(t *testing.T) {
	assert.Equal(t, int64(6495), ToMinorUnits(decimal.RequireFromString("64.95")))
	assert.Equal(t, int64(1), ToMinorUnits(decimal.RequireFromString("0.005")))
	assert.Equal(t, "64.95", FromMinorUnits(6495).StringFixed(2))
	assert.Equal(t, "0.00", FromMinorUnits(0).StringFixed(2))
}

func TestParse(t *testing.T) {
	got, err := Parse("12.345")
	require.NoError(t, err)
	assert.Equal(t, "12.35", got.StringFixed(2))

	_, err = Parse("twelve")
	require.Error(t, err)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(decimal.RequireFromString("64.950"), decimal.RequireFromString("64.95")))
	assert.False(t, Equal(decimal.RequireFromString("64.94"), decimal.RequireFromString("64.95")))
}
