package aggregation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDeriveAvg(t *testing.T) {
	avg, ok := DeriveAvg(decimal.NewFromInt(160), decimal.NewFromInt(4))
	require.True(t, ok)
	require.True(t, decimal.NewFromInt(40).Equal(avg))

	avg, ok = DeriveAvg(decimal.NewFromInt(5), decimal.NewFromInt(2))
	require.True(t, ok)
	require.True(t, decimal.NewFromFloat(2.5).Equal(avg))
}

func TestDeriveAvg_ZeroCount(t *testing.T) {
	_, ok := DeriveAvg(decimal.NewFromInt(10), decimal.Zero)
	require.False(t, ok)
}
