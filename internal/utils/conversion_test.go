package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestRawIntToFloat64(t *testing.T) {
	require.Equal(t, 0.0, RawIntToFloat64(sdkmath.Int{}))
	require.Equal(t, 0.0, RawIntToFloat64(sdkmath.NewInt(-5)))
	require.Equal(t, 0.0, RawIntToFloat64(sdkmath.ZeroInt()))
	require.InDelta(t, 123456789.0, RawIntToFloat64(sdkmath.NewInt(123456789)), 1e-6)
}

func TestScaledIntToFloat64(t *testing.T) {
	v, err := ScaledIntToFloat64(sdkmath.NewInt(1_500_000), 6)
	require.NoError(t, err)
	require.InDelta(t, 1.5, v, 1e-12)

	v, err = ScaledIntToFloat64(sdkmath.NewInt(42), 0)
	require.NoError(t, err)
	require.InDelta(t, 42.0, v, 1e-12)

	_, err = ScaledIntToFloat64(sdkmath.NewInt(1), -1)
	require.ErrorIs(t, err, ErrInvalidPrecision)

	_, err = ScaledIntToFloat64(sdkmath.NewInt(1), 19)
	require.ErrorIs(t, err, ErrInvalidPrecision)

	_, err = ScaledIntToFloat64(sdkmath.Int{}, 6)
	require.ErrorIs(t, err, ErrAmountNil)

	_, err = ScaledIntToFloat64(sdkmath.NewInt(-1), 6)
	require.ErrorIs(t, err, ErrAmountNegative)
}

func TestBpsToFraction(t *testing.T) {
	require.InDelta(t, 0.003, BpsToFraction(30), 1e-12)
	require.InDelta(t, 0.05, BpsToFraction(500), 1e-12)
	require.Equal(t, 0.0, BpsToFraction(0))
}

func TestClampInt64(t *testing.T) {
	require.Equal(t, int64(5), ClampInt64(5, 0, 10))
	require.Equal(t, int64(0), ClampInt64(-3, 0, 10))
	require.Equal(t, int64(10), ClampInt64(42, 0, 10))
	require.Equal(t, int64(0), ClampInt64(0, 0, 10))
	require.Equal(t, int64(10), ClampInt64(10, 0, 10))
}
