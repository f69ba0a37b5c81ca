package analyzer

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/evoarena/agent/internal/types"
)

func reserves(a, b int64) types.ReserveSnapshot {
	return types.ReserveSnapshot{
		ReserveA: sdkmath.NewInt(a),
		ReserveB: sdkmath.NewInt(b),
	}
}

func trade(aToB bool, amountIn int64) types.TradeEvent {
	return types.TradeEvent{
		Sender:    "evo1trader",
		AToB:      aToB,
		AmountIn:  sdkmath.NewInt(amountIn),
		AmountOut: sdkmath.NewInt(amountIn),
		FeeAmount: sdkmath.NewInt(0),
	}
}

func TestNewFeatureExtractorValidatesSmoothingFactor(t *testing.T) {
	testCases := []struct {
		name    string
		lambda  float64
		wantErr bool
	}{
		{"zero", 0, true},
		{"negative", -0.5, true},
		{"above one", 1.5, true},
		{"typical", 0.3, false},
		{"exactly one", 1.0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFeatureExtractor(tc.lambda)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidSmoothingFactor)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestWhaleDetection(t *testing.T) {
	x, err := NewFeatureExtractor(0.3)
	require.NoError(t, err)

	// 6000 against a 100000 A-side reserve is a 6% trade, above the 5%
	// threshold.
	features := x.ComputeFeatures(
		[]types.TradeEvent{trade(true, 6000)},
		reserves(100000, 50000),
		0.05,
	)

	require.True(t, features.WhaleDetected)
	require.InDelta(t, 0.06, features.MaxWhaleRatio, 1e-12)
	require.Equal(t, 1, features.TradeVelocity)
}

func TestWhaleRatioUsesRelevantSideReserve(t *testing.T) {
	x, err := NewFeatureExtractor(0.3)
	require.NoError(t, err)

	// A B-to-A trade is measured against the B reserve: 6000/200000 = 3%,
	// under the threshold even though it would be 6% of the A side.
	features := x.ComputeFeatures(
		[]types.TradeEvent{trade(false, 6000)},
		reserves(100000, 200000),
		0.05,
	)

	require.False(t, features.WhaleDetected)
	require.InDelta(t, 0.03, features.MaxWhaleRatio, 1e-12)
}

func TestZeroReserveBDefaultsPriceToOne(t *testing.T) {
	x, err := NewFeatureExtractor(0.3)
	require.NoError(t, err)

	require.NotPanics(t, func() {
		features := x.ComputeFeatures(
			[]types.TradeEvent{trade(true, 500)},
			reserves(100000, 0),
			0.05,
		)
		require.Equal(t, 0.0, features.Volatility)
	})

	require.InDelta(t, 1.0, x.State().LastPrice, 1e-12)
}

func TestEmptyBatchIsIdempotent(t *testing.T) {
	x, err := NewFeatureExtractor(0.3)
	require.NoError(t, err)

	// Seed the EMA with one real batch, then feed empty windows.
	x.ComputeFeatures([]types.TradeEvent{trade(true, 1000), trade(true, 2000)}, reserves(100000, 100000), 0.05)
	seeded := x.State().SmoothedVolatility

	first := x.ComputeFeatures(nil, reserves(100000, 100000), 0.05)
	second := x.ComputeFeatures(nil, reserves(100000, 100000), 0.05)

	require.Equal(t, seeded, first.Volatility)
	require.Equal(t, first.Volatility, second.Volatility)
	require.Equal(t, 0, second.TradeVelocity)
	require.False(t, second.WhaleDetected)
	require.Equal(t, 0.0, second.AvgTradeSize)
	require.Equal(t, 0.0, first.PriceChangeAbs)
	require.Equal(t, 0.0, second.PriceChangeAbs)
}

func TestSmoothedVolatilityBoundedByLargestSample(t *testing.T) {
	x, err := NewFeatureExtractor(0.3)
	require.NoError(t, err)

	// Seed the tracked price at 1.0.
	x.ComputeFeatures([]types.TradeEvent{trade(true, 100)}, reserves(100000, 100000), 0.05)

	// Per-trade price-change samples for this batch: 0.01, then
	// |1.03-1.01|/1.01, then |1.02-1.03|/1.03. The EMA is a convex
	// combination of the samples and the zero prior, so it can never
	// exceed the largest sample.
	features := x.ComputeFeatures(
		[]types.TradeEvent{trade(true, 1000), trade(true, 3000), trade(true, 2000)},
		reserves(100000, 100000),
		0.05,
	)

	largestSample := 0.02 / 1.01
	require.Greater(t, features.Volatility, 0.0)
	require.LessOrEqual(t, features.Volatility, largestSample)
}

func TestFirstTradeInitializesWithoutSpike(t *testing.T) {
	x, err := NewFeatureExtractor(0.3)
	require.NoError(t, err)

	// The very first observed trade only seeds the tracked price; a large
	// trade must not register as instant volatility.
	features := x.ComputeFeatures(
		[]types.TradeEvent{trade(true, 50000)},
		reserves(100000, 100000),
		0.5,
	)

	require.Equal(t, 0.0, features.Volatility)
	require.InDelta(t, 1.0, x.State().LastPrice, 1e-12)
}

func TestVolatilityEMAUpdate(t *testing.T) {
	x, err := NewFeatureExtractor(0.3)
	require.NoError(t, err)

	// Batch 1 seeds the tracked price at 1.0 (equal reserves).
	x.ComputeFeatures([]types.TradeEvent{trade(true, 100)}, reserves(100000, 100000), 0.05)
	require.InDelta(t, 1.0, x.State().LastPrice, 1e-9)

	// Batch 2: one A-to-B trade of 1000 implies a post-trade price of
	// 101000/100000 = 1.01, a 1% move. EMA: 0.3 * 0.01 = 0.003.
	features := x.ComputeFeatures([]types.TradeEvent{trade(true, 1000)}, reserves(100000, 100000), 0.05)
	require.InDelta(t, 0.003, features.Volatility, 1e-9)

	// Tracked price resyncs to the reserve-implied price after the batch,
	// leaving the intra-batch move as residual drift.
	require.InDelta(t, 1.0, x.State().LastPrice, 1e-9)
	require.InDelta(t, 0.01/1.01, features.PriceChangeAbs, 1e-9)
}

func TestVolatilityDecaysAcrossQuietWindows(t *testing.T) {
	x, err := NewFeatureExtractor(0.5)
	require.NoError(t, err)

	x.ComputeFeatures([]types.TradeEvent{trade(true, 100)}, reserves(100000, 100000), 0.05)
	spiked := x.ComputeFeatures([]types.TradeEvent{trade(true, 5000)}, reserves(100000, 100000), 0.05)
	require.Greater(t, spiked.Volatility, 0.0)

	// A later small trade drags the estimate down: the 5% spike decays
	// toward the new 0.1% sample.
	calmed := x.ComputeFeatures([]types.TradeEvent{trade(true, 100)}, reserves(100000, 100000), 0.05)
	require.Less(t, calmed.Volatility, spiked.Volatility)
}

func TestAvgTradeSize(t *testing.T) {
	x, err := NewFeatureExtractor(0.3)
	require.NoError(t, err)

	features := x.ComputeFeatures(
		[]types.TradeEvent{trade(true, 1000), trade(false, 3000)},
		reserves(100000, 100000),
		0.05,
	)

	require.InDelta(t, 2000.0, features.AvgTradeSize, 1e-9)
	require.Equal(t, 2, features.TradeVelocity)
}

func TestResetClearsCarriedState(t *testing.T) {
	x, err := NewFeatureExtractor(0.3)
	require.NoError(t, err)

	x.ComputeFeatures([]types.TradeEvent{trade(true, 1000)}, reserves(100000, 100000), 0.05)
	x.ComputeFeatures([]types.TradeEvent{trade(true, 5000)}, reserves(100000, 100000), 0.05)
	require.NotZero(t, x.State().LastPrice)

	x.Reset()
	require.Equal(t, VolatilityState{}, x.State())
}
