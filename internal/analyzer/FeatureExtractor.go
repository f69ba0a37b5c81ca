package analyzer

import (
	"errors"
	"math"

	"github.com/evoarena/agent/internal/types"
	"github.com/evoarena/agent/internal/utils"
)

// ErrInvalidSmoothingFactor indicates the EMA smoothing factor is outside
// the usable (0, 1] range.
var ErrInvalidSmoothingFactor = errors.New("smoothing factor must be in (0, 1]")

// VolatilityState is the only state carried across epochs: the current
// smoothed volatility and the last tracked price. One instance is owned
// by exactly one FeatureExtractor; it is never shared across agents.
type VolatilityState struct {
	SmoothedVolatility float64 `json:"smoothed_volatility"`
	LastPrice          float64 `json:"last_price"`
}

// FeatureExtractor derives per-epoch market features from a trade window
// and the current reserves, maintaining a streaming EMA volatility
// estimate across calls.
//
// Not safe for concurrent use: the EMA recurrence assumes a total order
// over observations, so each agent must own its own extractor and invoke
// it from a single call site.
type FeatureExtractor struct {
	lambda float64
	state  VolatilityState
}

// NewFeatureExtractor creates an extractor with the given EMA smoothing
// factor λ. Each call updates the estimate as new = λ·sample + (1−λ)·old.
func NewFeatureExtractor(lambda float64) (*FeatureExtractor, error) {
	if lambda <= 0 || lambda > 1 {
		return nil, ErrInvalidSmoothingFactor
	}
	return &FeatureExtractor{lambda: lambda}, nil
}

// State returns a copy of the current volatility state.
func (x *FeatureExtractor) State() VolatilityState {
	return x.state
}

// Reset clears the carried volatility state. Operator action only; the
// next batch re-initializes the tracked price without a volatility spike.
func (x *FeatureExtractor) Reset() {
	x.state = VolatilityState{}
}

// ComputeFeatures processes a batch of trade events in arrival order
// against the current reserves and returns the derived market features,
// updating the extractor's volatility state as a side effect.
//
// The smoothing is applied trade-by-trade rather than once per batch so
// that windows spanning many trades converge toward the intratrade
// volatility instead of just the window-boundary price change. Degenerate
// inputs (empty batch, zero reserves) never error; every division guards
// the zero denominator and substitutes 0.
func (x *FeatureExtractor) ComputeFeatures(
	events []types.TradeEvent,
	reserves types.ReserveSnapshot,
	whaleRatioThreshold float64,
) types.MarketFeatures {
	reserveA := utils.RawIntToFloat64(reserves.ReserveA)
	reserveB := utils.RawIntToFloat64(reserves.ReserveB)

	// Reserve-implied spot price, defaulting to 1 when the B side is empty.
	currentPrice := 1.0
	if reserveB > 0 {
		currentPrice = reserveA / reserveB
	}

	var (
		maxWhaleRatio  float64
		whaleDetected  bool
		totalTradeSize float64
	)

	for _, ev := range events {
		tradeSize := utils.RawIntToFloat64(ev.AmountIn)

		reserveIn := reserveB
		if ev.AToB {
			reserveIn = reserveA
		}
		ratio := 0.0
		if reserveIn > 0 {
			ratio = tradeSize / reserveIn
		}
		if ratio > maxWhaleRatio {
			maxWhaleRatio = ratio
		}
		if ratio > whaleRatioThreshold {
			whaleDetected = true
		}

		totalTradeSize += tradeSize

		if x.state.LastPrice > 0 {
			// Post-trade price implied by this one trade in isolation:
			// the input side grows by the trade size, fee effects ignored
			// for the estimate.
			postPrice := 0.0
			if ev.AToB {
				if reserveB > 0 {
					postPrice = (reserveA + tradeSize) / reserveB
				}
			} else {
				if reserveB+tradeSize > 0 {
					postPrice = reserveA / (reserveB + tradeSize)
				}
			}
			if postPrice > 0 {
				pctChange := math.Abs(postPrice-x.state.LastPrice) / x.state.LastPrice
				x.state.SmoothedVolatility = x.lambda*pctChange + (1-x.lambda)*x.state.SmoothedVolatility
				x.state.LastPrice = postPrice
			}
		} else {
			// Very first observed trade: initialize the tracked price
			// without a volatility update to avoid a spurious first-sample
			// spike.
			x.state.LastPrice = currentPrice
		}
	}

	// Residual drift between the true reserve-implied price and the last
	// tracked price captures moves not explained by the supplied window
	// (e.g. swaps observed by another party). Resync afterwards.
	priceChangeAbs := 0.0
	if x.state.LastPrice > 0 {
		priceChangeAbs = math.Abs(currentPrice-x.state.LastPrice) / x.state.LastPrice
	}
	x.state.LastPrice = currentPrice

	avgTradeSize := 0.0
	if len(events) > 0 {
		avgTradeSize = totalTradeSize / float64(len(events))
	}

	return types.MarketFeatures{
		Volatility:     x.state.SmoothedVolatility,
		TradeVelocity:  len(events),
		WhaleDetected:  whaleDetected,
		MaxWhaleRatio:  maxWhaleRatio,
		AvgTradeSize:   avgTradeSize,
		PriceChangeAbs: priceChangeAbs,
	}
}
