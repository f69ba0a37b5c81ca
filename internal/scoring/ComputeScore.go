/*

Agent performance score (APS).

APS = 0.4·LPReturnDelta + 0.3·SlippageReduction
    + 0.2·VolatilityCompression + 0.1·FeeRevenue

Each component is clamped non-negative before weighting: underperforming
the static baseline on an axis contributes zero, never a penalty.
Components above 1 are deliberately left uncapped so extreme
outperformance remains visible in the composite.

*/

package scoring

import (
	"math"
	"time"

	"github.com/evoarena/agent/internal/types"
)

// Component weights; fixed constants summing to 1.0.
const (
	WeightLpReturn   = 0.4
	WeightSlippage   = 0.3
	WeightVolatility = 0.2
	WeightFeeRevenue = 0.1
)

// feeRevenueScale maps the fee-to-volume ratio into the score's [0, 1]
// band before capping: a 1% ratio saturates the term. The constant
// assumes fee/volume stays below 1% in normal operation; materially
// higher ratios saturate silently.
const feeRevenueScale = 100.0

// ComputeScore computes the composite performance snapshot for one epoch
// from paired (static baseline, agent) observables. Pure and
// deterministic; degenerate baselines (zero or negative denominators)
// resolve each affected component to 0 rather than erroring.
func ComputeScore(inputs types.ScoreInputs, epoch int, agentID string) types.PerformanceSnapshot {
	// LP return delta (higher is better).
	lpReturnDelta := 0.0
	if inputs.StaticLpReturn > 0 {
		lpReturnDelta = (inputs.AgentLpReturn - inputs.StaticLpReturn) / inputs.StaticLpReturn
	}

	// Slippage reduction (positive = agent trades settle closer to quote).
	slippageReduction := 0.0
	if inputs.StaticSlippage > 0 {
		slippageReduction = 1 - inputs.AgentSlippage/inputs.StaticSlippage
	}

	// Volatility compression (positive = agent damps price variance).
	volatilityCompression := 0.0
	if inputs.StaticVolatility > 0 {
		volatilityCompression = (inputs.StaticVolatility - inputs.AgentVolatility) / inputs.StaticVolatility
	}

	// Fee revenue as a fraction of volume.
	feeRevenueRatio := 0.0
	if inputs.TotalVolume > 0 {
		feeRevenueRatio = inputs.TotalFeeRevenue / inputs.TotalVolume
	}

	score := WeightLpReturn*math.Max(0, lpReturnDelta) +
		WeightSlippage*math.Max(0, slippageReduction) +
		WeightVolatility*math.Max(0, volatilityCompression) +
		WeightFeeRevenue*math.Min(1, feeRevenueRatio*feeRevenueScale)

	return types.PerformanceSnapshot{
		Epoch:                 epoch,
		Timestamp:             time.Now().UTC(),
		AgentID:               agentID,
		LpReturnDelta:         lpReturnDelta,
		SlippageReduction:     slippageReduction,
		VolatilityCompression: volatilityCompression,
		FeeRevenueRatio:       feeRevenueRatio,
		Score:                 math.Round(score*10000) / 10000,
		Inputs:                inputs,
	}
}
