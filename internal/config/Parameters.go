/*

This file contains the default strategy parameters for the agent.

The thresholds and steps are calibrated against the pool's on-ledger
controller limits: every raw rule target, after the two-stage clamp,
must land inside what the controller contract will accept.

*/

package config

import (
	"github.com/evoarena/agent/internal/types"
)

// StrategyConfigName is the named parameter set this agent runs under.
// Versioning and activation happen per config name in the database.
const (
	StrategyConfigName    = "default_agent_strategy"
	StrategyConfigVersion = 1
)

// DefaultStrategyParameters provides the baseline parameter set for the
// decision engine and feature extractor. These values are used if no
// active parameters are found in the database during initialization.
var DefaultStrategyParameters = types.StrategyParameters{
	// --- Feature extraction ---
	EmaSmoothingFactor: 0.3, // λ for the per-trade volatility EMA.
	// A λ of 0.3 weights the newest trade at 30%, so a burst of large
	// price moves registers within a handful of trades while a single
	// outlier decays across the next few windows.

	WhaleRatioThreshold: 0.05, // A single trade above 5% of the relevant reserve is a whale.

	// --- Rule thresholds ---
	VolatilityHighThreshold: 0.03, // 3% smoothed volatility triggers the fee raise.
	VolatilityLowThreshold:  0.005, // Below 0.5% the pool is considered calm.
	LowVolumeThreshold:      5,     // Fewer than 5 trades per window is a thin market.

	// --- Rule effects ---
	BaseFeeBps:          30,   // Fee the low-volume rule relaxes back to.
	HighVolFeeStepBps:   20,   // Fee raise under high volatility.
	ModVolFeeStepBps:    10,   // Smaller raise in the moderate band.
	WhaleCurveShapeStep: 500,  // Steepen the curve by 0.05 against whales.
	DefaultCurveShape:   5000, // Midpoint (0.5) the low-volume rule resets to.

	// --- Limits ---
	// These must match the controller contract's stored limits exactly.
	// Too strict and the agent leaves headroom unused; too loose and the
	// local clamp stops filtering submissions the ledger would reject.
	MaxFeeDeltaBps:     50,
	MaxCurveShapeDelta: 2000,
	MaxFeeBps:          500,
	CurveShapeCeiling:  10000,
}
