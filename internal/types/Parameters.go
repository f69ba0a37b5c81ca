/*

This file contains the tunable pool parameter types and the configurable
strategy parameters used by the decision engine.

*/

package types

import "fmt"

// CurveMode selects the pool's pricing-curve behavior. The enumeration is
// closed; values mirror the on-ledger uint8 encoding.
type CurveMode uint8

const (
	CurveModeNormal             CurveMode = 0
	CurveModeDefensive          CurveMode = 1
	CurveModeVolatilityAdaptive CurveMode = 2
)

// String returns a human-readable name for logs and audit records.
func (m CurveMode) String() string {
	switch m {
	case CurveModeNormal:
		return "normal"
	case CurveModeDefensive:
		return "defensive"
	case CurveModeVolatilityAdaptive:
		return "volatility-adaptive"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// Valid reports whether m is a member of the closed enumeration.
func (m CurveMode) Valid() bool {
	return m <= CurveModeVolatilityAdaptive
}

// ParameterSet holds the three tunable pool parameters. The "current" set
// is owned by the ledger and read-only here; a "proposed" set is ephemeral
// and valid for one submission attempt.
type ParameterSet struct {
	FeeRateBps      int64     `json:"fee_rate_bps"`
	CurveShapeParam int64     `json:"curve_shape_param"` // scaled 1e4, 5000 = 0.5
	CurveMode       CurveMode `json:"curve_mode"`
}

// Equal reports whether two parameter sets are identical on all axes.
// Used for the idempotence check before submission.
func (p ParameterSet) Equal(other ParameterSet) bool {
	return p.FeeRateBps == other.FeeRateBps &&
		p.CurveShapeParam == other.CurveShapeParam &&
		p.CurveMode == other.CurveMode
}

// ParameterSuggestion is the decision engine's output: a bounded proposal
// plus an audit label and confidence. Produced once per epoch and
// immediately consumed by the submission step.
type ParameterSuggestion struct {
	Proposed   ParameterSet `json:"proposed"`
	RuleFired  string       `json:"rule_fired"`
	Confidence float64      `json:"confidence"` // 0..1
}

// StrategyParameters holds all tunable thresholds, steps, and limits used
// by the decision engine and the feature extractor. Different sets of
// these parameters can exist for different market regimes; the active set
// is versioned in the database.
type StrategyParameters struct {
	// --- Feature extraction ---
	EmaSmoothingFactor  float64 `json:"ema_smoothing_factor"`  // λ for the volatility EMA, 0 < λ <= 1
	WhaleRatioThreshold float64 `json:"whale_ratio_threshold"` // trade/reserve ratio above which a trade is a whale

	// --- Rule thresholds ---
	VolatilityHighThreshold float64 `json:"volatility_high_threshold"` // above this, the high-volatility rule fires
	VolatilityLowThreshold  float64 `json:"volatility_low_threshold"`  // lower bound of the moderate-volatility band
	LowVolumeThreshold      int     `json:"low_volume_threshold"`      // trade count below which the window is thin

	// --- Rule effects ---
	BaseFeeBps           int64 `json:"base_fee_bps"`            // fee the low-volume rule relaxes back to
	HighVolFeeStepBps    int64 `json:"high_vol_fee_step_bps"`   // fee raise for the high-volatility rule
	ModVolFeeStepBps     int64 `json:"mod_vol_fee_step_bps"`    // fee raise for the moderate-volatility rule
	WhaleCurveShapeStep  int64 `json:"whale_curve_shape_step"`  // curve-shape raise when a whale is detected
	DefaultCurveShape    int64 `json:"default_curve_shape"`     // midpoint the low-volume rule resets to

	// --- Limits (must mirror the on-ledger controller exactly) ---
	MaxFeeDeltaBps     int64 `json:"max_fee_delta_bps"`     // per-epoch fee delta limit
	MaxCurveShapeDelta int64 `json:"max_curve_shape_delta"` // per-epoch curve-shape delta limit
	MaxFeeBps          int64 `json:"max_fee_bps"`           // absolute fee ceiling
	CurveShapeCeiling  int64 `json:"curve_shape_ceiling"`   // absolute curve-shape ceiling
}
