/*

Deterministic rule engine.

Maps market features to a bounded parameter suggestion. The rules are an
explicit ordered list applied in sequence to a mutable draft: a later
rule overwriting a field set by an earlier rule is the priority encoding,
not an accident. Whale defense beats generic volatility, and a thin
market relaxes everything unless a whale is present.

*/

package strategy

import (
	"github.com/evoarena/agent/internal/types"
	"github.com/evoarena/agent/internal/utils"
)

// draft is the in-progress suggestion the rules mutate in sequence.
type draft struct {
	params     types.ParameterSet
	ruleFired  string
	confidence float64
}

// rule pairs a firing predicate with its effect on the draft. Effects
// compute raw targets from the *current* parameters; all bounding happens
// in the post-rule clamp stage.
type rule struct {
	applies func(f types.MarketFeatures, cfg types.StrategyParameters) bool
	apply   func(d *draft, f types.MarketFeatures, current types.ParameterSet, cfg types.StrategyParameters)
}

// rules is evaluated strictly in order; see the package comment for the
// override semantics.
var rules = []rule{
	// High volatility: raise the fee a full step and switch the curve to
	// the volatility-adaptive mode.
	{
		applies: func(f types.MarketFeatures, cfg types.StrategyParameters) bool {
			return f.Volatility > cfg.VolatilityHighThreshold
		},
		apply: func(d *draft, f types.MarketFeatures, current types.ParameterSet, cfg types.StrategyParameters) {
			d.params.FeeRateBps = min64(current.FeeRateBps+cfg.HighVolFeeStepBps, cfg.MaxFeeBps)
			d.params.CurveMode = types.CurveModeVolatilityAdaptive
			d.ruleFired = "high-volatility"
			d.confidence = 0.8
		},
	},
	// Whale detected: force the defensive curve regardless of what the
	// volatility rule chose, and steepen the curve shape.
	{
		applies: func(f types.MarketFeatures, cfg types.StrategyParameters) bool {
			return f.WhaleDetected
		},
		apply: func(d *draft, f types.MarketFeatures, current types.ParameterSet, cfg types.StrategyParameters) {
			d.params.CurveMode = types.CurveModeDefensive
			d.params.CurveShapeParam = min64(current.CurveShapeParam+cfg.WhaleCurveShapeStep, cfg.CurveShapeCeiling)
			if f.Volatility > cfg.VolatilityHighThreshold {
				d.ruleFired = "high-volatility+whale"
			} else {
				d.ruleFired = "whale-detected"
			}
			d.confidence = 0.9
		},
	},
	// Low trade velocity with no whale: a thin market does not need
	// defensive tuning, relax back to the configured baseline.
	{
		applies: func(f types.MarketFeatures, cfg types.StrategyParameters) bool {
			return f.TradeVelocity < cfg.LowVolumeThreshold && !f.WhaleDetected
		},
		apply: func(d *draft, f types.MarketFeatures, current types.ParameterSet, cfg types.StrategyParameters) {
			d.params.FeeRateBps = cfg.BaseFeeBps
			d.params.CurveMode = types.CurveModeNormal
			d.params.CurveShapeParam = cfg.DefaultCurveShape
			d.ruleFired = "low-volume-relax"
			d.confidence = 0.7
		},
	},
	// Moderate volatility with healthy volume and no whale: smaller fee
	// raise, adaptive curve.
	{
		applies: func(f types.MarketFeatures, cfg types.StrategyParameters) bool {
			return f.Volatility > cfg.VolatilityLowThreshold &&
				f.Volatility <= cfg.VolatilityHighThreshold &&
				!f.WhaleDetected &&
				f.TradeVelocity >= cfg.LowVolumeThreshold
		},
		apply: func(d *draft, f types.MarketFeatures, current types.ParameterSet, cfg types.StrategyParameters) {
			d.params.FeeRateBps = min64(current.FeeRateBps+cfg.ModVolFeeStepBps, cfg.MaxFeeBps)
			d.params.CurveMode = types.CurveModeVolatilityAdaptive
			d.ruleFired = "moderate-volatility"
			d.confidence = 0.6
		},
	},
}

// ComputeSuggestion evaluates the rule list against the extracted
// features and current pool parameters and returns a bounded parameter
// suggestion. Pure and total: every input combination yields a valid
// output and the same inputs always yield the same suggestion.
func ComputeSuggestion(
	features types.MarketFeatures,
	current types.ParameterSet,
	cfg types.StrategyParameters,
) types.ParameterSuggestion {
	d := draft{
		params:     current,
		ruleFired:  "no-change",
		confidence: 0.5,
	}

	for _, r := range rules {
		if r.applies(features, cfg) {
			r.apply(&d, features, current, cfg)
		}
	}

	// Two-stage clamp: per-epoch delta limits first, then the absolute
	// ranges. This guarantees the proposal is a strict subset of what the
	// on-ledger controller enforces, so a correctly configured agent is
	// never rejected for a bound violation.
	feeDelta := d.params.FeeRateBps - current.FeeRateBps
	if feeDelta > cfg.MaxFeeDeltaBps {
		d.params.FeeRateBps = current.FeeRateBps + cfg.MaxFeeDeltaBps
	} else if feeDelta < -cfg.MaxFeeDeltaBps {
		d.params.FeeRateBps = current.FeeRateBps - cfg.MaxFeeDeltaBps
	}

	shapeDelta := d.params.CurveShapeParam - current.CurveShapeParam
	if shapeDelta > cfg.MaxCurveShapeDelta {
		d.params.CurveShapeParam = current.CurveShapeParam + cfg.MaxCurveShapeDelta
	} else if shapeDelta < -cfg.MaxCurveShapeDelta {
		d.params.CurveShapeParam = current.CurveShapeParam - cfg.MaxCurveShapeDelta
	}

	d.params.FeeRateBps = utils.ClampInt64(d.params.FeeRateBps, 0, cfg.MaxFeeBps)
	d.params.CurveShapeParam = utils.ClampInt64(d.params.CurveShapeParam, 0, cfg.CurveShapeCeiling)

	return types.ParameterSuggestion{
		Proposed:   d.params,
		RuleFired:  d.ruleFired,
		Confidence: d.confidence,
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
