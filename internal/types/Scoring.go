/*

This file contains the types for the agent performance score (APS): the
per-epoch snapshot appended to history and the raw observables it is
computed from.

*/

package types

import "time"

// ScoreInputs carries the raw paired (static baseline, agent) observables
// for one epoch. Every input is kept alongside the derived fields so a
// snapshot is fully reproducible.
type ScoreInputs struct {
	StaticLpReturn   float64 `json:"static_lp_return"`
	AgentLpReturn    float64 `json:"agent_lp_return"`
	StaticSlippage   float64 `json:"static_slippage"`
	AgentSlippage    float64 `json:"agent_slippage"`
	StaticVolatility float64 `json:"static_volatility"`
	AgentVolatility  float64 `json:"agent_volatility"`
	TotalFeeRevenue  float64 `json:"total_fee_revenue"`
	TotalVolume      float64 `json:"total_volume"`
}

// PerformanceSnapshot is one immutable APS observation. Appended to the
// performance history keyed by agent identity and epoch; never mutated.
type PerformanceSnapshot struct {
	SnapshotID int64     `json:"snapshot_id,omitempty"` // assigned by the database
	Epoch      int       `json:"epoch"`
	Timestamp  time.Time `json:"timestamp"`
	AgentID    string    `json:"agent_id"`

	// Normalized component scores, pre-weighting and pre-clamping.
	LpReturnDelta         float64 `json:"lp_return_delta"`
	SlippageReduction     float64 `json:"slippage_reduction"`
	VolatilityCompression float64 `json:"volatility_compression"`
	FeeRevenueRatio       float64 `json:"fee_revenue_ratio"`

	// Composite weighted score, rounded to 4 decimal places.
	Score float64 `json:"aps"`

	Inputs ScoreInputs `json:"inputs"`
}
