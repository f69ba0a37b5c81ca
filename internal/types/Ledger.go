/*

This file contains the types mirrored from the ledger contracts: the pool
state read each epoch, the controller's enforced update limits, and the
audit record persisted for every submission attempt.

*/

package types

import (
	"time"

	"cosmossdk.io/math"
)

// PoolState is the pool contract's state as read at the start of an epoch.
// Read-only to the agent.
type PoolState struct {
	Reserves          ReserveSnapshot `json:"reserves"`
	Params            ParameterSet    `json:"params"`
	TradeCount        int64           `json:"trade_count"`
	CumulativeVolumeA math.Int        `json:"cumulative_volume_a"`
	CumulativeVolumeB math.Int        `json:"cumulative_volume_b"`
	BlockNumber       int64           `json:"block_number"`
}

// UpdateLimits are the controller contract's stored per-update bounds.
// Local clamping must use the same values, or the local check stops being
// a subset of the remote enforcement.
type UpdateLimits struct {
	MaxFeeDeltaBps     int64 `json:"max_fee_delta_bps"`
	MaxCurveShapeDelta int64 `json:"max_curve_shape_delta"`
	MaxFeeBps          int64 `json:"max_fee_bps"`
}

// TransactionResult contains the outcome of one submitted ledger
// transaction.
type TransactionResult struct {
	TxHash       string `json:"tx_hash"`
	BlockNumber  int64  `json:"block_number,omitempty"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// UpdateRecord is the human-auditable record of one submission attempt,
// written whether or not the transaction was sent or succeeded.
type UpdateRecord struct {
	RecordID      int64          `json:"record_id,omitempty"` // assigned by the database
	Timestamp     time.Time      `json:"timestamp"`
	Epoch         int            `json:"epoch"`
	AgentID       string         `json:"agent_id"`
	Features      MarketFeatures `json:"features_used"`
	RuleFired     string         `json:"rule_fired"`
	Confidence    float64        `json:"confidence"`
	CurrentParams ParameterSet   `json:"current_params"`
	ProposedParams ParameterSet  `json:"proposed_params"`
	Outcome       string         `json:"outcome"` // "submitted", "skipped-no-change", "dry-run", or "failed: <reason>"
	TxHash        string         `json:"tx_hash,omitempty"`
	DryRun        bool           `json:"dry_run"`
}
