package ledger

import (
	"context"

	"github.com/evoarena/agent/internal/types"
)

// PoolClient defines the interface for interacting with the ledger-side
// pool and controller contracts. It abstracts away the node transport so
// the controller loop can run against a live node or a stub in tests.
//
// Implementations own all retry, timeout, and failure-recording policy;
// the core components behind this boundary never block or perform I/O.
type PoolClient interface {
	// GetPoolState reads the pool's reserves, current parameters, trade
	// count, and cumulative volumes. Fetched once per epoch.
	GetPoolState(ctx context.Context) (*types.PoolState, error)

	// GetRecentTrades returns the ordered trade events for the trailing
	// window of blockRange blocks. Ordering follows ledger sequence.
	GetRecentTrades(ctx context.Context, blockRange int64) ([]types.TradeEvent, error)

	// GetUpdateLimits reads the controller contract's stored per-update
	// bounds. Local clamping must mirror these exactly.
	GetUpdateLimits(ctx context.Context) (*types.UpdateLimits, error)

	// SubmitParameterUpdate submits the proposed parameters as a single
	// atomic update. Callers are responsible for the idempotence check
	// (skip when proposed equals current).
	SubmitParameterUpdate(ctx context.Context, proposed types.ParameterSet) (*types.TransactionResult, error)

	// AgentAddress returns the on-ledger identity updates are signed with.
	AgentAddress() string

	// Close releases any transport resources.
	Close() error
}
