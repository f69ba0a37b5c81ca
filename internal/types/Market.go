/*

This file contains the types describing observed market activity on the pool:
raw trade events read from the ledger and the derived per-epoch features.

*/

package types

import (
	"cosmossdk.io/math"
)

// TradeEvent is one executed swap as emitted by the pool contract.
// Events are consumed read-only and in arrival order; the streaming
// volatility estimate depends on that ordering.
type TradeEvent struct {
	Sender      string   `json:"sender"`
	AToB        bool     `json:"a_to_b"`       // true if asset A was sold into the pool
	AmountIn    math.Int `json:"amount_in"`    // raw base units of the sold asset
	AmountOut   math.Int `json:"amount_out"`   // raw base units of the received asset
	FeeAmount   math.Int `json:"fee_amount"`   // fee charged on this trade, in input units
	BlockNumber int64    `json:"block_number"` // sequence index on the ledger
}

// ReserveSnapshot holds the two pool reserves at the moment features are
// computed. Refreshed once per epoch.
type ReserveSnapshot struct {
	ReserveA math.Int `json:"reserve_a"`
	ReserveB math.Int `json:"reserve_b"`
}

// MarketFeatures is the derived, transient output of one feature
// extraction pass over a trade window.
type MarketFeatures struct {
	Volatility     float64 `json:"volatility"`       // EMA volatility, unit-less fraction (0.03 = 3%)
	TradeVelocity  int     `json:"trade_velocity"`   // trades observed in the window
	WhaleDetected  bool    `json:"whale_detected"`   // any single trade above the whale ratio threshold
	MaxWhaleRatio  float64 `json:"max_whale_ratio"`  // largest trade / relevant-side reserve
	AvgTradeSize   float64 `json:"avg_trade_size"`   // mean input amount over the window
	PriceChangeAbs float64 `json:"price_change_abs"` // residual price drift not explained by the window
}
