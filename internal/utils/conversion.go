/*
This file contains common utility functions for converting between raw
ledger magnitudes and the float64 values the analysis math runs on.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
)

// RawIntToFloat64 converts a raw base-unit magnitude to float64 without
// any decimal scaling. Nil or negative amounts convert to 0; the feature
// math treats degenerate inputs as absent rather than erroring.
func RawIntToFloat64(amount sdkmath.Int) float64 {
	if amount.IsNil() || amount.IsNegative() {
		return 0
	}
	f, _ := new(big.Float).SetInt(amount.BigInt()).Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ScaledIntToFloat64 converts a base-unit magnitude to a display value
// with the given decimal precision. Used for reporting cumulative volumes.
func ScaledIntToFloat64(amount sdkmath.Int, precision int) (float64, error) {
	if precision < 0 || precision > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	decAmount := sdkmath.LegacyNewDecFromInt(amount)
	factor := sdkmath.LegacyNewDec(10).Power(uint64(precision))

	result, err := decAmount.Quo(factor).Float64()
	if err != nil {
		return 0, err
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, result)
	}
	return result, nil
}

// BpsToFraction converts a basis-point value to its fractional form
// (30 bps -> 0.003).
func BpsToFraction(bps int64) float64 {
	return float64(bps) / 10000.0
}

// ClampInt64 limits v to the inclusive range [lo, hi].
func ClampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
