// ./internal/state/parameters_store.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/evoarena/agent/internal/types"
	"github.com/rs/zerolog/log"
)

// SaveStrategyParameters saves a new version of strategy parameters.
func SaveStrategyParameters(params types.StrategyParameters, configName string, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE strategy_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		_, err = tx.Exec(stmtDeactivate, configName)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", configName, err)
		}
	}

	stmt := `
        INSERT INTO strategy_parameters (
            version, config_name, is_active, activated_at, created_at,
            ema_smoothing_factor, whale_ratio_threshold,
            volatility_high_threshold, volatility_low_threshold, low_volume_threshold,
            base_fee_bps, high_vol_fee_step_bps, mod_vol_fee_step_bps,
            whale_curve_shape_step, default_curve_shape,
            max_fee_delta_bps, max_curve_shape_delta, max_fee_bps, curve_shape_ceiling
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7,
            $8, $9, $10,
            $11, $12, $13,
            $14, $15,
            $16, $17, $18, $19
        ) RETURNING params_id;`

	var paramsID int64
	currentTime := time.Now()
	err = tx.QueryRow(
		stmt,
		version, configName, makeActive, currentTime, currentTime,
		params.EmaSmoothingFactor, params.WhaleRatioThreshold,
		params.VolatilityHighThreshold, params.VolatilityLowThreshold, params.LowVolumeThreshold,
		params.BaseFeeBps, params.HighVolFeeStepBps, params.ModVolFeeStepBps,
		params.WhaleCurveShapeStep, params.DefaultCurveShape,
		params.MaxFeeDeltaBps, params.MaxCurveShapeDelta, params.MaxFeeBps, params.CurveShapeCeiling,
	).Scan(&paramsID)

	if err != nil {
		return 0, fmt.Errorf("failed to insert strategy parameters: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("config", configName).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved strategy parameters")
	return paramsID, nil
}

// LoadActiveStrategyParameters loads the currently active strategy parameters.
func LoadActiveStrategyParameters(configName string) (*types.StrategyParameters, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT
            ema_smoothing_factor, whale_ratio_threshold,
            volatility_high_threshold, volatility_low_threshold, low_volume_threshold,
            base_fee_bps, high_vol_fee_step_bps, mod_vol_fee_step_bps,
            whale_curve_shape_step, default_curve_shape,
            max_fee_delta_bps, max_curve_shape_delta, max_fee_bps, curve_shape_ceiling
        FROM strategy_parameters
        WHERE config_name = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	p := &types.StrategyParameters{}
	row := DB.QueryRow(query, configName)
	err := row.Scan(
		&p.EmaSmoothingFactor, &p.WhaleRatioThreshold,
		&p.VolatilityHighThreshold, &p.VolatilityLowThreshold, &p.LowVolumeThreshold,
		&p.BaseFeeBps, &p.HighVolFeeStepBps, &p.ModVolFeeStepBps,
		&p.WhaleCurveShapeStep, &p.DefaultCurveShape,
		&p.MaxFeeDeltaBps, &p.MaxCurveShapeDelta, &p.MaxFeeBps, &p.CurveShapeCeiling,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no active strategy parameters found for config '%s'", configName)
		}
		return nil, fmt.Errorf("failed to scan active strategy parameters for config '%s': %w", configName, err)
	}
	log.Info().Str("config", configName).Msg("Loaded active strategy parameters")
	return p, nil
}

// GetActiveStrategyParametersID returns the params_id of the currently active strategy parameters
func GetActiveStrategyParametersID(configName string) (*int64, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT params_id
        FROM strategy_parameters
        WHERE config_name = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	var paramsID int64
	row := DB.QueryRow(query, configName)
	err := row.Scan(&paramsID)

	if err != nil {
		if err == sql.ErrNoRows {
			// No active parameters found - this is valid, return nil
			log.Debug().Str("config", configName).Msg("No active strategy parameters found")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active strategy parameters ID for config '%s': %w", configName, err)
	}

	return &paramsID, nil
}
