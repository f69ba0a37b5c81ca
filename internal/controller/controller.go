package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/evoarena/agent/internal/analyzer"
	"github.com/evoarena/agent/internal/ledger"
	"github.com/evoarena/agent/internal/logger"
	"github.com/evoarena/agent/internal/scoring"
	"github.com/evoarena/agent/internal/state"
	"github.com/evoarena/agent/internal/strategy"
	"github.com/evoarena/agent/internal/types"
	"github.com/evoarena/agent/internal/utils"
)

// Proxy constants for deriving baseline observables when the ledger
// exposes no per-baseline telemetry. The static pool is assumed to trade
// at 1% slippage; the defensive and adaptive curves are credited with the
// damping measured during calibration.
const (
	staticSlippageProxy   = 0.01
	tunedSlippageProxy    = 0.007
	adaptiveVolRetention  = 0.7
	defensiveVolRetention = 0.8
	volumePerTradeProxy   = 100.0
	feeRevenuePerFeeUnit  = 0.01
)

// displayDecimals is the decimal precision cumulative volumes are logged at.
const displayDecimals = 6

// Controller drives the full per-epoch pipeline for one strategy agent:
// ledger read, feature extraction, rule evaluation, bounded submission,
// and performance scoring against the static baseline.
type Controller struct {
	// Core dependencies
	logger    zerolog.Logger
	pool      ledger.PoolClient
	extractor *analyzer.FeatureExtractor
	params    *types.StrategyParameters

	// Configuration
	configName        string
	configVersion     int
	tradeWindowBlocks int64
	dryRun            bool
}

// Config holds the configuration for creating a new Controller instance
type Config struct {
	PoolClient        ledger.PoolClient
	Extractor         *analyzer.FeatureExtractor
	StrategyParams    *types.StrategyParameters
	ConfigName        string
	ConfigVersion     int
	TradeWindowBlocks int64
	DryRun            bool
}

// NewController creates a new Controller instance with dependency injection
func NewController(cfg Config) (*Controller, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("controller configuration validation failed: %w", err)
	}

	c := &Controller{
		logger:            logger.GetForComponent("controller"),
		pool:              cfg.PoolClient,
		extractor:         cfg.Extractor,
		params:            cfg.StrategyParams,
		configName:        cfg.ConfigName,
		configVersion:     cfg.ConfigVersion,
		tradeWindowBlocks: cfg.TradeWindowBlocks,
		dryRun:            cfg.DryRun,
	}

	c.logger.Info().
		Str("configName", c.configName).
		Int("configVersion", c.configVersion).
		Bool("dryRun", c.dryRun).
		Msg("Controller instance created successfully")

	return c, nil
}

// validateConfig validates the controller configuration
func validateConfig(cfg Config) error {
	if cfg.PoolClient == nil {
		return fmt.Errorf("pool client cannot be nil")
	}
	if cfg.Extractor == nil {
		return fmt.Errorf("feature extractor cannot be nil")
	}
	if cfg.StrategyParams == nil {
		return fmt.Errorf("strategy parameters cannot be nil")
	}
	if cfg.ConfigName == "" {
		return fmt.Errorf("config name cannot be empty")
	}
	if cfg.ConfigVersion <= 0 {
		return fmt.Errorf("config version must be positive")
	}
	if cfg.TradeWindowBlocks <= 0 {
		return fmt.Errorf("trade window must be positive")
	}
	return nil
}

// RunLoop starts the main polling loop with the specified interval
func (c *Controller) RunLoop(ctx context.Context, interval time.Duration) {
	c.logger.Info().
		Dur("interval", interval).
		Msg("Starting controller main loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run first epoch immediately
	c.RunEpoch(ctx)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Controller loop stopped due to context cancellation")
			return
		case <-ticker.C:
			c.RunEpoch(ctx)
		}
	}
}

// RunEpoch executes one complete polling epoch. Every step failure is
// logged and aborts this epoch only; the next tick always gets a clean
// attempt, so one failed epoch never blocks future submissions.
func (c *Controller) RunEpoch(ctx context.Context) {
	epochStartTime := time.Now()

	// Unique epoch ID for tracing logs across the entire epoch
	epochID := uuid.New().String()
	epochLogger := c.logger.With().Str("epoch_id", epochID).Logger()

	epoch := c.nextEpochNumber()
	epochLogger.Info().Int("epoch", epoch).Msg("--- Starting Epoch ---")

	// --- Step 1: Ledger reads ---
	poolState, err := c.pool.GetPoolState(ctx)
	if err != nil {
		epochLogger.Error().Err(err).Msg("Epoch aborted: failed to read pool state.")
		return
	}

	// Cumulative volumes are reported in display units for the log only.
	volumeA, _ := utils.ScaledIntToFloat64(poolState.CumulativeVolumeA, displayDecimals)
	volumeB, _ := utils.ScaledIntToFloat64(poolState.CumulativeVolumeB, displayDecimals)

	epochLogger.Info().
		Str("reserveA", poolState.Reserves.ReserveA.String()).
		Str("reserveB", poolState.Reserves.ReserveB.String()).
		Float64("feeRate", utils.BpsToFraction(poolState.Params.FeeRateBps)).
		Int64("curveShape", poolState.Params.CurveShapeParam).
		Str("curveMode", poolState.Params.CurveMode.String()).
		Int64("tradeCount", poolState.TradeCount).
		Float64("cumulativeVolumeA", volumeA).
		Float64("cumulativeVolumeB", volumeB).
		Msg("Step 1: Pool state read.")

	trades, err := c.pool.GetRecentTrades(ctx, c.tradeWindowBlocks)
	if err != nil {
		epochLogger.Error().Err(err).Msg("Epoch aborted: failed to read trade window.")
		return
	}
	epochLogger.Info().Int("trades", len(trades)).Msg("Step 1: Trade window read.")

	// The decision engine must clamp with the controller contract's own
	// limits, or the local check stops being a subset of the remote
	// enforcement. Re-read them every epoch and overlay the local config.
	engineParams := *c.params
	limits, err := c.pool.GetUpdateLimits(ctx)
	if err != nil {
		epochLogger.Warn().Err(err).Msg("Failed to read on-ledger update limits, using configured values.")
	} else {
		if limits.MaxFeeDeltaBps != engineParams.MaxFeeDeltaBps ||
			limits.MaxCurveShapeDelta != engineParams.MaxCurveShapeDelta ||
			limits.MaxFeeBps != engineParams.MaxFeeBps {
			epochLogger.Warn().
				Int64("ledgerMaxFeeDelta", limits.MaxFeeDeltaBps).
				Int64("configMaxFeeDelta", engineParams.MaxFeeDeltaBps).
				Msg("Configured limits differ from on-ledger limits; ledger values take precedence.")
		}
		engineParams.MaxFeeDeltaBps = limits.MaxFeeDeltaBps
		engineParams.MaxCurveShapeDelta = limits.MaxCurveShapeDelta
		engineParams.MaxFeeBps = limits.MaxFeeBps
	}

	// --- Step 2: Feature extraction ---
	features := c.extractor.ComputeFeatures(trades, poolState.Reserves, engineParams.WhaleRatioThreshold)

	epochLogger.Info().
		Float64("volatility", features.Volatility).
		Int("tradeVelocity", features.TradeVelocity).
		Bool("whaleDetected", features.WhaleDetected).
		Float64("maxWhaleRatio", features.MaxWhaleRatio).
		Float64("priceChangeAbs", features.PriceChangeAbs).
		Msg("Step 2: Market features computed.")

	// --- Step 3: Rule evaluation ---
	suggestion := strategy.ComputeSuggestion(features, poolState.Params, engineParams)

	epochLogger.Info().
		Str("ruleFired", suggestion.RuleFired).
		Float64("confidence", suggestion.Confidence).
		Int64("proposedFeeBps", suggestion.Proposed.FeeRateBps).
		Int64("proposedCurveShape", suggestion.Proposed.CurveShapeParam).
		Str("proposedCurveMode", suggestion.Proposed.CurveMode.String()).
		Msg("Step 3: Parameter suggestion computed.")

	// --- Step 4: Submission ---
	record := types.UpdateRecord{
		Timestamp:      time.Now().UTC(),
		Epoch:          epoch,
		AgentID:        c.pool.AgentAddress(),
		Features:       features,
		RuleFired:      suggestion.RuleFired,
		Confidence:     suggestion.Confidence,
		CurrentParams:  poolState.Params,
		ProposedParams: suggestion.Proposed,
		DryRun:         c.dryRun,
	}

	switch {
	case suggestion.Proposed.Equal(poolState.Params):
		record.Outcome = "skipped-no-change"
		epochLogger.Info().Msg("Step 4: No parameter change needed, skipping submission.")
	case c.dryRun:
		record.Outcome = "dry-run"
		epochLogger.Info().Msg("Step 4: Dry-run mode, submission suppressed.")
	default:
		txResult, err := c.pool.SubmitParameterUpdate(ctx, suggestion.Proposed)
		if err != nil {
			// Transport failure: non-fatal, recorded, next epoch retries fresh.
			record.Outcome = "failed: " + err.Error()
			epochLogger.Error().Err(err).Msg("Step 4: Parameter update submission failed.")
		} else if !txResult.Success {
			record.Outcome = "failed: " + txResult.ErrorMessage
			epochLogger.Warn().Str("reason", txResult.ErrorMessage).Msg("Step 4: Parameter update rejected by ledger.")
		} else {
			record.Outcome = "submitted"
			record.TxHash = txResult.TxHash
			epochLogger.Info().Str("txHash", txResult.TxHash).Msg("Step 4: Parameter update submitted.")
		}
	}

	c.saveUpdateRecord(record, epochLogger)

	// --- Step 5: Performance scoring ---
	inputs := c.deriveScoreInputs(poolState, features, suggestion)
	snapshot := scoring.ComputeScore(inputs, epoch, c.pool.AgentAddress())

	epochLogger.Info().
		Float64("aps", snapshot.Score).
		Float64("lpReturnDelta", snapshot.LpReturnDelta).
		Float64("slippageReduction", snapshot.SlippageReduction).
		Float64("volatilityCompression", snapshot.VolatilityCompression).
		Msg("Step 5: Performance score computed.")

	c.savePerformanceSnapshot(snapshot, epochLogger)

	epochLogger.Info().
		Str("epochDuration", time.Since(epochStartTime).String()).
		Msg("--- Epoch Completed ---")
}

// deriveScoreInputs builds the paired baseline/agent observables for the
// scoring engine. The ledger exposes no per-baseline telemetry, so the
// baseline is modeled from the configured static fee and the curve mode's
// calibrated damping factors.
func (c *Controller) deriveScoreInputs(
	poolState *types.PoolState,
	features types.MarketFeatures,
	suggestion types.ParameterSuggestion,
) types.ScoreInputs {
	tradeCount := float64(poolState.TradeCount)
	staticFee := float64(c.params.BaseFeeBps)
	agentFee := float64(suggestion.Proposed.FeeRateBps)

	agentSlippage := staticSlippageProxy
	if suggestion.Proposed.CurveMode != types.CurveModeNormal {
		agentSlippage = tunedSlippageProxy
	}

	agentVol := features.Volatility
	switch suggestion.Proposed.CurveMode {
	case types.CurveModeVolatilityAdaptive:
		agentVol = features.Volatility * adaptiveVolRetention
	case types.CurveModeDefensive:
		agentVol = features.Volatility * defensiveVolRetention
	}

	return types.ScoreInputs{
		StaticLpReturn:   staticFee * tradeCount,
		AgentLpReturn:    agentFee * tradeCount,
		StaticSlippage:   staticSlippageProxy,
		AgentSlippage:    agentSlippage,
		StaticVolatility: features.Volatility,
		AgentVolatility:  agentVol,
		TotalFeeRevenue:  agentFee * tradeCount * feeRevenuePerFeeUnit,
		TotalVolume:      tradeCount * volumePerTradeProxy,
	}
}

// nextEpochNumber increments and returns the persistent epoch counter from database
func (c *Controller) nextEpochNumber() int {
	epoch, err := state.IncrementEpoch()
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to increment epoch counter, using fallback")
		// Fallback to a timestamp-derived counter if the database fails
		return int(time.Now().Unix() % 1000000)
	}
	return epoch
}

// saveUpdateRecord persists the submission audit record; persistence
// failures are logged, never fatal to the epoch.
func (c *Controller) saveUpdateRecord(record types.UpdateRecord, epochLogger zerolog.Logger) {
	recordID, err := state.SaveUpdateRecord(record)
	if err != nil {
		epochLogger.Error().Err(err).Msg("Failed to save update record to database")
		return
	}
	epochLogger.Info().Int64("record_id", recordID).Msg("Update record saved")
}

// savePerformanceSnapshot persists the epoch's APS snapshot.
func (c *Controller) savePerformanceSnapshot(snapshot types.PerformanceSnapshot, epochLogger zerolog.Logger) {
	snapshotID, err := state.SavePerformanceSnapshot(snapshot)
	if err != nil {
		epochLogger.Error().Err(err).Msg("Failed to save performance snapshot to database")
		return
	}
	epochLogger.Info().Int64("snapshot_id", snapshotID).Msg("Performance snapshot saved")
}
