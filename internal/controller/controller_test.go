package controller

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/evoarena/agent/internal/analyzer"
	"github.com/evoarena/agent/internal/config"
	"github.com/evoarena/agent/internal/logger"
	"github.com/evoarena/agent/internal/types"
)

func init() {
	logger.Initialize("error")
}

// stubPoolClient is an in-memory PoolClient for exercising the epoch
// pipeline without a node or database.
type stubPoolClient struct {
	state       *types.PoolState
	trades      []types.TradeEvent
	limits      *types.UpdateLimits
	stateErr    error
	tradesErr   error
	submitErr   error
	submitted   []types.ParameterSet
	submitReply *types.TransactionResult
}

func (s *stubPoolClient) GetPoolState(ctx context.Context) (*types.PoolState, error) {
	if s.stateErr != nil {
		return nil, s.stateErr
	}
	return s.state, nil
}

func (s *stubPoolClient) GetRecentTrades(ctx context.Context, blockRange int64) ([]types.TradeEvent, error) {
	if s.tradesErr != nil {
		return nil, s.tradesErr
	}
	return s.trades, nil
}

func (s *stubPoolClient) GetUpdateLimits(ctx context.Context) (*types.UpdateLimits, error) {
	if s.limits == nil {
		return nil, errors.New("limits unavailable")
	}
	return s.limits, nil
}

func (s *stubPoolClient) SubmitParameterUpdate(ctx context.Context, proposed types.ParameterSet) (*types.TransactionResult, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	s.submitted = append(s.submitted, proposed)
	if s.submitReply != nil {
		return s.submitReply, nil
	}
	return &types.TransactionResult{TxHash: "0xstub", Success: true}, nil
}

func (s *stubPoolClient) AgentAddress() string { return "evo1stubagent" }

func (s *stubPoolClient) Close() error { return nil }

func defaultStub() *stubPoolClient {
	return &stubPoolClient{
		state: &types.PoolState{
			Reserves: types.ReserveSnapshot{
				ReserveA: sdkmath.NewInt(100000),
				ReserveB: sdkmath.NewInt(100000),
			},
			Params: types.ParameterSet{
				FeeRateBps:      30,
				CurveShapeParam: 5000,
				CurveMode:       types.CurveModeNormal,
			},
			TradeCount:  10,
			BlockNumber: 1000,
		},
		limits: &types.UpdateLimits{
			MaxFeeDeltaBps:     50,
			MaxCurveShapeDelta: 2000,
			MaxFeeBps:          500,
		},
	}
}

func newTestController(t *testing.T, pool *stubPoolClient, dryRun bool) *Controller {
	t.Helper()

	params := config.DefaultStrategyParameters
	extractor, err := analyzer.NewFeatureExtractor(params.EmaSmoothingFactor)
	require.NoError(t, err)

	c, err := NewController(Config{
		PoolClient:        pool,
		Extractor:         extractor,
		StrategyParams:    &params,
		ConfigName:        config.StrategyConfigName,
		ConfigVersion:     config.StrategyConfigVersion,
		TradeWindowBlocks: 100,
		DryRun:            dryRun,
	})
	require.NoError(t, err)
	return c
}

func TestNewControllerValidation(t *testing.T) {
	params := config.DefaultStrategyParameters
	extractor, err := analyzer.NewFeatureExtractor(params.EmaSmoothingFactor)
	require.NoError(t, err)

	valid := Config{
		PoolClient:        defaultStub(),
		Extractor:         extractor,
		StrategyParams:    &params,
		ConfigName:        "test",
		ConfigVersion:     1,
		TradeWindowBlocks: 100,
	}

	_, err = NewController(valid)
	require.NoError(t, err)

	broken := valid
	broken.PoolClient = nil
	_, err = NewController(broken)
	require.ErrorContains(t, err, "pool client")

	broken = valid
	broken.Extractor = nil
	_, err = NewController(broken)
	require.ErrorContains(t, err, "feature extractor")

	broken = valid
	broken.StrategyParams = nil
	_, err = NewController(broken)
	require.ErrorContains(t, err, "strategy parameters")

	broken = valid
	broken.ConfigName = ""
	_, err = NewController(broken)
	require.ErrorContains(t, err, "config name")

	broken = valid
	broken.TradeWindowBlocks = 0
	_, err = NewController(broken)
	require.ErrorContains(t, err, "trade window")
}

func TestEpochSkipsSubmissionWhenNoChange(t *testing.T) {
	// Empty trade window, thin market: the relax rule targets exactly the
	// parameters the pool already has, so nothing should be submitted.
	pool := defaultStub()
	c := newTestController(t, pool, false)

	c.RunEpoch(context.Background())

	require.Empty(t, pool.submitted)
}

func TestEpochSubmitsWhenParametersChange(t *testing.T) {
	pool := defaultStub()
	pool.state.Params = types.ParameterSet{
		FeeRateBps:      100,
		CurveShapeParam: 6000,
		CurveMode:       types.CurveModeVolatilityAdaptive,
	}
	c := newTestController(t, pool, false)

	c.RunEpoch(context.Background())

	require.Len(t, pool.submitted, 1)
	proposed := pool.submitted[0]

	// The thin-market relax rule targets the baseline set; the fee move
	// from 100 to 30 is truncated by the per-epoch delta limit.
	require.Equal(t, int64(50), proposed.FeeRateBps)
	require.Equal(t, int64(5000), proposed.CurveShapeParam)
	require.Equal(t, types.CurveModeNormal, proposed.CurveMode)
}

func TestDryRunSuppressesSubmission(t *testing.T) {
	pool := defaultStub()
	pool.state.Params = types.ParameterSet{
		FeeRateBps:      100,
		CurveShapeParam: 6000,
		CurveMode:       types.CurveModeVolatilityAdaptive,
	}
	c := newTestController(t, pool, true)

	c.RunEpoch(context.Background())

	require.Empty(t, pool.submitted)
}

func TestEpochAbortsOnPoolStateError(t *testing.T) {
	pool := defaultStub()
	pool.stateErr = errors.New("node unreachable")
	c := newTestController(t, pool, false)

	require.NotPanics(t, func() { c.RunEpoch(context.Background()) })
	require.Empty(t, pool.submitted)
}

func TestEpochAbortsOnTradeWindowError(t *testing.T) {
	pool := defaultStub()
	pool.tradesErr = errors.New("node unreachable")
	c := newTestController(t, pool, false)

	require.NotPanics(t, func() { c.RunEpoch(context.Background()) })
	require.Empty(t, pool.submitted)
}

func TestSubmissionFailureDoesNotPanic(t *testing.T) {
	pool := defaultStub()
	pool.state.Params = types.ParameterSet{
		FeeRateBps:      100,
		CurveShapeParam: 6000,
		CurveMode:       types.CurveModeVolatilityAdaptive,
	}
	pool.submitErr = errors.New("broadcast failed")
	c := newTestController(t, pool, false)

	require.NotPanics(t, func() { c.RunEpoch(context.Background()) })
}

func TestLedgerLimitsOverrideConfiguredLimits(t *testing.T) {
	pool := defaultStub()
	pool.state.Params = types.ParameterSet{
		FeeRateBps:      100,
		CurveShapeParam: 5000,
		CurveMode:       types.CurveModeNormal,
	}
	// Tighter on-ledger fee delta than the local config carries.
	pool.limits = &types.UpdateLimits{
		MaxFeeDeltaBps:     10,
		MaxCurveShapeDelta: 2000,
		MaxFeeBps:          500,
	}
	c := newTestController(t, pool, false)

	c.RunEpoch(context.Background())

	require.Len(t, pool.submitted, 1)
	// Relax target is 30, but the ledger only allows a 10 bps move per
	// epoch.
	require.Equal(t, int64(90), pool.submitted[0].FeeRateBps)
}

func TestWhaleTradeTriggersDefensiveSubmission(t *testing.T) {
	pool := defaultStub()
	pool.state.TradeCount = 20
	pool.trades = []types.TradeEvent{
		{Sender: "evo1whale", AToB: true, AmountIn: sdkmath.NewInt(6000), AmountOut: sdkmath.NewInt(5900), FeeAmount: sdkmath.NewInt(18)},
		{Sender: "evo1fish", AToB: true, AmountIn: sdkmath.NewInt(100), AmountOut: sdkmath.NewInt(99), FeeAmount: sdkmath.NewInt(1)},
		{Sender: "evo1fish", AToB: false, AmountIn: sdkmath.NewInt(200), AmountOut: sdkmath.NewInt(198), FeeAmount: sdkmath.NewInt(1)},
		{Sender: "evo1fish", AToB: true, AmountIn: sdkmath.NewInt(150), AmountOut: sdkmath.NewInt(148), FeeAmount: sdkmath.NewInt(1)},
		{Sender: "evo1fish", AToB: false, AmountIn: sdkmath.NewInt(120), AmountOut: sdkmath.NewInt(119), FeeAmount: sdkmath.NewInt(1)},
	}
	c := newTestController(t, pool, false)

	c.RunEpoch(context.Background())

	require.Len(t, pool.submitted, 1)
	proposed := pool.submitted[0]
	require.Equal(t, types.CurveModeDefensive, proposed.CurveMode)
	require.Equal(t, int64(5500), proposed.CurveShapeParam)
}

func TestDeriveScoreInputsUsesCurveModeProxies(t *testing.T) {
	pool := defaultStub()
	c := newTestController(t, pool, true)

	features := types.MarketFeatures{Volatility: 0.04, TradeVelocity: 10}
	suggestion := types.ParameterSuggestion{
		Proposed: types.ParameterSet{
			FeeRateBps:      50,
			CurveShapeParam: 5000,
			CurveMode:       types.CurveModeVolatilityAdaptive,
		},
		RuleFired:  "high-volatility",
		Confidence: 0.8,
	}

	inputs := c.deriveScoreInputs(pool.state, features, suggestion)

	require.InDelta(t, 300.0, inputs.StaticLpReturn, 1e-9) // 30 bps * 10 trades
	require.InDelta(t, 500.0, inputs.AgentLpReturn, 1e-9)  // 50 bps * 10 trades
	require.Equal(t, staticSlippageProxy, inputs.StaticSlippage)
	require.Equal(t, tunedSlippageProxy, inputs.AgentSlippage)
	require.InDelta(t, 0.04, inputs.StaticVolatility, 1e-12)
	require.InDelta(t, 0.04*adaptiveVolRetention, inputs.AgentVolatility, 1e-12)
	require.InDelta(t, 500.0*feeRevenuePerFeeUnit, inputs.TotalFeeRevenue, 1e-9)
	require.InDelta(t, 10*volumePerTradeProxy, inputs.TotalVolume, 1e-9)
}

func TestDeriveScoreInputsNormalModeKeepsBaselineProxies(t *testing.T) {
	pool := defaultStub()
	c := newTestController(t, pool, true)

	features := types.MarketFeatures{Volatility: 0.01}
	suggestion := types.ParameterSuggestion{
		Proposed:  pool.state.Params,
		RuleFired: "no-change",
	}

	inputs := c.deriveScoreInputs(pool.state, features, suggestion)

	require.Equal(t, inputs.StaticSlippage, inputs.AgentSlippage)
	require.Equal(t, inputs.StaticVolatility, inputs.AgentVolatility)
	require.Equal(t, inputs.StaticLpReturn, inputs.AgentLpReturn)
}
