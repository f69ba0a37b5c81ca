package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evoarena/agent/internal/logger"
	"github.com/evoarena/agent/internal/types"
)

func init() {
	logger.Initialize("error")
}

// rpcStub serves canned JSON-RPC results keyed by method name.
type rpcStub struct {
	t        *testing.T
	results  map[string]interface{}
	rpcError *rpcError
	calls    map[string]int
	failures int // initial requests answered with HTTP 500
}

func (s *rpcStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))

		if s.calls == nil {
			s.calls = map[string]int{}
		}
		s.calls[req.Method]++

		if s.failures > 0 {
			s.failures--
			http.Error(w, "upstream unavailable", http.StatusInternalServerError)
			return
		}

		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
		if s.rpcError != nil {
			resp.Error = s.rpcError
		} else {
			raw, err := json.Marshal(s.results[req.Method])
			require.NoError(s.t, err)
			resp.Result = raw
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(s.t, json.NewEncoder(w).Encode(resp))
	}
}

func newTestClient(t *testing.T, stub *rpcStub) (*Client, *httptest.Server) {
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, "evo1pool", "evo1controller", "evo1agent", "deadbeef")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, server
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("", "pool", "ctrl", "agent", "key")
	require.Error(t, err)

	_, err = NewClient("http://localhost:1234", "", "ctrl", "agent", "key")
	require.Error(t, err)

	_, err = NewClient("http://localhost:1234", "pool", "", "agent", "key")
	require.Error(t, err)

	_, err = NewClient("http://localhost:1234", "pool", "ctrl", "", "key")
	require.Error(t, err)

	client, err := NewClient("http://localhost:1234", "pool", "ctrl", "agent", "key")
	require.NoError(t, err)
	require.Equal(t, "agent", client.AgentAddress())
}

func TestGetPoolState(t *testing.T) {
	stub := &rpcStub{t: t, results: map[string]interface{}{
		"evo_getPoolState": poolStateDTO{
			ReserveA:          "100000",
			ReserveB:          "50000",
			FeeBps:            30,
			CurveShape:        5000,
			CurveMode:         0,
			TradeCount:        12,
			CumulativeVolumeA: "900000",
			CumulativeVolumeB: "450000",
			BlockNumber:       777,
		},
	}}
	client, _ := newTestClient(t, stub)

	state, err := client.GetPoolState(context.Background())
	require.NoError(t, err)

	require.Equal(t, "100000", state.Reserves.ReserveA.String())
	require.Equal(t, "50000", state.Reserves.ReserveB.String())
	require.Equal(t, int64(30), state.Params.FeeRateBps)
	require.Equal(t, int64(5000), state.Params.CurveShapeParam)
	require.Equal(t, types.CurveModeNormal, state.Params.CurveMode)
	require.Equal(t, int64(12), state.TradeCount)
	require.Equal(t, int64(777), state.BlockNumber)
}

func TestGetPoolStateRejectsUnknownCurveMode(t *testing.T) {
	stub := &rpcStub{t: t, results: map[string]interface{}{
		"evo_getPoolState": poolStateDTO{
			ReserveA:  "1",
			ReserveB:  "1",
			CurveMode: 9,
		},
	}}
	client, _ := newTestClient(t, stub)

	_, err := client.GetPoolState(context.Background())
	require.ErrorContains(t, err, "unknown curve mode")
}

func TestGetPoolStateRejectsMalformedMagnitude(t *testing.T) {
	stub := &rpcStub{t: t, results: map[string]interface{}{
		"evo_getPoolState": poolStateDTO{
			ReserveA: "not-a-number",
			ReserveB: "1",
		},
	}}
	client, _ := newTestClient(t, stub)

	_, err := client.GetPoolState(context.Background())
	require.ErrorContains(t, err, "invalid magnitude")
}

func TestGetRecentTrades(t *testing.T) {
	stub := &rpcStub{t: t, results: map[string]interface{}{
		"evo_getRecentTrades": []tradeEventDTO{
			{Sender: "evo1a", AToB: true, AmountIn: "1000", AmountOut: "990", FeeAmount: "3", BlockNumber: 101},
			{Sender: "evo1b", AToB: false, AmountIn: "2500", AmountOut: "2480", FeeAmount: "8", BlockNumber: 102},
		},
	}}
	client, _ := newTestClient(t, stub)

	trades, err := client.GetRecentTrades(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	require.Equal(t, "evo1a", trades[0].Sender)
	require.True(t, trades[0].AToB)
	require.Equal(t, "1000", trades[0].AmountIn.String())
	require.Equal(t, int64(101), trades[0].BlockNumber)
	require.False(t, trades[1].AToB)
}

func TestGetUpdateLimits(t *testing.T) {
	stub := &rpcStub{t: t, results: map[string]interface{}{
		"evo_getUpdateLimits": updateLimitsDTO{
			MaxFeeDeltaBps:     50,
			MaxCurveShapeDelta: 2000,
			MaxFeeBps:          500,
		},
	}}
	client, _ := newTestClient(t, stub)

	limits, err := client.GetUpdateLimits(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(50), limits.MaxFeeDeltaBps)
	require.Equal(t, int64(2000), limits.MaxCurveShapeDelta)
	require.Equal(t, int64(500), limits.MaxFeeBps)
}

func TestSubmitParameterUpdate(t *testing.T) {
	stub := &rpcStub{t: t, results: map[string]interface{}{
		"evo_submitParameterUpdate": submitResultDTO{TxHash: "0xabc", BlockNumber: 900},
	}}
	client, _ := newTestClient(t, stub)

	result, err := client.SubmitParameterUpdate(context.Background(), types.ParameterSet{
		FeeRateBps:      50,
		CurveShapeParam: 5500,
		CurveMode:       types.CurveModeDefensive,
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "0xabc", result.TxHash)
	require.Equal(t, int64(900), result.BlockNumber)
}

func TestContractRejectionIsNotRetried(t *testing.T) {
	stub := &rpcStub{t: t, rpcError: &rpcError{Code: -32000, Message: "fee delta exceeds limit"}}
	client, _ := newTestClient(t, stub)

	result, err := client.SubmitParameterUpdate(context.Background(), types.ParameterSet{FeeRateBps: 400})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, "fee delta exceeds limit", result.ErrorMessage)

	// A contract rejection is deterministic; repeating it burns the
	// retry budget for nothing.
	require.Equal(t, 1, stub.calls["evo_submitParameterUpdate"])
}

func TestTransientServerErrorIsRetried(t *testing.T) {
	stub := &rpcStub{
		t:        t,
		failures: 2,
		results: map[string]interface{}{
			"evo_getUpdateLimits": updateLimitsDTO{MaxFeeDeltaBps: 50, MaxCurveShapeDelta: 2000, MaxFeeBps: 500},
		},
	}
	client, _ := newTestClient(t, stub)

	limits, err := client.GetUpdateLimits(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(50), limits.MaxFeeDeltaBps)
	require.Equal(t, 3, stub.calls["evo_getUpdateLimits"])
}
