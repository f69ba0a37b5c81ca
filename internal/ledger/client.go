package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/evoarena/agent/internal/logger"
	"github.com/evoarena/agent/internal/types"
)

const (
	requestTimeout = 15 * time.Second
	maxRPCRetries  = 3
)

// Client is the live PoolClient implementation speaking JSON-RPC to a
// ledger node. Transient transport errors are retried with exponential
// backoff; contract-level rejections are returned to the caller as-is so
// they can be recorded rather than retried.
type Client struct {
	endpoint       string
	poolAddress    string
	controllerAddr string
	agentID        string
	agentKey       string
	httpClient     *http.Client
	logger         zerolog.Logger
	requestID      atomic.Int64
}

// NewClient creates a live ledger client. It performs no network call;
// the first epoch's reads surface connectivity problems.
func NewClient(endpoint, poolAddress, controllerAddr, agentID, agentKey string) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("ledger endpoint cannot be empty")
	}
	if poolAddress == "" || controllerAddr == "" {
		return nil, fmt.Errorf("pool and controller addresses cannot be empty")
	}
	if agentID == "" {
		return nil, fmt.Errorf("agent identity cannot be empty")
	}

	return &Client{
		endpoint:       endpoint,
		poolAddress:    poolAddress,
		controllerAddr: controllerAddr,
		agentID:        agentID,
		agentKey:       agentKey,
		httpClient:     &http.Client{Timeout: requestTimeout},
		logger:         logger.GetForComponent("ledger_client"),
	}, nil
}

// AgentAddress returns the on-ledger identity updates are signed with.
func (c *Client) AgentAddress() string {
	return c.agentID
}

// Close releases idle transport connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// --- wire envelope ---

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// contractError marks a ledger-side rejection; it is not retried.
type contractError struct {
	code    int
	message string
}

func (e *contractError) Error() string {
	return fmt.Sprintf("ledger rejected call (code %d): %s", e.code, e.message)
}

// call performs one JSON-RPC invocation with backoff on transport
// failures and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	var result json.RawMessage
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn().Err(err).Str("method", method).Msg("RPC transport error, will retry")
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("node returned status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("node returned status %d: %s", resp.StatusCode, body))
		}

		var decoded rpcResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode %s response: %w", method, err))
		}
		if decoded.Error != nil {
			// Contract-level rejection: the caller records it, no retry.
			return backoff.Permanent(&contractError{code: decoded.Error.Code, message: decoded.Error.Message})
		}
		result = decoded.Result
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRPCRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("%s call failed: %w", method, err)
	}

	if out != nil {
		if err := json.Unmarshal(result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

// --- wire DTOs ---

// poolStateDTO mirrors the node's evo_getPoolState result; magnitudes
// arrive as decimal strings.
type poolStateDTO struct {
	ReserveA          string `json:"reserveA"`
	ReserveB          string `json:"reserveB"`
	FeeBps            int64  `json:"feeBps"`
	CurveShape        int64  `json:"curveShape"`
	CurveMode         uint8  `json:"curveMode"`
	TradeCount        int64  `json:"tradeCount"`
	CumulativeVolumeA string `json:"cumulativeVolumeA"`
	CumulativeVolumeB string `json:"cumulativeVolumeB"`
	BlockNumber       int64  `json:"blockNumber"`
}

type tradeEventDTO struct {
	Sender      string `json:"sender"`
	AToB        bool   `json:"aToB"`
	AmountIn    string `json:"amountIn"`
	AmountOut   string `json:"amountOut"`
	FeeAmount   string `json:"feeAmount"`
	BlockNumber int64  `json:"blockNumber"`
}

type updateLimitsDTO struct {
	MaxFeeDeltaBps     int64 `json:"maxFeeDeltaBps"`
	MaxCurveShapeDelta int64 `json:"maxCurveShapeDelta"`
	MaxFeeBps          int64 `json:"maxFeeBps"`
}

type submitResultDTO struct {
	TxHash      string `json:"txHash"`
	BlockNumber int64  `json:"blockNumber"`
}

func parseMagnitude(field, raw string) (sdkmath.Int, error) {
	if raw == "" {
		return sdkmath.ZeroInt(), nil
	}
	v, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid magnitude for %s: %q", field, raw)
	}
	return v, nil
}

// GetPoolState reads the pool contract's current state.
func (c *Client) GetPoolState(ctx context.Context) (*types.PoolState, error) {
	var dto poolStateDTO
	if err := c.call(ctx, "evo_getPoolState", []interface{}{c.poolAddress}, &dto); err != nil {
		return nil, err
	}

	reserveA, err := parseMagnitude("reserveA", dto.ReserveA)
	if err != nil {
		return nil, err
	}
	reserveB, err := parseMagnitude("reserveB", dto.ReserveB)
	if err != nil {
		return nil, err
	}
	volumeA, err := parseMagnitude("cumulativeVolumeA", dto.CumulativeVolumeA)
	if err != nil {
		return nil, err
	}
	volumeB, err := parseMagnitude("cumulativeVolumeB", dto.CumulativeVolumeB)
	if err != nil {
		return nil, err
	}

	mode := types.CurveMode(dto.CurveMode)
	if !mode.Valid() {
		return nil, fmt.Errorf("pool reported unknown curve mode %d", dto.CurveMode)
	}

	return &types.PoolState{
		Reserves: types.ReserveSnapshot{ReserveA: reserveA, ReserveB: reserveB},
		Params: types.ParameterSet{
			FeeRateBps:      dto.FeeBps,
			CurveShapeParam: dto.CurveShape,
			CurveMode:       mode,
		},
		TradeCount:        dto.TradeCount,
		CumulativeVolumeA: volumeA,
		CumulativeVolumeB: volumeB,
		BlockNumber:       dto.BlockNumber,
	}, nil
}

// GetRecentTrades returns the ordered trade events from the trailing
// blockRange blocks, oldest first.
func (c *Client) GetRecentTrades(ctx context.Context, blockRange int64) ([]types.TradeEvent, error) {
	var dtos []tradeEventDTO
	if err := c.call(ctx, "evo_getRecentTrades", []interface{}{c.poolAddress, blockRange}, &dtos); err != nil {
		return nil, err
	}

	events := make([]types.TradeEvent, 0, len(dtos))
	for i, dto := range dtos {
		amountIn, err := parseMagnitude("amountIn", dto.AmountIn)
		if err != nil {
			return nil, fmt.Errorf("trade %d: %w", i, err)
		}
		amountOut, err := parseMagnitude("amountOut", dto.AmountOut)
		if err != nil {
			return nil, fmt.Errorf("trade %d: %w", i, err)
		}
		feeAmount, err := parseMagnitude("feeAmount", dto.FeeAmount)
		if err != nil {
			return nil, fmt.Errorf("trade %d: %w", i, err)
		}
		events = append(events, types.TradeEvent{
			Sender:      dto.Sender,
			AToB:        dto.AToB,
			AmountIn:    amountIn,
			AmountOut:   amountOut,
			FeeAmount:   feeAmount,
			BlockNumber: dto.BlockNumber,
		})
	}
	return events, nil
}

// GetUpdateLimits reads the controller contract's stored per-update bounds.
func (c *Client) GetUpdateLimits(ctx context.Context) (*types.UpdateLimits, error) {
	var dto updateLimitsDTO
	if err := c.call(ctx, "evo_getUpdateLimits", []interface{}{c.controllerAddr}, &dto); err != nil {
		return nil, err
	}
	return &types.UpdateLimits{
		MaxFeeDeltaBps:     dto.MaxFeeDeltaBps,
		MaxCurveShapeDelta: dto.MaxCurveShapeDelta,
		MaxFeeBps:          dto.MaxFeeBps,
	}, nil
}

// SubmitParameterUpdate submits the proposed parameters through the
// controller contract as a single atomic update. A contract-level
// rejection is returned as a failed TransactionResult, not an error, so
// the epoch can record it and continue.
func (c *Client) SubmitParameterUpdate(ctx context.Context, proposed types.ParameterSet) (*types.TransactionResult, error) {
	params := []interface{}{
		c.controllerAddr,
		map[string]interface{}{
			"agent":      c.agentID,
			"signature":  c.agentKey,
			"feeBps":     proposed.FeeRateBps,
			"curveShape": proposed.CurveShapeParam,
			"curveMode":  uint8(proposed.CurveMode),
		},
	}

	var dto submitResultDTO
	err := c.call(ctx, "evo_submitParameterUpdate", params, &dto)
	if err != nil {
		var cerr *contractError
		if errors.As(err, &cerr) {
			c.logger.Warn().Str("reason", cerr.message).Msg("Parameter update rejected by controller contract")
			return &types.TransactionResult{Success: false, ErrorMessage: cerr.message}, nil
		}
		return nil, err
	}

	c.logger.Info().
		Str("txHash", dto.TxHash).
		Int64("block", dto.BlockNumber).
		Msg("Parameter update submitted")

	return &types.TransactionResult{
		TxHash:      dto.TxHash,
		BlockNumber: dto.BlockNumber,
		Success:     true,
	}, nil
}
