// ./internal/state/snapshot_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/evoarena/agent/internal/types"
	"github.com/rs/zerolog/log"
)

// SavePerformanceSnapshot appends one immutable APS observation to the
// performance history.
func SavePerformanceSnapshot(snapshot types.PerformanceSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	inputsJSON, err := json.Marshal(snapshot.Inputs)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal raw_inputs: %w", err)
	}

	query := `
		INSERT INTO performance_snapshots (
			epoch, snapshot_timestamp, agent_id,
			lp_return_delta, slippage_reduction, volatility_compression, fee_revenue_ratio,
			aps, raw_inputs
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRow(
		query,
		snapshot.Epoch, snapshot.Timestamp, snapshot.AgentID,
		snapshot.LpReturnDelta, snapshot.SlippageReduction, snapshot.VolatilityCompression, snapshot.FeeRevenueRatio,
		snapshot.Score, inputsJSON,
	).Scan(&snapshotID)

	if err != nil {
		return 0, fmt.Errorf("failed to save performance snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("epoch", snapshot.Epoch).
		Float64("aps", snapshot.Score).
		Msg("Performance snapshot saved to database")

	return snapshotID, nil
}

// GetRecentSnapshots retrieves recent performance snapshots, newest first.
func GetRecentSnapshots(limit int) ([]types.PerformanceSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 10 // Default limit
	}

	query := `
		SELECT snapshot_id, epoch, snapshot_timestamp, agent_id,
			lp_return_delta, slippage_reduction, volatility_compression, fee_revenue_ratio,
			aps, raw_inputs
		FROM performance_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT $1
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.PerformanceSnapshot
	for rows.Next() {
		var s types.PerformanceSnapshot
		var inputsJSON []byte

		err := rows.Scan(
			&s.SnapshotID, &s.Epoch, &s.Timestamp, &s.AgentID,
			&s.LpReturnDelta, &s.SlippageReduction, &s.VolatilityCompression, &s.FeeRevenueRatio,
			&s.Score, &inputsJSON,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan snapshot row")
			continue // Skip this row and continue with others
		}

		if len(inputsJSON) > 0 {
			if err := json.Unmarshal(inputsJSON, &s.Inputs); err != nil {
				log.Error().Err(err).Int("epoch", s.Epoch).Msg("Failed to unmarshal raw inputs for snapshot")
				continue
			}
		}

		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return snapshots, nil
}

// GetLatestSnapshotForAgent returns the most recent snapshot for one agent.
func GetLatestSnapshotForAgent(agentID string) (*types.PerformanceSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT snapshot_id, epoch, snapshot_timestamp, agent_id,
			lp_return_delta, slippage_reduction, volatility_compression, fee_revenue_ratio,
			aps, raw_inputs
		FROM performance_snapshots
		WHERE agent_id = $1
		ORDER BY epoch DESC
		LIMIT 1
	`

	var s types.PerformanceSnapshot
	var inputsJSON []byte
	err := DB.QueryRow(query, agentID).Scan(
		&s.SnapshotID, &s.Epoch, &s.Timestamp, &s.AgentID,
		&s.LpReturnDelta, &s.SlippageReduction, &s.VolatilityCompression, &s.FeeRevenueRatio,
		&s.Score, &inputsJSON,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no snapshots found for agent '%s'", agentID)
		}
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}

	if len(inputsJSON) > 0 {
		if err := json.Unmarshal(inputsJSON, &s.Inputs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal raw inputs: %w", err)
		}
	}

	return &s, nil
}
