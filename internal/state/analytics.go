package state

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// LeaderboardEntry summarizes one agent's standing against the field.
type LeaderboardEntry struct {
	AgentID     string  `json:"agent_id"`
	LatestScore float64 `json:"latest_aps"`
	AvgScore    float64 `json:"avg_aps"`
	BestScore   float64 `json:"best_aps"`
	Epochs      int     `json:"epochs"`
}

// PerformanceSummary represents aggregated performance data across epochs.
type PerformanceSummary struct {
	TotalEpochs         int     `json:"total_epochs"`
	AvgScore            float64 `json:"avg_aps"`
	BestScore           float64 `json:"best_aps"`
	AvgLpReturnDelta    float64 `json:"avg_lp_return_delta"`
	AvgSlippageRed      float64 `json:"avg_slippage_reduction"`
	AvgVolCompression   float64 `json:"avg_volatility_compression"`
	SubmittedUpdates    int     `json:"submitted_updates"`
	SkippedUpdates      int     `json:"skipped_updates"`
	FailedUpdates       int     `json:"failed_updates"`
}

// GetLeaderboard ranks agents by average APS over their recorded history.
func GetLeaderboard() ([]LeaderboardEntry, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT
			agent_id,
			(ARRAY_AGG(aps ORDER BY epoch DESC))[1] AS latest_aps,
			AVG(aps) AS avg_aps,
			MAX(aps) AS best_aps,
			COUNT(*) AS epochs
		FROM performance_snapshots
		GROUP BY agent_id
		ORDER BY avg_aps DESC
	`

	rows, err := DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.AgentID, &e.LatestScore, &e.AvgScore, &e.BestScore, &e.Epochs); err != nil {
			log.Error().Err(err).Msg("Failed to scan leaderboard row")
			continue
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return entries, nil
}

// GetPerformanceSummary retrieves aggregated performance metrics.
func GetPerformanceSummary() (*PerformanceSummary, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	summary := &PerformanceSummary{}

	query := `
		SELECT
			COUNT(*) AS total_epochs,
			COALESCE(AVG(aps), 0) AS avg_aps,
			COALESCE(MAX(aps), 0) AS best_aps,
			COALESCE(AVG(lp_return_delta), 0) AS avg_lp_return_delta,
			COALESCE(AVG(slippage_reduction), 0) AS avg_slippage_reduction,
			COALESCE(AVG(volatility_compression), 0) AS avg_volatility_compression
		FROM performance_snapshots
	`

	err := DB.QueryRow(query).Scan(
		&summary.TotalEpochs,
		&summary.AvgScore,
		&summary.BestScore,
		&summary.AvgLpReturnDelta,
		&summary.AvgSlippageRed,
		&summary.AvgVolCompression,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get performance summary: %w", err)
	}

	outcomeQuery := `
		SELECT
			COUNT(CASE WHEN outcome = 'submitted' THEN 1 END),
			COUNT(CASE WHEN outcome = 'skipped-no-change' THEN 1 END),
			COUNT(CASE WHEN outcome LIKE 'failed%' THEN 1 END)
		FROM update_records
	`

	err = DB.QueryRow(outcomeQuery).Scan(
		&summary.SubmittedUpdates,
		&summary.SkippedUpdates,
		&summary.FailedUpdates,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get update outcome counts: %w", err)
	}

	log.Info().
		Int("totalEpochs", summary.TotalEpochs).
		Float64("avgAps", summary.AvgScore).
		Msg("Retrieved performance summary")

	return summary, nil
}
