// ./internal/state/update_store.go
package state

import (
	"encoding/json"
	"fmt"

	"github.com/evoarena/agent/internal/types"
	"github.com/rs/zerolog/log"
)

// SaveUpdateRecord persists the audit record of one submission attempt.
// Every attempt is recorded: submitted, skipped, dry-run, or failed.
func SaveUpdateRecord(record types.UpdateRecord) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	featuresJSON, err := json.Marshal(record.Features)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal features_used: %w", err)
	}
	currentJSON, err := json.Marshal(record.CurrentParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal current_params: %w", err)
	}
	proposedJSON, err := json.Marshal(record.ProposedParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal proposed_params: %w", err)
	}

	query := `
		INSERT INTO update_records (
			record_timestamp, epoch, agent_id,
			features_used, rule_fired, confidence,
			current_params, proposed_params,
			outcome, tx_hash, dry_run
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING record_id;
	`

	var recordID int64
	err = DB.QueryRow(
		query,
		record.Timestamp, record.Epoch, record.AgentID,
		featuresJSON, record.RuleFired, record.Confidence,
		currentJSON, proposedJSON,
		record.Outcome, nullIfEmpty(record.TxHash), record.DryRun,
	).Scan(&recordID)

	if err != nil {
		return 0, fmt.Errorf("failed to save update record: %w", err)
	}

	log.Info().
		Int64("record_id", recordID).
		Int("epoch", record.Epoch).
		Str("rule_fired", record.RuleFired).
		Str("outcome", record.Outcome).
		Msg("Update record saved to database")

	return recordID, nil
}

// GetRecentUpdateRecords retrieves recent submission audit records, newest first.
func GetRecentUpdateRecords(limit int) ([]types.UpdateRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 10 // Default limit
	}

	query := `
		SELECT record_id, record_timestamp, epoch, agent_id,
			features_used, rule_fired, confidence,
			current_params, proposed_params,
			outcome, COALESCE(tx_hash, ''), dry_run
		FROM update_records
		ORDER BY record_timestamp DESC
		LIMIT $1
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query update records: %w", err)
	}
	defer rows.Close()

	var records []types.UpdateRecord
	for rows.Next() {
		var r types.UpdateRecord
		var featuresJSON, currentJSON, proposedJSON []byte

		err := rows.Scan(
			&r.RecordID, &r.Timestamp, &r.Epoch, &r.AgentID,
			&featuresJSON, &r.RuleFired, &r.Confidence,
			&currentJSON, &proposedJSON,
			&r.Outcome, &r.TxHash, &r.DryRun,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan update record row")
			continue // Skip this row and continue with others
		}

		if err := json.Unmarshal(featuresJSON, &r.Features); err != nil {
			log.Error().Err(err).Int("epoch", r.Epoch).Msg("Failed to unmarshal features for update record")
			continue
		}
		if err := json.Unmarshal(currentJSON, &r.CurrentParams); err != nil {
			log.Error().Err(err).Int("epoch", r.Epoch).Msg("Failed to unmarshal current params for update record")
			continue
		}
		if err := json.Unmarshal(proposedJSON, &r.ProposedParams); err != nil {
			log.Error().Err(err).Int("epoch", r.Epoch).Msg("Failed to unmarshal proposed params for update record")
			continue
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return records, nil
}

// nullIfEmpty maps "" to SQL NULL for nullable text columns.
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
