/*

This file manages the persistent global epoch counter for the agent.
The counter is stored in the database so epoch numbering stays continuous
across restarts; a restart must not reuse epoch indices already present
in the performance history.

*/

package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ensureEpochCounterTable creates the epoch_counter table if it doesn't exist
func ensureEpochCounterTable() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS epoch_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_epoch INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO epoch_counter (id, current_epoch)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`

	_, err := DB.Exec(createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create epoch_counter table: %w", err)
	}

	return nil
}

// GetCurrentEpoch retrieves the current epoch number from the database
func GetCurrentEpoch() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	if err := ensureEpochCounterTable(); err != nil {
		return 0, err
	}

	query := `SELECT current_epoch FROM epoch_counter WHERE id = 1;`

	var currentEpoch int
	row := DB.QueryRow(query)
	err := row.Scan(&currentEpoch)

	if err != nil {
		if err == sql.ErrNoRows {
			// This should not happen due to the INSERT in ensureEpochCounterTable
			log.Warn().Msg("No epoch counter row found, initializing to 0")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get current epoch: %w", err)
	}

	return currentEpoch, nil
}

// IncrementEpoch increments the epoch counter and returns the new value
func IncrementEpoch() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	if err := ensureEpochCounterTable(); err != nil {
		return 0, err
	}

	updateQuery := `
		UPDATE epoch_counter
		SET current_epoch = current_epoch + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING current_epoch;`

	var newEpoch int
	row := DB.QueryRow(updateQuery)
	err := row.Scan(&newEpoch)

	if err != nil {
		return 0, fmt.Errorf("failed to increment epoch counter: %w", err)
	}

	log.Debug().Int("newEpoch", newEpoch).Msg("Incremented epoch counter")
	return newEpoch, nil
}

// ResetEpochCounter resets the counter to a specific value (for testing/maintenance)
func ResetEpochCounter(epoch int) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	if err := ensureEpochCounterTable(); err != nil {
		return err
	}

	if epoch < 0 {
		return fmt.Errorf("epoch cannot be negative: %d", epoch)
	}

	updateQuery := `
		UPDATE epoch_counter
		SET current_epoch = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1;`

	result, err := DB.Exec(updateQuery, epoch)
	if err != nil {
		return fmt.Errorf("failed to reset epoch counter to %d: %w", epoch, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("no rows updated when resetting epoch counter")
	}

	log.Warn().Int("epoch", epoch).Msg("Reset epoch counter")
	return nil
}
