// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS strategy_parameters (
			params_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			config_name VARCHAR(255) NOT NULL DEFAULT 'default',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ema_smoothing_factor DECIMAL(10, 6) NOT NULL,
			whale_ratio_threshold DECIMAL(10, 6) NOT NULL,
			volatility_high_threshold DECIMAL(10, 6) NOT NULL,
			volatility_low_threshold DECIMAL(10, 6) NOT NULL,
			low_volume_threshold INTEGER NOT NULL,
			base_fee_bps BIGINT NOT NULL,
			high_vol_fee_step_bps BIGINT NOT NULL,
			mod_vol_fee_step_bps BIGINT NOT NULL,
			whale_curve_shape_step BIGINT NOT NULL,
			default_curve_shape BIGINT NOT NULL,
			max_fee_delta_bps BIGINT NOT NULL,
			max_curve_shape_delta BIGINT NOT NULL,
			max_fee_bps BIGINT NOT NULL,
			curve_shape_ceiling BIGINT NOT NULL,
			CONSTRAINT uq_strategy_parameters_config_version UNIQUE (config_name, version)
		);
		CREATE INDEX IF NOT EXISTS idx_strategy_parameters_config_active ON strategy_parameters(config_name, is_active, activated_at DESC);

		CREATE TABLE IF NOT EXISTS performance_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			epoch INTEGER NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			agent_id VARCHAR(255) NOT NULL,
			lp_return_delta DECIMAL(20, 8) NOT NULL,
			slippage_reduction DECIMAL(20, 8) NOT NULL,
			volatility_compression DECIMAL(20, 8) NOT NULL,
			fee_revenue_ratio DECIMAL(20, 8) NOT NULL,
			aps DECIMAL(10, 4) NOT NULL,
			raw_inputs JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_performance_snapshots_agent_epoch ON performance_snapshots(agent_id, epoch DESC);
		CREATE INDEX IF NOT EXISTS idx_performance_snapshots_timestamp ON performance_snapshots(snapshot_timestamp DESC);

		CREATE TABLE IF NOT EXISTS update_records (
			record_id SERIAL PRIMARY KEY,
			record_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			epoch INTEGER NOT NULL,
			agent_id VARCHAR(255) NOT NULL,
			features_used JSONB NOT NULL,
			rule_fired VARCHAR(64) NOT NULL,
			confidence DECIMAL(4, 2) NOT NULL,
			current_params JSONB NOT NULL,
			proposed_params JSONB NOT NULL,
			outcome TEXT NOT NULL,
			tx_hash VARCHAR(255),
			dry_run BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_update_records_timestamp ON update_records(record_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_update_records_agent ON update_records(agent_id);
		CREATE INDEX IF NOT EXISTS idx_update_records_rule ON update_records(rule_fired);

		-- Epoch counter table for persistent global epoch tracking
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
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
