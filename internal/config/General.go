package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// AgentID is the on-ledger identity this agent submits updates under.
	AgentID string

	// AgentKey is the signing key (hex) used to authorize parameter updates.
	AgentKey string

	// PollInterval is the polling cadence of the controller loop.
	PollInterval time.Duration

	// TradeWindowBlocks is the trailing block range scanned for trade events each epoch.
	TradeWindowBlocks int64

	// DryRun disables submission; proposals are computed and recorded only.
	DryRun bool
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables without a stated default are required.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	AgentID, err = getEnv("AGENT_ID")
	if err != nil {
		return err
	}

	AgentKey, err = getEnv("AGENT_KEY")
	if err != nil {
		return err
	}

	pollMs, err := getEnvAsInt64("POLL_INTERVAL_MS")
	if err != nil {
		return err
	}
	if pollMs <= 0 {
		return errors.New("POLL_INTERVAL_MS must be positive")
	}
	PollInterval = time.Duration(pollMs) * time.Millisecond

	TradeWindowBlocks, err = getEnvAsInt64("TRADE_WINDOW_BLOCKS")
	if err != nil {
		return err
	}
	if TradeWindowBlocks <= 0 {
		return errors.New("TRADE_WINDOW_BLOCKS must be positive")
	}

	DryRun = os.Getenv("AGENT_MODE") != "live"

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("AgentID", AgentID).
		Dur("PollInterval", PollInterval).
		Int64("TradeWindowBlocks", TradeWindowBlocks).
		Bool("DryRun", DryRun).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsInt64 retrieves an environment variable as an int64. Returns error if not set or invalid.
func getEnvAsInt64(key string) (int64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int64, got: " + valueStr)
	}
	return value, nil
}
