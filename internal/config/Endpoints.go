package config

import (
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// NodeRPC is the JSON-RPC endpoint for the ledger node.
	NodeRPC string
	// PoolAddress is the deployed pool contract address.
	PoolAddress string
	// ControllerAddress is the deployed agent-controller contract address.
	ControllerAddress string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	NodeRPC, err = getEnv("NODE_RPC")
	if err != nil {
		return err
	}

	PoolAddress, err = getEnv("POOL_ADDRESS")
	if err != nil {
		return err
	}

	ControllerAddress, err = getEnv("CONTROLLER_ADDRESS")
	if err != nil {
		return err
	}

	log.Debug().
		Str("NodeRPC", NodeRPC).
		Str("PoolAddress", PoolAddress).
		Str("ControllerAddress", ControllerAddress).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
