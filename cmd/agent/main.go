package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/evoarena/agent/internal/analyzer"
	"github.com/evoarena/agent/internal/config"
	"github.com/evoarena/agent/internal/controller"
	"github.com/evoarena/agent/internal/ledger"
	"github.com/evoarena/agent/internal/logger"
	"github.com/evoarena/agent/internal/state"
	"github.com/evoarena/agent/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// main is the entry point for the strategy agent.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("EvoArena Strategy Agent Starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load Strategy Parameters
	strategyParams, err := state.LoadActiveStrategyParameters(config.StrategyConfigName)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load active strategy parameters, using defaults and saving.")
		defaultParams := config.DefaultStrategyParameters
		if _, err := state.SaveStrategyParameters(defaultParams, config.StrategyConfigName, config.StrategyConfigVersion, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default strategy parameters.")
		}
		strategyParams = &defaultParams
	}
	log.Info().Msg("Strategy parameters loaded successfully.")

	// --- Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting agent web dashboard")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 2. Ledger Client Initialization (with Safety Switch) ---
	if config.DryRun {
		log.Warn().Msg("AGENT_MODE is not set to 'live'. Running in dry-run mode; proposals will be computed and recorded but never submitted.")
	} else {
		log.Warn().Msg("Initializing agent in LIVE mode. Real parameter updates will be submitted.")
	}

	poolClient, err := ledger.NewClient(config.NodeRPC, config.PoolAddress, config.ControllerAddress, config.AgentID, config.AgentKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger client")
	}
	defer poolClient.Close()
	log.Info().Str("endpoint", config.NodeRPC).Str("pool", config.PoolAddress).Msg("Ledger client connected")

	// --- 3. Create Controller Instance with Dependency Injection ---
	log.Info().Msg("Creating controller instance with dependency injection...")

	extractor, err := analyzer.NewFeatureExtractor(strategyParams.EmaSmoothingFactor)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create feature extractor")
	}

	controllerConfig := controller.Config{
		PoolClient:        poolClient,
		Extractor:         extractor,
		StrategyParams:    strategyParams,
		ConfigName:        config.StrategyConfigName,
		ConfigVersion:     config.StrategyConfigVersion,
		TradeWindowBlocks: config.TradeWindowBlocks,
		DryRun:            config.DryRun,
	}

	agentController, err := controller.NewController(controllerConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create controller instance")
	}

	log.Info().Msg("Controller instance created successfully")

	// --- 4. Start Controller Main Loop ---
	log.Info().Str("interval", config.PollInterval.String()).Msg("Starting controller main loop")

	// Create context for graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the controller loop (this will run until shutdown)
	agentController.RunLoop(ctx, config.PollInterval)
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
