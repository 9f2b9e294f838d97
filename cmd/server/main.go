// Package main provides the API server entry point for the funding and trade
// execution orchestrator.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GoldCode001/vela/internal/adapter"
	"github.com/GoldCode001/vela/internal/api"
	"github.com/GoldCode001/vela/internal/config"
	"github.com/GoldCode001/vela/internal/keys"
	"github.com/GoldCode001/vela/internal/logging"
	"github.com/GoldCode001/vela/internal/service"
	"github.com/GoldCode001/vela/internal/storage"
	"github.com/GoldCode001/vela/internal/types"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Initialize chain clients
	logger.Info("Initializing chain clients...")

	fundingClient := mustChainClient(logger, types.ChainBase, cfg.Chains.Funding)
	tradingClient := mustChainClient(logger, types.ChainPolygon, cfg.Chains.Trading)

	chainClients := map[types.ChainID]adapter.ChainClient{
		types.ChainBase:    fundingClient,
		types.ChainPolygon: tradingClient,
	}
	tokens := map[types.ChainID]string{
		types.ChainBase:    cfg.Chains.Funding.TokenAddress,
		types.ChainPolygon: cfg.Chains.Trading.TokenAddress,
	}

	// External service clients
	bridgeClient := adapter.NewBridgeClient(cfg.Bridge.BaseURL, cfg.Bridge.APIKey)
	exchangeClient := adapter.NewExchangeClient(cfg.Exchange.BaseURL)

	// Initialize repositories
	userRepo := storage.NewUserRepository(postgres)
	walletRepo := storage.NewWalletRepository(postgres)
	transferRepo := storage.NewTransferRepository(postgres)
	positionRepo := storage.NewPositionRepository(postgres)

	// Initialize services
	logger.Info("Initializing services...")

	broker := keys.NewBroker(cfg.Custody, walletRepo, logger)

	oracle := service.NewBalanceOracle(chainClients, tokens, cfg.Funding.ReserveUSD, logger)

	bridgeService := service.NewBridgeOrchestrator(
		bridgeClient,
		oracle,
		fundingClient,
		tradingClient,
		transferRepo,
		redis,
		tokens,
		cfg.Bridge,
		logger,
	)

	engine := service.NewTradeEngine(exchangeClient, cfg.Funding.SimulatedPrice, logger)

	bettingService := service.NewBettingService(
		userRepo,
		walletRepo,
		positionRepo,
		oracle,
		broker,
		engine,
		types.ChainPolygon,
		logger,
	)

	walletService := service.NewWalletService(userRepo, walletRepo, logger)

	logger.Info("Services initialized")

	// Start the background position price refresher
	refreshCtx, cancelRefresh := context.WithCancel(context.Background())
	defer cancelRefresh()

	refresher := service.NewPriceRefresher(positionRepo, engine, redis, 0, logger)
	go refresher.Run(refreshCtx)

	// Create server
	serverConfig := api.DefaultServerConfig(cfg.Server.Host, cfg.Server.Port)
	server := api.NewServer(serverConfig, bettingService, bridgeService, walletService, broker, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancelRefresh()

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

// mustChainClient builds the RPC provider and EVM client for one chain,
// exiting on failure since both chains are required.
func mustChainClient(logger *logging.Logger, chainID types.ChainID, cfg config.ChainConfig) *adapter.EVMClient {
	provider, err := adapter.NewRPCProvider(cfg.RPCPrimary, cfg.RPCSecondary)
	if err != nil {
		logger.WithError(err).WithField("chain", string(chainID)).Fatal("Failed to create RPC provider")
	}

	client, err := adapter.NewEVMClient(chainID, provider)
	if err != nil {
		logger.WithError(err).WithField("chain", string(chainID)).Fatal("Failed to create chain client")
	}

	logger.WithFields(map[string]interface{}{
		"chain": string(chainID),
		"rpc":   cfg.RPCPrimary,
	}).Info("Chain client initialized")

	return client
}
