// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/GoldCode001/vela/internal/keys"
	"github.com/GoldCode001/vela/internal/logging"
	"github.com/GoldCode001/vela/internal/models"
	"github.com/GoldCode001/vela/internal/service"
	"github.com/GoldCode001/vela/internal/types"
)

// Service interfaces for dependency injection and testing

// BettingServiceInterface defines the betting flow operations.
type BettingServiceInterface interface {
	PlaceBet(ctx context.Context, intent *service.BetIntent) (*service.BetResult, error)
	ListPositions(ctx context.Context, walletAddress string) ([]*models.Position, error)
}

// BridgeServiceInterface defines the bridge orchestration operations.
type BridgeServiceInterface interface {
	Execute(ctx context.Context, userID string, key *ecdsa.PrivateKey, walletAddress string, amountUSD float64) (*models.BridgeTransfer, error)
	Status(ctx context.Context, txHash string, chain types.ChainID) *service.BridgeStatus
}

// WalletServiceInterface defines trading-wallet provisioning.
type WalletServiceInterface interface {
	EnsureTradingWallet(ctx context.Context, walletAddress string) (*models.User, *models.WalletLink, error)
}

// KeyBrokerInterface obtains signing keys for user-authorized operations.
type KeyBrokerInterface interface {
	ObtainSigningKey(ctx context.Context, walletID, suppliedMaterial string) (*keys.SigningKey, error)
}

// Server represents the HTTP API server.
type Server struct {
	router  *mux.Router
	http    *http.Server
	betting BettingServiceInterface
	bridge  BridgeServiceInterface
	wallets WalletServiceInterface
	broker  KeyBrokerInterface
	config  *ServerConfig
	logger  *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	ClientRPS       int // per-client requests per second
}

// DefaultServerConfig returns sensible server defaults.
func DefaultServerConfig(host, port string) *ServerConfig {
	return &ServerConfig{
		Host:            host,
		Port:            port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		ClientRPS:       10,
	}
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	betting BettingServiceInterface,
	bridge BridgeServiceInterface,
	wallets WalletServiceInterface,
	broker KeyBrokerInterface,
	logger *logging.Logger,
) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		betting: betting,
		bridge:  bridge,
		wallets: wallets,
		broker:  broker,
		config:  config,
		logger:  logger,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.ClientRPS)

	// Middleware order matters.
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))

	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Betting endpoints
	api.HandleFunc("/bets/place", s.handlePlaceBet).Methods("POST")
	api.HandleFunc("/bets/positions/{walletAddress}", s.handleListPositions).Methods("GET")

	// Bridge endpoints
	api.HandleFunc("/bridge/base-to-polygon", s.handleBridge).Methods("POST")
	api.HandleFunc("/bridge/status/{txHash}", s.handleBridgeStatus).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "vela",
	})
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.http.Addr).Info("starting API server")
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.http.Shutdown(ctx)
}

// chainFromQuery resolves the chainId query parameter, defaulting to the
// trading chain.
func chainFromQuery(raw string) types.ChainID {
	if raw == "" {
		return types.ChainPolygon
	}
	var numeric int64
	if _, err := fmt.Sscanf(raw, "%d", &numeric); err != nil {
		return types.ChainPolygon
	}
	if chain, ok := types.ChainFromNumericID(numeric); ok {
		return chain
	}
	return types.ChainPolygon
}
