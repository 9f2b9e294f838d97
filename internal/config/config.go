// Package config provides configuration management for the funding and trade
// execution orchestrator. It loads configuration from environment variables
// and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Chains   ChainsConfig
	Bridge   BridgeConfig
	Exchange ExchangeConfig
	Custody  CustodyConfig
	Funding  FundingConfig
	Logging  LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ChainsConfig holds the funding- and trading-chain configuration
type ChainsConfig struct {
	Funding ChainConfig
	Trading ChainConfig
}

// ChainConfig holds configuration for a single chain
type ChainConfig struct {
	RPCPrimary   string
	RPCSecondary string
	TokenAddress string // stablecoin contract used for funding
}

// BridgeConfig holds bridge aggregator configuration
type BridgeConfig struct {
	BaseURL        string
	APIKey         string
	PollInterval   time.Duration // settlement polling cadence
	SettleTimeout  time.Duration // give up polling after this long; transfer stays settling
	ConfirmTimeout time.Duration // approval confirmation wait
}

// ExchangeConfig holds order-book exchange configuration
type ExchangeConfig struct {
	BaseURL string
}

// CustodyConfig holds custody provider configuration. When Enabled is false
// the key broker reports a typed unavailable state instead of touching the
// provider.
type CustodyConfig struct {
	AppID     string
	AppSecret string
	Enabled   bool
}

// FundingConfig holds funding policy configuration
type FundingConfig struct {
	// ReserveUSD is excluded from every spendable balance so the wallet can
	// always cover its own transaction fees.
	ReserveUSD float64
	// SimulatedPrice is the fixed entry price used for simulated fills.
	SimulatedPrice float64
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "vela"),
				User:           getEnv("POSTGRES_USER", "vela"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Chains: ChainsConfig{
			Funding: ChainConfig{
				RPCPrimary:   getEnv("BASE_RPC_PRIMARY", "https://mainnet.base.org"),
				RPCSecondary: getEnv("BASE_RPC_SECONDARY", ""),
				TokenAddress: getEnv("BASE_USDC_ADDRESS", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
			},
			Trading: ChainConfig{
				RPCPrimary:   getEnv("POLYGON_RPC_PRIMARY", "https://polygon-rpc.com"),
				RPCSecondary: getEnv("POLYGON_RPC_SECONDARY", ""),
				TokenAddress: getEnv("POLYGON_USDC_ADDRESS", "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"),
			},
		},
		Bridge: BridgeConfig{
			BaseURL:        getEnv("BRIDGE_API_URL", "https://api.socket.tech/v2"),
			APIKey:         getEnv("BRIDGE_API_KEY", ""),
			PollInterval:   getEnvAsDuration("BRIDGE_POLL_INTERVAL", 10*time.Second),
			SettleTimeout:  getEnvAsDuration("BRIDGE_SETTLE_TIMEOUT", 10*time.Minute),
			ConfirmTimeout: getEnvAsDuration("BRIDGE_CONFIRM_TIMEOUT", 2*time.Minute),
		},
		Exchange: ExchangeConfig{
			BaseURL: getEnv("EXCHANGE_API_URL", "https://clob.polymarket.com"),
		},
		Custody: CustodyConfig{
			AppID:     getEnv("CUSTODY_APP_ID", ""),
			AppSecret: getEnv("CUSTODY_APP_SECRET", ""),
			Enabled:   getEnvAsBool("CUSTODY_ENABLED", false),
		},
		Funding: FundingConfig{
			ReserveUSD:     getEnvAsFloat("FUNDING_RESERVE_USD", 1.0),
			SimulatedPrice: getEnvAsFloat("FUNDING_SIMULATED_PRICE", 0.50),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks invariants the rest of the system relies on.
func (c *Config) validate() error {
	if c.Funding.ReserveUSD < 0 {
		return fmt.Errorf("FUNDING_RESERVE_USD must not be negative")
	}
	if c.Funding.SimulatedPrice <= 0 || c.Funding.SimulatedPrice > 1 {
		return fmt.Errorf("FUNDING_SIMULATED_PRICE must be in (0, 1]")
	}
	if c.Custody.Enabled && (c.Custody.AppID == "" || c.Custody.AppSecret == "") {
		return fmt.Errorf("CUSTODY_APP_ID and CUSTODY_APP_SECRET are required when custody is enabled")
	}
	return nil
}

// PostgresURL returns the database URL for migrations
func (c *PostgresConfig) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a bool with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
