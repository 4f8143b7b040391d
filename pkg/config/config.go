package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// SettlementConfig contains settings for the settlement chain where the
// tipping vault lives and where loyalty payouts are distributed.
type SettlementConfig struct {
	RPCURL             string        `mapstructure:"rpc_url"`
	ChainID            int64         `mapstructure:"chain_id"`
	VaultContract      string        `mapstructure:"vault_contract"`
	USDCContract       string        `mapstructure:"usdc_contract"`
	OperatorPrivateKey string        `mapstructure:"operator_private_key"`
	GasLimit           uint64        `mapstructure:"gas_limit"`
	MaxGasPrice        string        `mapstructure:"max_gas_price"`
	ReceiptTimeout     time.Duration `mapstructure:"receipt_timeout"`
}

// LoyaltyConfig contains loyalty engine settings
type LoyaltyConfig struct {
	PayoutRate string `mapstructure:"payout_rate"`
	Threshold  int    `mapstructure:"threshold"`
}

// ReconciliationConfig contains settings for the vault/ledger reconciler
type ReconciliationConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Interval       time.Duration `mapstructure:"interval"`
	LookbackBlocks int64         `mapstructure:"lookback_blocks"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// APIServerConfig represents the ledger API server configuration
type APIServerConfig struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Settlement     SettlementConfig     `mapstructure:"settlement"`
	Loyalty        LoyaltyConfig        `mapstructure:"loyalty"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	Monitoring     MonitoringConfig     `mapstructure:"monitoring"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

// LoadAPIServer loads API server configuration from file
func LoadAPIServer(configPath string) (*APIServerConfig, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setAPIServerDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config APIServerConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateAPIServer(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setAPIServerDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 7301)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "tipx")

	// Settlement chain defaults (Arbitrum Sepolia)
	viper.SetDefault("settlement.chain_id", 421614)
	viper.SetDefault("settlement.gas_limit", 300000)
	viper.SetDefault("settlement.receipt_timeout", "2m")

	// Loyalty defaults
	viper.SetDefault("loyalty.payout_rate", "0.005")
	viper.SetDefault("loyalty.threshold", 3)

	// Reconciliation defaults
	viper.SetDefault("reconciliation.enabled", false)
	viper.SetDefault("reconciliation.interval", "5m")
	viper.SetDefault("reconciliation.lookback_blocks", 5000)

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_port", 9090)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
	viper.SetDefault("logging.max_size_mb", 100)
	viper.SetDefault("logging.max_backups", 5)
	viper.SetDefault("logging.max_age_days", 28)
}

func validateAPIServer(config *APIServerConfig) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Loyalty.Threshold <= 0 {
		return fmt.Errorf("loyalty.threshold must be positive")
	}
	// Payouts are optional, but a key without an RPC endpoint (or the
	// reverse) is a misconfiguration rather than a disabled feature.
	if config.Settlement.OperatorPrivateKey != "" && config.Settlement.RPCURL == "" {
		return fmt.Errorf("settlement.rpc_url is required when operator_private_key is set")
	}
	if config.Settlement.OperatorPrivateKey != "" && config.Settlement.VaultContract == "" {
		return fmt.Errorf("settlement.vault_contract is required when operator_private_key is set")
	}
	if config.Reconciliation.Enabled && config.Settlement.RPCURL == "" {
		return fmt.Errorf("settlement.rpc_url is required when reconciliation is enabled")
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// =============================================================================
// TIPPER CONFIG
// =============================================================================

// ChainConfig contains per-chain settings for the tipper
type ChainConfig struct {
	RPCURL             string `mapstructure:"rpc_url"`
	ChainID            int64  `mapstructure:"chain_id"`
	USDCContract       string `mapstructure:"usdc_contract"`
	TokenMessenger     string `mapstructure:"token_messenger"`
	MessageTransmitter string `mapstructure:"message_transmitter"`
	CCTPDomain         uint32 `mapstructure:"cctp_domain"`
}

// BridgeConfig contains CCTP bridge settings
type BridgeConfig struct {
	AttestationURL     string        `mapstructure:"attestation_url"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	AttestationTimeout time.Duration `mapstructure:"attestation_timeout"`
}

// TipperConfig represents the tipper CLI configuration
type TipperConfig struct {
	APIURL          string                 `mapstructure:"api_url"`
	WalletKey       string                 `mapstructure:"wallet_private_key"`
	SettlementChain string                 `mapstructure:"settlement_chain"`
	VaultContract   string                 `mapstructure:"vault_contract"`
	Chains          map[string]ChainConfig `mapstructure:"chains"`
	Bridge          BridgeConfig           `mapstructure:"bridge"`
	Logging         LoggingConfig          `mapstructure:"logging"`
}

// LoadTipper loads tipper configuration from file and environment variables
func LoadTipper(configPath string) (*TipperConfig, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setTipperDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config TipperConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateTipper(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setTipperDefaults() {
	viper.SetDefault("api_url", "http://localhost:7301")
	viper.SetDefault("settlement_chain", "arbitrum")

	// Circle's Iris attestation service (testnet)
	viper.SetDefault("bridge.attestation_url", "https://iris-api-sandbox.circle.com")
	viper.SetDefault("bridge.poll_interval", "5s")
	viper.SetDefault("bridge.attestation_timeout", "20m")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
	viper.SetDefault("logging.output_path", "stdout")
}

func validateTipper(config *TipperConfig) error {
	if config.WalletKey == "" {
		return fmt.Errorf("wallet_private_key is required")
	}
	if config.VaultContract == "" {
		return fmt.Errorf("vault_contract is required")
	}
	settlement, ok := config.Chains[config.SettlementChain]
	if !ok {
		return fmt.Errorf("chains.%s (settlement chain) is required", config.SettlementChain)
	}
	if settlement.RPCURL == "" {
		return fmt.Errorf("chains.%s.rpc_url is required", config.SettlementChain)
	}
	if settlement.USDCContract == "" {
		return fmt.Errorf("chains.%s.usdc_contract is required", config.SettlementChain)
	}
	return nil
}
