package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"dtc-bridge/pkg/types"
)

// Deployed contract defaults.
const (
	DefaultLineaToken   = "0xEb1fD1dBB8aDDA4fa2b5A5C4bcE34F6F20d125D2"
	DefaultLineaAdapter = "0x54B4E88E9775647614440Acc8B13A079277fa2A6"
	DefaultBaseOFT      = "0xFbA669C72b588439B29F050b93500D8b645F9354"
	DefaultBaseRouter   = "0x480C0d523511dd96A65A38f36aaEF69aC2BaA82a"
)

// Config holds the application configuration
type Config struct {
	// Active network: "linea" or "base". Direction is derived from the
	// chain the RPC actually reports, not from this selection.
	Network string

	LineaRPC   string
	BaseRPC    string
	PrivateKey string

	LineaToken   string
	LineaAdapter string
	BaseOFT      string
	BaseRouter   string

	LzReceiveGasDefault uint64
	FeeBufferLineaWei   int64
	FeeBufferBaseWei    int64
	ApprovalPolicy      string
	RequiresDeposit     bool
	QuoteDebounce       time.Duration

	HistoryFile string
	HistoryMax  int

	ExplorerLinea string
	ExplorerBase  string
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".dtc-bridge")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("network", "linea")
	viper.SetDefault("linea_rpc", "https://rpc.linea.build")
	viper.SetDefault("base_rpc", "https://mainnet.base.org")
	viper.SetDefault("linea_token", DefaultLineaToken)
	viper.SetDefault("linea_adapter", DefaultLineaAdapter)
	viper.SetDefault("base_oft", DefaultBaseOFT)
	viper.SetDefault("base_router", DefaultBaseRouter)
	viper.SetDefault("lz_receive_gas_default", 200_000)
	viper.SetDefault("fee_buffer_linea_wei", 80_000_000_000_000)
	viper.SetDefault("fee_buffer_base_wei", 120_000_000_000_000)
	viper.SetDefault("approval_policy", "unlimited")
	viper.SetDefault("requires_deposit", false)
	viper.SetDefault("quote_debounce_ms", 350)
	viper.SetDefault("history_file", "")
	viper.SetDefault("history_max", 25)
	viper.SetDefault("explorer_linea", "https://lineascan.build")
	viper.SetDefault("explorer_base", "https://basescan.org")

	// Read from environment variables
	viper.SetEnvPrefix("DTC_BRIDGE")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Network:             viper.GetString("network"),
		LineaRPC:            viper.GetString("linea_rpc"),
		BaseRPC:             viper.GetString("base_rpc"),
		PrivateKey:          viper.GetString("private_key"),
		LineaToken:          viper.GetString("linea_token"),
		LineaAdapter:        viper.GetString("linea_adapter"),
		BaseOFT:             viper.GetString("base_oft"),
		BaseRouter:          viper.GetString("base_router"),
		LzReceiveGasDefault: viper.GetUint64("lz_receive_gas_default"),
		FeeBufferLineaWei:   viper.GetInt64("fee_buffer_linea_wei"),
		FeeBufferBaseWei:    viper.GetInt64("fee_buffer_base_wei"),
		ApprovalPolicy:      viper.GetString("approval_policy"),
		RequiresDeposit:     viper.GetBool("requires_deposit"),
		QuoteDebounce:       time.Duration(viper.GetInt("quote_debounce_ms")) * time.Millisecond,
		HistoryFile:         viper.GetString("history_file"),
		HistoryMax:          viper.GetInt("history_max"),
		ExplorerLinea:       viper.GetString("explorer_linea"),
		ExplorerBase:        viper.GetString("explorer_base"),
	}

	if cfg.Network != "linea" && cfg.Network != "base" {
		return nil, fmt.Errorf("network must be 'linea' or 'base', got %q", cfg.Network)
	}
	if cfg.ApprovalPolicy != "unlimited" && cfg.ApprovalPolicy != "exact" {
		return nil, fmt.Errorf("approval_policy must be 'unlimited' or 'exact', got %q", cfg.ApprovalPolicy)
	}

	globalConfig = cfg
	return cfg, nil
}

// ActiveRPC returns the RPC endpoint of the selected network.
func (c *Config) ActiveRPC() string {
	if c.Network == "base" {
		return c.BaseRPC
	}
	return c.LineaRPC
}

// ExplorerFor returns the block explorer base URL for a chain, or an empty
// string when the chain is not one of the two supported networks.
func (c *Config) ExplorerFor(chainID uint64) string {
	switch chainID {
	case types.LineaChainID:
		return c.ExplorerLinea
	case types.BaseChainID:
		return c.ExplorerBase
	default:
		return ""
	}
}

// RequireSigner validates that a private key is configured.
func (c *Config) RequireSigner() error {
	if c.PrivateKey == "" {
		return fmt.Errorf("private key not found. Please set DTC_BRIDGE_PRIVATE_KEY or add private_key to a .dtc-bridge.yaml config file")
	}
	return nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
