// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Venues    VenuesConfig    `mapstructure:"venues"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EthereumConfig holds Ethereum node configuration.
type EthereumConfig struct {
	HTTPURL string `mapstructure:"http_url"`
	ChainID uint64 `mapstructure:"chain_id"`
}

// VenuesConfig lists the venues the aggregator fans out to.
type VenuesConfig struct {
	EVM  []EVMVenueConfig  `mapstructure:"evm"`
	REST []RESTVenueConfig `mapstructure:"rest"`
}

// EVMVenueConfig configures one on-chain quoter/router venue.
type EVMVenueConfig struct {
	Name           string  `mapstructure:"name"`
	QuoterAddress  string  `mapstructure:"quoter_address"`
	RouterAddress  string  `mapstructure:"router_address"`
	FeeTier        int     `mapstructure:"fee_tier"`
	RequestsPerSec float64 `mapstructure:"requests_per_sec"`
}

// QuoterAddressHex returns the quoter address as common.Address.
func (c *EVMVenueConfig) QuoterAddressHex() common.Address {
	return common.HexToAddress(c.QuoterAddress)
}

// RouterAddressHex returns the router address as common.Address.
func (c *EVMVenueConfig) RouterAddressHex() common.Address {
	return common.HexToAddress(c.RouterAddress)
}

// RESTVenueConfig configures one HTTP quote-API venue.
type RESTVenueConfig struct {
	Name    string        `mapstructure:"name"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PipelineConfig holds defaults for one trade request. These only seed the
// CLI entry point; library calls take thresholds as explicit parameters.
type PipelineConfig struct {
	TokenIn         string        `mapstructure:"token_in"`
	TokenOut        string        `mapstructure:"token_out"`
	AmountIn        string        `mapstructure:"amount_in"` // raw units, decimal string
	MinProfitBps    float64       `mapstructure:"min_profit_bps"`
	MaxSlippagePct  float64       `mapstructure:"max_slippage_pct"`
	GasPriceOutUnit string        `mapstructure:"gas_price_out_unit"` // out-token raw units per gas unit
	OutcomeTimeout  time.Duration `mapstructure:"outcome_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
}

// MinProfitBpsDecimal returns the min profit threshold as a decimal.
func (c *PipelineConfig) MinProfitBpsDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfitBps)
}

// MaxSlippagePctDecimal returns the slippage tolerance as a decimal.
func (c *PipelineConfig) MaxSlippagePctDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxSlippagePct)
}

// GasPriceOutUnitDecimal returns the gas-to-output conversion rate.
func (c *PipelineConfig) GasPriceOutUnitDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(c.GasPriceOutUnit)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARB")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("ethereum.http_url", "ARB_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.chain_id", "ARB_ETH_CHAIN_ID", "ETH_CHAIN_ID")

	v.BindEnv("pipeline.token_in", "ARB_TOKEN_IN")
	v.BindEnv("pipeline.token_out", "ARB_TOKEN_OUT")
	v.BindEnv("pipeline.amount_in", "ARB_AMOUNT_IN")
	v.BindEnv("pipeline.min_profit_bps", "ARB_MIN_PROFIT_BPS")
	v.BindEnv("pipeline.max_slippage_pct", "ARB_MAX_SLIPPAGE_PCT")

	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "arb-pipeline")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("ethereum.chain_id", 1)

	// Uniswap V3 mainnet quoter/router as the default EVM venue
	v.SetDefault("venues.evm", []map[string]any{{
		"name":           "uniswap-v3",
		"quoter_address": "0x61fFE014bA17989E743c5F6cB21bF9697530B21e",
		"router_address": "0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45",
		"fee_tier":       3000,
	}})

	v.SetDefault("pipeline.token_in", "WETH")
	v.SetDefault("pipeline.token_out", "USDC")
	v.SetDefault("pipeline.amount_in", "1000000000000000000") // 1 WETH
	v.SetDefault("pipeline.min_profit_bps", 10)
	v.SetDefault("pipeline.max_slippage_pct", 0.5)
	v.SetDefault("pipeline.gas_price_out_unit", "0")
	v.SetDefault("pipeline.outcome_timeout", "60s")
	v.SetDefault("pipeline.poll_interval", "12s")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "arb-pipeline")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Ethereum.HTTPURL == "" && len(c.Venues.EVM) > 0 {
		return fmt.Errorf("ethereum.http_url is required when evm venues are configured")
	}
	if len(c.Venues.EVM) == 0 && len(c.Venues.REST) == 0 {
		return fmt.Errorf("at least one venue must be configured")
	}
	for _, ev := range c.Venues.EVM {
		if ev.Name == "" {
			return fmt.Errorf("evm venue name is required")
		}
		if !common.IsHexAddress(ev.QuoterAddress) {
			return fmt.Errorf("invalid quoter_address for venue %s: %s", ev.Name, ev.QuoterAddress)
		}
		if !common.IsHexAddress(ev.RouterAddress) {
			return fmt.Errorf("invalid router_address for venue %s: %s", ev.Name, ev.RouterAddress)
		}
	}
	for _, rv := range c.Venues.REST {
		if rv.Name == "" {
			return fmt.Errorf("rest venue name is required")
		}
		if rv.BaseURL == "" {
			return fmt.Errorf("base_url is required for rest venue %s", rv.Name)
		}
	}
	if c.Pipeline.TokenIn == "" || c.Pipeline.TokenOut == "" {
		return fmt.Errorf("pipeline.token_in and pipeline.token_out are required")
	}
	if c.Pipeline.PollInterval <= 0 {
		return fmt.Errorf("pipeline.poll_interval must be positive")
	}
	return nil
}
