// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	App         AppConfig         `yaml:"app"`
	Exchanges   map[string]ExchangeConfig `yaml:"exchanges"`
	Trading     TradingConfig     `yaml:"trading"`
	System      SystemConfig      `yaml:"system"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// TelemetryConfig contains OTel/Prometheus exporter settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Exchange string `yaml:"exchange" validate:"required,oneof=okx mock"`
}

// ExchangeConfig contains exchange-specific configuration
type ExchangeConfig struct {
	APIKey     Secret `yaml:"api_key" validate:"required"`
	SecretKey  Secret `yaml:"secret_key" validate:"required"`
	Passphrase Secret `yaml:"passphrase"` // required by OKX, ignored elsewhere
	BaseURL    string `yaml:"base_url"`   // optional override for API URL
}

// TradingConfig contains the per-(user,instrument) engine's tuning constants.
// Field names and defaults follow the DCA/grid engine's fixed tuning
// constants; zero numeric values are filled in from DefaultConfig()'s engine
// defaults by the caller that builds an engine.Config from this. The boolean
// flags are taken as written, so an omitted flag is false.
type TradingConfig struct {
	Symbol      string  `yaml:"symbol" validate:"required"`
	Leverage    int     `yaml:"leverage" validate:"required,min=1,max=125"`
	LegNotional float64 `yaml:"leg_notional" validate:"required,min=0"`

	TradeStep          float64 `yaml:"trade_step" validate:"min=0,max=1"`
	TPStep             float64 `yaml:"tp_step" validate:"min=0,max=1"`
	MaxDCA             int     `yaml:"max_dca" validate:"min=0,max=1000"`
	BatchPauseMS       int     `yaml:"batch_pause_ms" validate:"min=0"`
	TickIntervalMS     int     `yaml:"tick_interval_ms" validate:"min=0"`
	CatchupThrottleSec int     `yaml:"catchup_throttle_sec" validate:"min=0"`
	MaxCatchupLegs     int     `yaml:"max_catchup_legs" validate:"min=0,max=1000"`
	ReenterCooldownSec int     `yaml:"reenter_cooldown_sec" validate:"min=0"`

	EnterOnStart  bool `yaml:"enter_on_start"`
	ReenterOnFlat bool `yaml:"reenter_on_flat"`
	CatchupIOC    bool `yaml:"catchup_ioc"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel     string `yaml:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
	CancelOnExit bool   `yaml:"cancel_on_exit"`
}

// ConcurrencyConfig contains worker pool settings for cross-engine
// supervisor work (the concurrent per-key shutdown in StopAll).
type ConcurrencyConfig struct {
	EnginePoolSize   int `yaml:"engine_pool_size" validate:"min=1,max=1000"`
	EnginePoolBuffer int `yaml:"engine_pool_buffer" validate:"min=1,max=100000"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateAppConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.validateExchanges(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.validateTradingConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.validateSystemConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.validateConcurrencyConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateAppConfig() error {
	validExchanges := []string{"okx", "mock"}

	if c.App.Exchange == "" {
		return ValidationError{
			Field:   "app.exchange",
			Message: "an exchange must be selected",
		}
	}

	if !contains(validExchanges, c.App.Exchange) {
		return ValidationError{
			Field:   "app.exchange",
			Value:   c.App.Exchange,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validExchanges, ", ")),
		}
	}

	if c.App.Exchange == "mock" {
		return nil
	}

	if _, exists := c.Exchanges[c.App.Exchange]; !exists {
		return ValidationError{
			Field:   "app.exchange",
			Value:   c.App.Exchange,
			Message: "exchange configuration not found in exchanges section",
		}
	}

	return nil
}

func (c *Config) validateExchanges() error {
	if c.App.Exchange == "mock" {
		return nil
	}

	if len(c.Exchanges) == 0 {
		return ValidationError{
			Field:   "exchanges",
			Message: "at least one exchange must be configured",
		}
	}

	for name, exchange := range c.Exchanges {
		if exchange.APIKey == "" {
			return ValidationError{
				Field:   fmt.Sprintf("exchanges.%s.api_key", name),
				Message: "API key is required",
			}
		}
		if exchange.SecretKey == "" {
			return ValidationError{
				Field:   fmt.Sprintf("exchanges.%s.secret_key", name),
				Message: "secret key is required",
			}
		}
	}

	return nil
}

func (c *Config) validateTradingConfig() error {
	if c.Trading.Symbol == "" {
		return ValidationError{
			Field:   "trading.symbol",
			Message: "trading symbol is required",
		}
	}

	if c.Trading.Leverage <= 0 {
		return ValidationError{
			Field:   "trading.leverage",
			Value:   c.Trading.Leverage,
			Message: "leverage must be positive",
		}
	}

	if c.Trading.LegNotional <= 0 {
		return ValidationError{
			Field:   "trading.leg_notional",
			Value:   c.Trading.LegNotional,
			Message: "leg notional must be positive",
		}
	}

	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateConcurrencyConfig() error {
	return nil
}

// GetExchangeConfig returns the configuration for the app's selected exchange
func (c *Config) GetExchangeConfig() (*ExchangeConfig, error) {
	exchange, exists := c.Exchanges[c.App.Exchange]
	if !exists {
		return nil, fmt.Errorf("exchange configuration not found for: %s", c.App.Exchange)
	}
	return &exchange, nil
}

// redactedExchangeConfig mirrors ExchangeConfig with plain string fields so
// that dumping it through yaml.Marshal doesn't re-trigger Secret's own
// MarshalYAML (which always prints "[REDACTED]" regardless of content) and
// instead carries the fixed-width mask applied by String().
type redactedExchangeConfig struct {
	APIKey     string `yaml:"api_key"`
	SecretKey  string `yaml:"secret_key"`
	Passphrase string `yaml:"passphrase"`
	BaseURL    string `yaml:"base_url"`
}

// String returns a string representation of the configuration (with sensitive data masked)
func (c *Config) String() string {
	type redactedConfig struct {
		App         AppConfig                         `yaml:"app"`
		Exchanges   map[string]redactedExchangeConfig `yaml:"exchanges"`
		Trading     TradingConfig                      `yaml:"trading"`
		System      SystemConfig                       `yaml:"system"`
		Concurrency ConcurrencyConfig                   `yaml:"concurrency"`
		Telemetry   TelemetryConfig                     `yaml:"telemetry"`
	}

	redacted := redactedConfig{
		App:         c.App,
		Exchanges:   make(map[string]redactedExchangeConfig, len(c.Exchanges)),
		Trading:     c.Trading,
		System:      c.System,
		Concurrency: c.Concurrency,
		Telemetry:   c.Telemetry,
	}
	for name, exchange := range c.Exchanges {
		redacted.Exchanges[name] = redactedExchangeConfig{
			APIKey:     string(maskSecret(exchange.APIKey)),
			SecretKey:  string(maskSecret(exchange.SecretKey)),
			Passphrase: string(maskSecret(exchange.Passphrase)),
			BaseURL:    exchange.BaseURL,
		}
	}

	data, _ := yaml.Marshal(redacted)
	return string(data)
}

// Helper functions

func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		value := os.Getenv(key)
		if value == "" && isCriticalEnvVar(key) {
			return ""
		}
		return value
	})
}

// isCriticalEnvVar checks if an environment variable is critical for operation
func isCriticalEnvVar(key string) bool {
	criticalVars := []string{
		"OKX_API_KEY", "OKX_SECRET_KEY", "OKX_PASSPHRASE",
	}
	return contains(criticalVars, key)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// maskSecret replaces a non-empty secret with a fixed-width mask so the
// masked length never leaks the original length.
func maskSecret(s Secret) Secret {
	if s == "" {
		return ""
	}
	return Secret("********")
}

// DefaultConfig returns a default configuration for local development/testing
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Exchange: "okx",
		},
		Exchanges: map[string]ExchangeConfig{
			"okx": {
				APIKey:    "test_api_key",
				SecretKey: "test_secret_key",
			},
		},
		Trading: TradingConfig{
			Symbol:             "BTC-USDT-SWAP",
			Leverage:           5,
			LegNotional:        50.0,
			TradeStep:          0.0015,
			TPStep:             0.0015,
			MaxDCA:             12,
			BatchPauseMS:       150,
			TickIntervalMS:     1500,
			CatchupThrottleSec: 3,
			MaxCatchupLegs:     6,
			ReenterCooldownSec: 5,
			EnterOnStart:       true,
			ReenterOnFlat:      true,
			CatchupIOC:         false,
		},
		System: SystemConfig{
			LogLevel:     "INFO",
			CancelOnExit: true,
		},
		Concurrency: ConcurrencyConfig{
			EnginePoolSize:   4,
			EnginePoolBuffer: 64,
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9090,
			EnableMetrics: true,
		},
	}
}
