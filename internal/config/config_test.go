package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{
			name:  "expand single env var",
			input: "api_key: ${TEST_API_KEY}",
			envVars: map[string]string{
				"TEST_API_KEY": "test_key_123",
			},
			expected: "api_key: test_key_123",
		},
		{
			name:  "expand multiple env vars",
			input: "api_key: ${API_KEY}\nsecret: ${SECRET_KEY}",
			envVars: map[string]string{
				"API_KEY":    "key_value",
				"SECRET_KEY": "secret_value",
			},
			expected: "api_key: key_value\nsecret: secret_value",
		},
		{
			name:     "missing env var returns empty string",
			input:    "api_key: ${MISSING_VAR}",
			envVars:  map[string]string{},
			expected: "api_key: ",
		},
		{
			name:  "mixed static and env vars",
			input: "static_value: 123\napi_key: ${TEST_KEY}",
			envVars: map[string]string{
				"TEST_KEY": "dynamic_key",
			},
			expected: "static_value: 123\napi_key: dynamic_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				os.Setenv(k, v)
				defer os.Unsetenv(k)
			}

			result := expandEnvVars(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLoadConfigWithEnvVars(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "config-test-*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	configContent := `app:
  exchange: "okx"

exchanges:
  okx:
    api_key: "${TEST_OKX_API_KEY}"
    secret_key: "${TEST_OKX_SECRET_KEY}"
    passphrase: "${TEST_OKX_PASSPHRASE}"

trading:
  symbol: "BTC-USDT-SWAP"
  leverage: 5
  leg_notional: 50.0
  trade_step: 0.0015
  tp_step: 0.0015
  max_dca: 12
  batch_pause_ms: 150
  tick_interval_ms: 1500
  catchup_throttle_sec: 3
  max_catchup_legs: 6
  reenter_cooldown_sec: 5
  enter_on_start: true
  reenter_on_flat: true

system:
  log_level: "INFO"
  cancel_on_exit: true

concurrency:
  engine_pool_size: 4
  engine_pool_buffer: 64
`

	_, err = tmpFile.Write([]byte(configContent))
	require.NoError(t, err)
	tmpFile.Close()

	os.Setenv("TEST_OKX_API_KEY", "test_api_key_from_env")
	os.Setenv("TEST_OKX_SECRET_KEY", "test_secret_key_from_env")
	os.Setenv("TEST_OKX_PASSPHRASE", "test_passphrase_from_env")
	defer os.Unsetenv("TEST_OKX_API_KEY")
	defer os.Unsetenv("TEST_OKX_SECRET_KEY")
	defer os.Unsetenv("TEST_OKX_PASSPHRASE")

	config, err := LoadConfig(tmpFile.Name())
	require.NoError(t, err, "LoadConfig() error")

	okxConfig := config.Exchanges["okx"]
	assert.Equal(t, Secret("test_api_key_from_env"), okxConfig.APIKey)
	assert.Equal(t, Secret("test_secret_key_from_env"), okxConfig.SecretKey)
	assert.Equal(t, Secret("test_passphrase_from_env"), okxConfig.Passphrase)

	assert.Equal(t, "BTC-USDT-SWAP", config.Trading.Symbol)
	assert.Equal(t, 12, config.Trading.MaxDCA)
	assert.InDelta(t, 0.0015, config.Trading.TradeStep, 1e-9)
}

func TestIsCriticalEnvVar(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		expected bool
	}{
		{"okx api key is critical", "OKX_API_KEY", true},
		{"okx secret is critical", "OKX_SECRET_KEY", true},
		{"okx passphrase is critical", "OKX_PASSPHRASE", true},
		{"random var is not critical", "RANDOM_VAR", false},
		{"empty var is not critical", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isCriticalEnvVar(tt.envVar)
			assert.Equal(t, tt.expected, result, "isCriticalEnvVar(%q)", tt.envVar)
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Exchanges: map[string]ExchangeConfig{
			"test": {
				APIKey:     Secret("my_super_secret_api_key"),
				SecretKey:  Secret("my_super_secret_secret_key"),
				Passphrase: Secret("my_super_secret_passphrase"),
			},
		},
	}
	output := cfg.String()

	// 1. Check for fixed mask
	assert.Contains(t, output, "********", "output should contain masked characters")

	// 2. Ensure full cleartext is GONE
	assert.NotContains(t, output, "my_super_secret_api_key", "output should NOT contain full API key")
	assert.NotContains(t, output, "my_super_secret_secret_key", "output should NOT contain full secret key")
	assert.NotContains(t, output, "my_super_secret_passphrase", "output should NOT contain full passphrase")

	// 3. Ensure partial content is NOT leaked
	assert.NotContains(t, output, "my_s", "output should NOT contain partial secret parts")
}

func TestValidateRejectsMissingExchangeConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.App.Exchange = "okx"
	delete(cfg.Exchanges, "okx")

	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidateAllowsMockExchangeWithoutCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.App.Exchange = "mock"
	cfg.Exchanges = nil

	assert.NoError(t, cfg.Validate())
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}
