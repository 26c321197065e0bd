package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server         ServerConfig          `yaml:"server"`
	Database       DatabaseConfig        `yaml:"database"`
	Verification   VerificationConfig    `yaml:"verification"`
	Fraud          FraudConfig           `yaml:"fraud"`
	Extractor      ExtractorConfig       `yaml:"extractor"`
	WebSocket      WebSocketConfig       `yaml:"websocket"`
	JWT            JWTConfig             `yaml:"jwt"`
	Security       SecurityConfig        `yaml:"security"`
	PaymentMethods []PaymentMethodConfig `yaml:"payment_methods"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
}

type DatabaseConfig struct {
	Host            string `yaml:"host"`
	Port            string `yaml:"port"`
	User            string `yaml:"user"`
	DBName          string `yaml:"name"`
	Password        string `yaml:"password"`
	SSLMode         string `yaml:"ssl_mode"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

type VerificationConfig struct {
	PollingInterval   time.Duration `yaml:"polling_interval"`
	CallTimeout       time.Duration `yaml:"call_timeout"`
	BatchSize         int           `yaml:"batch_size"`
	MaxAttempts       int           `yaml:"max_attempts"`
	ConcurrentWorkers int           `yaml:"concurrent_workers"`
	PaymentTTL        time.Duration `yaml:"payment_ttl"`
}

type FraudConfig struct {
	AutoApproveConfidence float64 `yaml:"auto_approve_confidence"`
	AutoApproveMaxScore   float64 `yaml:"auto_approve_max_score"`
	ReviewMinConfidence   float64 `yaml:"review_min_confidence"`
}

type ExtractorConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	CheckOrigin     bool          `yaml:"check_origin"`
	PingPeriod      time.Duration `yaml:"ping_period"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

type SecurityConfig struct {
	APIKey string `yaml:"api_key"`
}

// PaymentMethodConfig describes one supported asset. Immutable after load,
// keyed by Symbol.
type PaymentMethodConfig struct {
	Symbol                string  `yaml:"symbol"`
	ChainFamily           string  `yaml:"chain_family"` // "utxo" or "account"
	ExplorerBaseURL       string  `yaml:"explorer_base_url"`
	ExplorerAPIKey        string  `yaml:"explorer_api_key"`
	ContractAddress       string  `yaml:"contract_address"`
	TokenDecimals         int     `yaml:"token_decimals"`
	RequiredConfirmations int     `yaml:"required_confirmations"`
	RecipientAddress      string  `yaml:"recipient_address"`
	AmountEpsilon         float64 `yaml:"amount_epsilon"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	path := os.Getenv("PVS_CONFIG")
	if path == "" {
		path = "./config.yaml"
	}

	configData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(configData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Verification.PollingInterval == 0 {
		c.Verification.PollingInterval = 2 * time.Minute
	}
	if c.Verification.CallTimeout == 0 {
		c.Verification.CallTimeout = 15 * time.Second
	}
	if c.Verification.BatchSize == 0 {
		c.Verification.BatchSize = 10
	}
	if c.Verification.MaxAttempts == 0 {
		c.Verification.MaxAttempts = 30
	}
	if c.Verification.ConcurrentWorkers == 0 {
		c.Verification.ConcurrentWorkers = 10
	}
	if c.Verification.PaymentTTL == 0 {
		c.Verification.PaymentTTL = 24 * time.Hour
	}
	if c.Fraud.AutoApproveConfidence == 0 {
		c.Fraud.AutoApproveConfidence = 0.85
	}
	if c.Fraud.AutoApproveMaxScore == 0 {
		c.Fraud.AutoApproveMaxScore = 0.3
	}
	if c.Fraud.ReviewMinConfidence == 0 {
		c.Fraud.ReviewMinConfidence = 0.6
	}
	for i := range c.PaymentMethods {
		m := &c.PaymentMethods[i]
		if m.RequiredConfirmations == 0 {
			m.RequiredConfirmations = 3
		}
		if m.AmountEpsilon == 0 {
			m.AmountEpsilon = 1e-8
		}
	}
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.PaymentMethods))
	for _, m := range c.PaymentMethods {
		if m.Symbol == "" {
			return fmt.Errorf("payment method with empty symbol")
		}
		if seen[m.Symbol] {
			return fmt.Errorf("duplicate payment method symbol: %s", m.Symbol)
		}
		seen[m.Symbol] = true
		if m.ChainFamily != "utxo" && m.ChainFamily != "account" {
			return fmt.Errorf("payment method %s: unknown chain family %q", m.Symbol, m.ChainFamily)
		}
		if m.ExplorerBaseURL == "" {
			return fmt.Errorf("payment method %s: explorer base URL is required", m.Symbol)
		}
		if m.RecipientAddress == "" {
			return fmt.Errorf("payment method %s: recipient address is required", m.Symbol)
		}
	}
	return nil
}

// Method returns the payment method config for a symbol.
func (c *Config) Method(symbol string) (PaymentMethodConfig, bool) {
	for _, m := range c.PaymentMethods {
		if m.Symbol == symbol {
			return m, true
		}
	}
	return PaymentMethodConfig{}, false
}
