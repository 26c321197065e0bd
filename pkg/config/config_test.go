package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("PVS_CONFIG", path)
}

const minimalConfig = `
server:
  host: 127.0.0.1
  port: "8080"
payment_methods:
  - symbol: BTC
    chain_family: utxo
    explorer_base_url: https://blockstream.info/api
    recipient_address: bc1qtest
`

func TestLoadAppliesDefaults(t *testing.T) {
	writeConfig(t, minimalConfig)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Verification.PollingInterval != 2*time.Minute {
		t.Errorf("polling interval = %v, want 2m", cfg.Verification.PollingInterval)
	}
	if cfg.Verification.CallTimeout != 15*time.Second {
		t.Errorf("call timeout = %v, want 15s", cfg.Verification.CallTimeout)
	}
	if cfg.Verification.BatchSize != 10 {
		t.Errorf("batch size = %d, want 10", cfg.Verification.BatchSize)
	}
	if cfg.Verification.MaxAttempts != 30 {
		t.Errorf("max attempts = %d, want 30", cfg.Verification.MaxAttempts)
	}
	if cfg.Verification.PaymentTTL != 24*time.Hour {
		t.Errorf("payment TTL = %v, want 24h", cfg.Verification.PaymentTTL)
	}
	if cfg.Fraud.AutoApproveConfidence != 0.85 {
		t.Errorf("auto-approve confidence = %v, want 0.85", cfg.Fraud.AutoApproveConfidence)
	}

	m, ok := cfg.Method("BTC")
	if !ok {
		t.Fatal("BTC method missing")
	}
	if m.RequiredConfirmations != 3 {
		t.Errorf("required confirmations = %d, want default 3", m.RequiredConfirmations)
	}
	if m.AmountEpsilon != 1e-8 {
		t.Errorf("amount epsilon = %v, want default 1e-8", m.AmountEpsilon)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	writeConfig(t, `
verification:
  polling_interval: 30s
  batch_size: 25
payment_methods:
  - symbol: ETH
    chain_family: account
    explorer_base_url: https://rpc.example
    recipient_address: "0xabc"
    required_confirmations: 12
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Verification.PollingInterval != 30*time.Second {
		t.Errorf("polling interval = %v, want 30s", cfg.Verification.PollingInterval)
	}
	if cfg.Verification.BatchSize != 25 {
		t.Errorf("batch size = %d, want 25", cfg.Verification.BatchSize)
	}
	m, _ := cfg.Method("ETH")
	if m.RequiredConfirmations != 12 {
		t.Errorf("required confirmations = %d, want 12", m.RequiredConfirmations)
	}
}

func TestLoadRejectsUnknownChainFamily(t *testing.T) {
	writeConfig(t, `
payment_methods:
  - symbol: BTC
    chain_family: tangle
    explorer_base_url: https://example
    recipient_address: addr
`)

	if _, err := Load(); err == nil {
		t.Fatal("unknown chain family accepted")
	}
}

func TestLoadRejectsDuplicateSymbols(t *testing.T) {
	writeConfig(t, `
payment_methods:
  - symbol: BTC
    chain_family: utxo
    explorer_base_url: https://example
    recipient_address: addr
  - symbol: BTC
    chain_family: utxo
    explorer_base_url: https://example
    recipient_address: addr
`)

	if _, err := Load(); err == nil {
		t.Fatal("duplicate method symbol accepted")
	}
}

func TestLoadRejectsMissingRecipient(t *testing.T) {
	writeConfig(t, `
payment_methods:
  - symbol: BTC
    chain_family: utxo
    explorer_base_url: https://example
`)

	if _, err := Load(); err == nil {
		t.Fatal("method without recipient address accepted")
	}
}

func TestMethodLookup(t *testing.T) {
	writeConfig(t, minimalConfig)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := cfg.Method("DOGE"); ok {
		t.Error("unknown symbol resolved to a method")
	}
}
