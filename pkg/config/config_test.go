package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tokendash/pkg/validator"
)

const tokenAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func TestLoadConfig_Malformed(t *testing.T) {
	reader := strings.NewReader(`{ "rpc_url": `)
	_, err := LoadConfig(reader)
	if err == nil {
		t.Error("Expected error loading malformed config, got nil")
	}
}

func TestLoadConfigFromFile_Missing(t *testing.T) {
	cfg, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg != Defaults() {
		t.Errorf("Expected defaults for a missing file, got %+v", cfg)
	}
}

func TestSaveConfig(t *testing.T) {
	tmpPath := filepath.Join(t.TempDir(), "config.json")

	cfg := Defaults()
	cfg.TokenAddress = tokenAddr
	cfg.PrivacyTimeoutSeconds = 120
	cfg.PrivateKey = "deadbeef"

	if err := SaveConfig(cfg, tmpPath); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	raw, err := os.ReadFile(tmpPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "deadbeef") {
		t.Error("Private key must never be written to disk")
	}

	loaded, err := LoadConfigFromFile(tmpPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.TokenAddress != tokenAddr {
		t.Errorf("Token address mismatch")
	}
	if loaded.PrivacyTimeoutSeconds != 120 {
		t.Errorf("Privacy timeout mismatch")
	}
	if loaded.PrivateKey != "" {
		t.Errorf("Private key should not round-trip through the file")
	}
}

func TestSaveConfig_BackupAndRestore(t *testing.T) {
	tmpPath := filepath.Join(t.TempDir(), "config.json")

	first := Defaults()
	first.TokenAddress = tokenAddr
	if err := SaveConfig(first, tmpPath); err != nil {
		t.Fatal(err)
	}

	second := first
	second.ChainID = 11155111
	if err := SaveConfig(second, tmpPath); err != nil {
		t.Fatal(err)
	}

	backups, _ := filepath.Glob(tmpPath + ".*.bak")
	if len(backups) != 1 {
		t.Fatalf("Expected 1 backup, got %d", len(backups))
	}

	if err := RestoreLastBackup(tmpPath); err != nil {
		t.Fatalf("RestoreLastBackup failed: %v", err)
	}
	restored, err := LoadConfigFromFile(tmpPath)
	if err != nil {
		t.Fatal(err)
	}
	if restored.ChainID != 31337 {
		t.Errorf("Expected restored chain id 31337, got %d", restored.ChainID)
	}
}

func TestRestoreLastBackup_NoBackups(t *testing.T) {
	if err := RestoreLastBackup(filepath.Join(t.TempDir(), "config.json")); err == nil {
		t.Error("Expected error when no backups exist")
	}
}

func TestSaveConfig_RejectsInvalid(t *testing.T) {
	cfg := Defaults()
	err := SaveConfig(cfg, filepath.Join(t.TempDir(), "config.json"))
	if !errors.Is(err, validator.ErrValidationFailed) {
		t.Errorf("Expected validation error for missing token address, got %v", err)
	}
}

func TestLoadConfig_TableDriven(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		jsonContent string
		expectError bool
		validate    func(*testing.T, Config)
	}{
		{
			name: "Full Config",
			jsonContent: `{
				"rpc_url": "https://sepolia.example.org",
				"chain_id": 11155111,
				"token_address": "` + tokenAddr + `",
				"poll_interval_ms": 2000,
				"log_level": "debug"
			}`,
			validate: func(t *testing.T, c Config) {
				if c.RPCURL != "https://sepolia.example.org" {
					t.Errorf("RPC URL mismatch")
				}
				if c.ChainID != 11155111 {
					t.Errorf("Chain ID mismatch")
				}
				if c.PollInterval().Milliseconds() != 2000 {
					t.Errorf("Poll interval mismatch")
				}
				if c.LogLevel != "debug" {
					t.Errorf("Log level mismatch")
				}
			},
		},
		{
			name:        "Partial Config (Defaults)",
			jsonContent: `{"token_address": "` + tokenAddr + `"}`,
			validate: func(t *testing.T, c Config) {
				if c.RPCURL != "http://127.0.0.1:8545" {
					t.Errorf("Expected default RPC URL, got %s", c.RPCURL)
				}
				if c.PollIntervalMs != 1000 {
					t.Errorf("Expected default poll interval 1000, got %d", c.PollIntervalMs)
				}
				if c.ConfirmInterval().Seconds() != 1 {
					t.Errorf("Expected default confirm interval 1s, got %s", c.ConfirmInterval())
				}
				if c.ConfirmTimeout().Minutes() != 5 {
					t.Errorf("Expected default confirm timeout 5m, got %s", c.ConfirmTimeout())
				}
			},
		},
		{
			name:        "Malformed JSON",
			jsonContent: `{ "token_address": [ unclosed_array`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := LoadConfig(strings.NewReader(tt.jsonContent))

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"valid", func(c *Config) {}, true},
		{"bad rpc url", func(c *Config) { c.RPCURL = "not a url" }, false},
		{"bad token address", func(c *Config) { c.TokenAddress = "0x1234" }, false},
		{"poll interval too small", func(c *Config) { c.PollIntervalMs = 10 }, false},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }, false},
		{"non hex private key", func(c *Config) { c.PrivateKey = "xyz" }, false},
		{"empty explorer allowed", func(c *Config) { c.ExplorerURL = "" }, true},
		{"zero confirm timeout", func(c *Config) { c.ConfirmTimeoutSeconds = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.TokenAddress = tokenAddr
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.valid && err != nil {
				t.Errorf("Expected valid config, got %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected validation error, got nil")
			}
		})
	}
}

func TestValidate_DoesNotLeakPrivateKey(t *testing.T) {
	cfg := Defaults()
	cfg.TokenAddress = tokenAddr
	cfg.PrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff8Z"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for a malformed key")
	}
	if strings.Contains(err.Error(), cfg.PrivateKey) {
		t.Errorf("Private key leaked into error: %v", err)
	}
	if !strings.Contains(err.Error(), "PrivateKey") {
		t.Errorf("Expected the failing field to be named, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TOKENDASH_RPC_URL", "http://node:8545")
	t.Setenv("TOKENDASH_CHAIN_ID", "1")
	t.Setenv("TOKENDASH_TOKEN_ADDRESS", tokenAddr)
	t.Setenv("TOKENDASH_PRIVATE_KEY", "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")

	cfg := Defaults()
	if err := ApplyEnv(&cfg); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.RPCURL != "http://node:8545" {
		t.Errorf("RPC URL override not applied")
	}
	if cfg.ChainID != 1 {
		t.Errorf("Chain ID override not applied, got %d", cfg.ChainID)
	}
	if cfg.TokenAddress != tokenAddr {
		t.Errorf("Token address override not applied")
	}
	if cfg.PrivateKey == "" {
		t.Errorf("Private key not read from environment")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Unset variables must keep the current value, got %s", cfg.LogLevel)
	}
}

func TestApplyEnv_BadChainID(t *testing.T) {
	t.Setenv("TOKENDASH_CHAIN_ID", "mainnet")
	cfg := Defaults()
	if err := ApplyEnv(&cfg); err == nil {
		t.Error("Expected error for a non-numeric chain id")
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TOKENDASH_TOKEN_ADDRESS", "")
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"token_address": "`+tokenAddr+`"}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TokenAddress != tokenAddr {
		t.Errorf("Token address mismatch")
	}

	if err := os.WriteFile(path, []byte(`{"rpc_url": "x"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected validation error")
	}
}

func TestSaveConfig_PermissionError(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	tmpDir := t.TempDir()
	if err := os.Chmod(tmpDir, 0500); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chmod(tmpDir, 0700) }()

	cfg := Defaults()
	cfg.TokenAddress = tokenAddr
	if err := SaveConfig(cfg, filepath.Join(tmpDir, "config.json")); err == nil {
		t.Error("Expected permission error, got nil")
	}
}
