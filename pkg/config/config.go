package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"tokendash/pkg/validator"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	ConfigFileName = ".tokendash.json"
	EnvPrefix      = "TOKENDASH"
)

// Config holds the dashboard settings.
type Config struct {
	RPCURL                string `json:"rpc_url" validate:"required,url"`
	ChainID               int64  `json:"chain_id" validate:"gte=0"`
	TokenAddress          string `json:"token_address" validate:"required,eth_addr"`
	ExplorerURL           string `json:"explorer_url,omitempty" validate:"omitempty,url"`
	PollIntervalMs        int    `json:"poll_interval_ms" validate:"gte=100"`
	ConfirmIntervalMs     int    `json:"confirm_interval_ms" validate:"gte=100"`
	ConfirmTimeoutSeconds int    `json:"confirm_timeout_seconds" validate:"gte=1"`
	DisplayDecimals       int    `json:"display_decimals" validate:"gte=0,lte=18"`
	PrivacyTimeoutSeconds int    `json:"privacy_timeout_seconds" validate:"gte=0"`
	AutoConnect           bool   `json:"auto_connect"`
	LogLevel              string `json:"log_level" validate:"oneof=debug info warn error"`
	LogFile               string `json:"log_file,omitempty"`

	// PrivateKey is only ever read from the environment and never saved.
	PrivateKey string `json:"-" secret:"true" validate:"omitempty,hexadecimal"`
}

// envOverrides are read from TOKENDASH_* variables, after loading .env.
type envOverrides struct {
	RPCURL       string `envconfig:"RPC_URL"`
	ChainID      *int64 `envconfig:"CHAIN_ID"`
	TokenAddress string `envconfig:"TOKEN_ADDRESS"`
	ExplorerURL  string `envconfig:"EXPLORER_URL"`
	LogLevel     string `envconfig:"LOG_LEVEL"`
	LogFile      string `envconfig:"LOG_FILE"`
	PrivateKey   string `envconfig:"PRIVATE_KEY"`
}

// Defaults targets a local anvil node.
func Defaults() Config {
	return Config{
		RPCURL:                "http://127.0.0.1:8545",
		ChainID:               31337,
		ExplorerURL:           "https://etherscan.io",
		PollIntervalMs:        1000,
		ConfirmIntervalMs:     1000,
		ConfirmTimeoutSeconds: 300,
		DisplayDecimals:       4,
		PrivacyTimeoutSeconds: 0,
		AutoConnect:           true,
		LogLevel:              "info",
	}
}

// PollInterval is the live event polling interval.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// ConfirmTimeout bounds the wait for a write's receipt.
func (c Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutSeconds) * time.Second
}

// ConfirmInterval is the receipt polling interval.
func (c Config) ConfirmInterval() time.Duration {
	return time.Duration(c.ConfirmIntervalMs) * time.Millisecond
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

// Load reads the file at path, applies environment overrides and validates
// the result.
func Load(path string) (Config, error) {
	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFromFile returns Defaults when the file does not exist.
func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Defaults(), nil
	}
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f)
}

// LoadConfig decodes a JSON config; absent keys keep their defaults.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := Defaults()
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv loads .env from the working directory, if present, and overlays
// TOKENDASH_* variables onto cfg. Variables already set in the process
// environment win over .env.
func ApplyEnv(cfg *Config) error {
	_ = godotenv.Load()

	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	if env.RPCURL != "" {
		cfg.RPCURL = env.RPCURL
	}
	if env.ChainID != nil {
		cfg.ChainID = *env.ChainID
	}
	if env.TokenAddress != "" {
		cfg.TokenAddress = env.TokenAddress
	}
	if env.ExplorerURL != "" {
		cfg.ExplorerURL = env.ExplorerURL
	}
	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}
	if env.LogFile != "" {
		cfg.LogFile = env.LogFile
	}
	if env.PrivateKey != "" {
		cfg.PrivateKey = env.PrivateKey
	}
	return nil
}

// Validate checks every field against its rules.
func Validate(cfg Config) error {
	return validator.Validate(cfg)
}

func SaveConfig(cfg Config, path string) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	// Create a backup of the existing file
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0644); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func RestoreLastBackup(configPath string) error {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no backup files found")
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0644)
}
