// Package config holds operator-level configuration for a SafeMask
// installation: data directory, optional vault key override, auto-lock
// timing, refinement provider settings, and the HTTP listen address.
//
// Values come from env vars (SAFEMASK_*) or a safemask.config.yaml file.
// Vault key material is normally generated and persisted by the vault itself
// on first use; the vault_key setting exists only for operators who manage
// the encryption key externally.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/MathFreedom/SafeMask/internal/cryptoutil"
)

// Viper keys. Each maps to an env var with the SAFEMASK_ prefix
// (e.g. "vault_key" → SAFEMASK_VAULT_KEY) and to a YAML field in
// safemask.config.yaml.
const (
	KeyDataDir         = "data_dir"
	KeyVaultKey        = "vault_key"
	KeyAutoLockMinutes = "auto_lock_minutes"
	KeyOpenAIAPIKey    = "openai_api_key"
	KeyOpenAIBaseURL   = "openai_base_url"
	KeyRefineModel     = "refine_model"
	KeyRefineRPM       = "refine_rpm"
	KeyListenAddr      = "listen_addr"
)

// Defaults.
const (
	DefaultAutoLockMinutes = 10
	DefaultRefineModel     = "gpt-4o-mini"
	DefaultRefineRPM       = 60
	DefaultListenAddr      = ":8787"
)

// Config is the resolved operator-level configuration for a SafeMask process.
type Config struct {
	DataDir         string // base directory for all state (~/.safemask)
	VaultKey        []byte // optional operator-managed AES-256 key (nil = vault-generated)
	AutoLockMinutes int    // vault inactivity auto-lock; 0 disables
	OpenAIAPIKey    string // refinement provider credential (optional)
	OpenAIBaseURL   string // override endpoint for the refinement provider
	RefineModel     string // model used for refinement and polish prompts
	RefineRPM       int    // refinement call budget per minute
	ListenAddr      string // serve command bind address
}

// VaultDBPath returns the full path to the vault SQLite database.
func (c *Config) VaultDBPath() string {
	return filepath.Join(c.DataDir, "vault.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

func init() {
	viper.SetEnvPrefix("SAFEMASK")
	viper.AutomaticEnv()
	viper.SetDefault(KeyAutoLockMinutes, DefaultAutoLockMinutes)
	viper.SetDefault(KeyRefineModel, DefaultRefineModel)
	viper.SetDefault(KeyRefineRPM, DefaultRefineRPM)
	viper.SetDefault(KeyListenAddr, DefaultListenAddr)
}

// Load reads configuration from Viper (which merges env vars, config file,
// and defaults) and returns a validated Config. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:         resolveDataDir(),
		AutoLockMinutes: viper.GetInt(KeyAutoLockMinutes),
		OpenAIAPIKey:    resolveOpenAIKey(),
		OpenAIBaseURL:   viper.GetString(KeyOpenAIBaseURL),
		RefineModel:     viper.GetString(KeyRefineModel),
		RefineRPM:       viper.GetInt(KeyRefineRPM),
		ListenAddr:      viper.GetString(KeyListenAddr),
	}

	if raw := viper.GetString(KeyVaultKey); raw != "" {
		key, err := decodeVaultKey(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		cfg.VaultKey = key
	}

	if cfg.AutoLockMinutes < 0 {
		return nil, fmt.Errorf("invalid configuration: auto_lock_minutes must not be negative")
	}

	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".safemask"
	}
	return filepath.Join(home, ".safemask")
}

// resolveOpenAIKey falls back to the conventional OPENAI_API_KEY env var so
// single-user setups work without SafeMask-specific configuration.
func resolveOpenAIKey() string {
	if k := viper.GetString(KeyOpenAIAPIKey); k != "" {
		return k
	}
	return os.Getenv("OPENAI_API_KEY")
}

// decodeVaultKey accepts either 32 raw bytes or 64 hex characters
// (decoded to 32 bytes for AES-256).
func decodeVaultKey(key string) ([]byte, error) {
	if len(key) == 64 && cryptoutil.IsHexString(key) {
		decoded, err := hex.DecodeString(key)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("vault_key hex must decode to 32 bytes")
		}
		return decoded, nil
	}
	if len(key) == 32 {
		return []byte(key), nil
	}
	return nil, fmt.Errorf("vault_key must be exactly 32 bytes or 64 hex characters (got %d); set SAFEMASK_VAULT_KEY", len(key))
}
