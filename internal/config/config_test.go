package config

import (
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	viper.SetEnvPrefix("SAFEMASK")
	viper.AutomaticEnv()
	viper.SetDefault(KeyAutoLockMinutes, DefaultAutoLockMinutes)
	viper.SetDefault(KeyRefineModel, DefaultRefineModel)
	viper.SetDefault(KeyRefineRPM, DefaultRefineRPM)
	viper.SetDefault(KeyListenAddr, DefaultListenAddr)
	t.Cleanup(func() { viper.Reset() })
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)
	viper.Set(KeyDataDir, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultAutoLockMinutes, cfg.AutoLockMinutes)
	assert.Equal(t, DefaultRefineModel, cfg.RefineModel)
	assert.Equal(t, DefaultRefineRPM, cfg.RefineRPM)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Nil(t, cfg.VaultKey)
}

func TestVaultDBPath(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	viper.Set(KeyDataDir, dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "vault.db"), cfg.VaultDBPath())
	require.NoError(t, cfg.EnsureDataDir())
}

func TestVaultKeyRawBytes(t *testing.T) {
	resetViper(t)
	viper.Set(KeyDataDir, t.TempDir())
	raw := strings.Repeat("k", 32)
	viper.Set(KeyVaultKey, raw)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []byte(raw), cfg.VaultKey)
}

func TestVaultKeyHex(t *testing.T) {
	resetViper(t)
	viper.Set(KeyDataDir, t.TempDir())
	keyHex := strings.Repeat("ab", 32) // 64 hex chars
	viper.Set(KeyVaultKey, keyHex)

	cfg, err := Load()
	require.NoError(t, err)
	want, _ := hex.DecodeString(keyHex)
	assert.Equal(t, want, cfg.VaultKey)
}

func TestVaultKeyInvalidLength(t *testing.T) {
	resetViper(t)
	viper.Set(KeyDataDir, t.TempDir())
	viper.Set(KeyVaultKey, "too-short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault_key")
}

func TestNegativeAutoLockRejected(t *testing.T) {
	resetViper(t)
	viper.Set(KeyDataDir, t.TempDir())
	viper.Set(KeyAutoLockMinutes, -1)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auto_lock_minutes")
}

func TestOpenAIKeyFallback(t *testing.T) {
	resetViper(t)
	viper.Set(KeyDataDir, t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.OpenAIAPIKey)

	// The SAFEMASK-scoped setting wins over the generic env var.
	viper.Set(KeyOpenAIAPIKey, "sk-scoped")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-scoped", cfg.OpenAIAPIKey)
}
