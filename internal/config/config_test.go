package config

import (
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
	viper.SetEnvPrefix("SCRUB")
	viper.AutomaticEnv()
	viper.SetDefault(KeyWorkers, DefaultWorkers)
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)
	viper.Set(KeyDataDir, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.UsingDefaultSigningKey())
	assert.Len(t, cfg.SigningKey, 64) // hex sha256
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Empty(t, cfg.RulesFile)
}

func TestLoadExplicitSigningKey(t *testing.T) {
	resetViper(t)
	viper.Set(KeyDataDir, t.TempDir())
	viper.Set(KeySigningKey, strings.Repeat("k", 32))

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.UsingDefaultSigningKey())
}

func TestLoadRejectsShortSigningKey(t *testing.T) {
	resetViper(t)
	viper.Set(KeyDataDir, t.TempDir())
	viper.Set(KeySigningKey, "short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing_key")
}

func TestLoadRejectsNonPositiveWorkers(t *testing.T) {
	resetViper(t)
	viper.Set(KeyDataDir, t.TempDir())
	viper.Set(KeyWorkers, 0)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers")
}

func TestDerivedKeyIsDeterministicPerDataDir(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	viper.Set(KeyDataDir, dir)

	first, err := Load()
	require.NoError(t, err)
	second, err := Load()
	require.NoError(t, err)
	assert.Equal(t, first.SigningKey, second.SigningKey)

	viper.Set(KeyDataDir, filepath.Join(dir, "other"))
	third, err := Load()
	require.NoError(t, err)
	assert.NotEqual(t, first.SigningKey, third.SigningKey)
}

func TestAuditDBPath(t *testing.T) {
	cfg := &Config{DataDir: "/tmp/scrub"}
	assert.Equal(t, filepath.Join("/tmp/scrub", "audit.db"), cfg.AuditDBPath())
}

func TestValidateSigningKeyHex(t *testing.T) {
	assert.NoError(t, validateSigningKey(strings.Repeat("ab", 32)))
	assert.NoError(t, validateSigningKey(strings.Repeat("k", 40)))
	assert.Error(t, validateSigningKey(strings.Repeat("a", 31)))
}
