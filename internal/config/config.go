// Package config holds operator-level configuration for a Scrub
// installation: data directory, audit signing key, rule overrides, and
// worker pool size. Set via env vars (SCRUB_*) or a scrub.config.yaml
// file; field rule overrides themselves live in the rules file, not here.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Viper keys. Each maps to an env var with the SCRUB_ prefix
// (e.g. "signing_key" → SCRUB_SIGNING_KEY) and to a YAML field in
// scrub.config.yaml.
const (
	KeyDataDir    = "data_dir"
	KeySigningKey = "signing_key"
	KeyRulesFile  = "rules_file"
	KeyWorkers    = "workers"
)

// DefaultWorkers is the batch pool size when none is configured.
const DefaultWorkers = 4

// Config holds resolved operator-level configuration for a Scrub process.
type Config struct {
	DataDir    string // Base directory for all state (~/.scrub)
	SigningKey string // HMAC-SHA256 key for run audit signing (≥32 bytes)
	RulesFile  string // Optional field rule override file
	Workers    int    // Batch evaluation pool size

	usingDefaultSigningKey bool
}

// UsingDefaultSigningKey returns true if the signing key was derived
// rather than set explicitly.
func (c *Config) UsingDefaultSigningKey() bool {
	return c.usingDefaultSigningKey
}

// AuditDBPath returns the full path to the run audit SQLite database.
func (c *Config) AuditDBPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

// WarnIfDefaultKey logs a warning when the signing key is not explicitly
// set. Suppressed when SCRUB_QUICKSTART=1 or true.
func (c *Config) WarnIfDefaultKey() {
	if isQuickstart() {
		return
	}
	if c.usingDefaultSigningKey {
		log.Warn().Msg("Using generated default SCRUB_SIGNING_KEY — set via env var or config file for production")
	}
}

func isQuickstart() bool {
	v := os.Getenv("SCRUB_QUICKSTART")
	return v == "1" || v == "true" || v == "TRUE"
}

func init() {
	viper.SetEnvPrefix("SCRUB")
	viper.AutomaticEnv()
	viper.SetDefault(KeyWorkers, DefaultWorkers)
}

// Load reads configuration from Viper (which merges env vars, config file,
// and defaults) and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:    resolveDataDir(),
		SigningKey: viper.GetString(KeySigningKey),
		RulesFile:  viper.GetString(KeyRulesFile),
		Workers:    viper.GetInt(KeyWorkers),
	}

	if cfg.SigningKey == "" {
		cfg.SigningKey = deriveDefaultKey(cfg.DataDir, "run-audit-signing")
		cfg.usingDefaultSigningKey = true
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scrub"
	}
	return filepath.Join(home, ".scrub")
}

// deriveDefaultKey produces a deterministic 32-byte fallback key from the
// data directory path and a salt. This is NOT cryptographically strong; it
// exists solely so a fresh install works out of the box while still
// signing audit records with a per-machine key.
func deriveDefaultKey(dataDir, salt string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("scrub:%s:%s", dataDir, salt)))
	return hex.EncodeToString(h[:])
}

func (c *Config) validate() error {
	if err := validateSigningKey(c.SigningKey); err != nil {
		return err
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	return nil
}

// validateSigningKey accepts either ≥32 raw bytes or 64+ even hex
// characters decoding to ≥32 bytes (HMAC-SHA256 key material).
func validateSigningKey(key string) error {
	n := len(key)
	if n >= 64 && n%2 == 0 && isHexString(key) {
		decoded, err := hex.DecodeString(key)
		if err != nil || len(decoded) < 32 {
			return fmt.Errorf("signing_key hex must decode to at least 32 bytes: %w", err)
		}
		return nil
	}
	if n >= 32 {
		return nil
	}
	return fmt.Errorf("signing_key must be at least 32 bytes or 64+ hex characters (got %d); set SCRUB_SIGNING_KEY", n)
}

func isHexString(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
