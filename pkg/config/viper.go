package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/papercomputeco/sleeves/pkg/dotdir"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "SLEEVES"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), loads a sibling .env file, and binds
// environment variables with the SLEEVES_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (SLEEVES_API_LISTEN, SLEEVES_PRIMARY_BACKEND, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)

		// Variables already present in the environment win over .env.
		if err := godotenv.Load(filepath.Join(target, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: SLEEVES_API_LISTEN, SLEEVES_SECONDARY_ENABLED, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// Unmarshal builds a Config from the merged viper state. Keys are read
// through the same dotted names used by config get/set.
func Unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{Version: v.GetInt("version")}
	for _, key := range ValidConfigKeys() {
		if !v.IsSet(key) {
			continue
		}
		raw := v.GetString(key)
		if raw == "" {
			continue
		}
		if err := configKeys[key].set(cfg, raw); err != nil {
			return nil, err
		}
	}

	applyDefaults(cfg)
	return cfg, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	for _, key := range ValidConfigKeys() {
		value := configKeys[key].get(d)
		if value == "" {
			continue
		}
		v.SetDefault(key, value)
	}
}
