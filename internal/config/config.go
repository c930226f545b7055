// Package config handles configuration loading for equitydesk.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Providers ProvidersConfig `mapstructure:"providers" yaml:"providers"`
	Cache     CacheConfig     `mapstructure:"cache"     yaml:"cache"`
	HTTP      HTTPConfig      `mapstructure:"http"      yaml:"http"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
}

// ProvidersConfig holds the quote-provider priority order and the optional
// vendor API keys. An adapter with no key is skipped, not an error.
type ProvidersConfig struct {
	Order           []string `mapstructure:"order"             yaml:"order"`
	AlphaVantageKey string   `mapstructure:"alphavantage_key"  yaml:"alphavantage_key"`
	TwelveDataKey   string   `mapstructure:"twelvedata_key"    yaml:"twelvedata_key"`
}

// CacheConfig holds the per-layer TTLs, in seconds.
type CacheConfig struct {
	QuoteTTL         int `mapstructure:"quote_ttl"          yaml:"quote_ttl"`
	TechnicalHitTTL  int `mapstructure:"technical_hit_ttl"  yaml:"technical_hit_ttl"`
	TechnicalMissTTL int `mapstructure:"technical_miss_ttl" yaml:"technical_miss_ttl"`
	FinancialHitTTL  int `mapstructure:"financial_hit_ttl"  yaml:"financial_hit_ttl"`
}

// HTTPConfig holds outbound HTTP settings.
type HTTPConfig struct {
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// QuoteDuration returns the quote cache TTL as a duration.
func (c CacheConfig) QuoteDuration() time.Duration {
	return time.Duration(c.QuoteTTL) * time.Second
}

// TechnicalHitDuration returns the successful-snapshot TTL.
func (c CacheConfig) TechnicalHitDuration() time.Duration {
	return time.Duration(c.TechnicalHitTTL) * time.Second
}

// TechnicalMissDuration returns the failed-lookup TTL.
func (c CacheConfig) TechnicalMissDuration() time.Duration {
	return time.Duration(c.TechnicalMissTTL) * time.Second
}

// FinancialHitDuration returns the successful-report TTL.
func (c CacheConfig) FinancialHitDuration() time.Duration {
	return time.Duration(c.FinancialHitTTL) * time.Second
}

// Timeout returns the outbound HTTP timeout as a duration.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.equitydesk/config.yaml (home directory)
//  3. /etc/equitydesk/config.yaml (system)
//
// Environment variables override config file values.
// Format: EQUITYDESK_<SECTION>_<KEY>, e.g., EQUITYDESK_PROVIDERS_ALPHAVANTAGE_KEY
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".equitydesk"))
	v.AddConfigPath("/etc/equitydesk")

	v.SetEnvPrefix("EQUITYDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("EQUITYDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Provider defaults: free, keyless sources first.
	v.SetDefault("providers.order", []string{
		"nse", "bse", "yahoo", "scanner", "alphavantage", "twelvedata", "screener",
	})

	// Cache defaults (seconds). Technical TTLs are asymmetric so failed
	// lookups retry quickly.
	v.SetDefault("cache.quote_ttl", 180)
	v.SetDefault("cache.technical_hit_ttl", 1800)
	v.SetDefault("cache.technical_miss_ttl", 120)
	v.SetDefault("cache.financial_hit_ttl", 21600)

	// HTTP defaults
	v.SetDefault("http.timeout_sec", 9)

	// Logging defaults
	v.SetDefault("logging.debug", false)
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("EQUITYDESK_PROVIDERS_ALPHAVANTAGE_KEY"); key != "" {
		cfg.Providers.AlphaVantageKey = key
	}
	if key := os.Getenv("EQUITYDESK_PROVIDERS_TWELVEDATA_KEY"); key != "" {
		cfg.Providers.TwelveDataKey = key
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
