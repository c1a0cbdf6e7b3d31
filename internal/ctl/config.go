package ctl

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported store backends.
const (
	StorePostgres = "postgres"
	StoreBadger   = "badger"
)

// Config is the ccxctl configuration. Values come from flags, then CCX_*
// environment variables, then an optional ccxctl.yaml in the working
// directory. Nested keys use underscores in the environment, so
// "policy.engine" is read from CCX_POLICY_ENGINE.
type Config struct {
	Store       string       `mapstructure:"store"`
	DatabaseURL string       `mapstructure:"database_url"`
	BadgerPath  string       `mapstructure:"badger_path"`
	Actor       string       `mapstructure:"actor"`
	Verbose     bool         `mapstructure:"verbose"`
	Policy      PolicyConfig `mapstructure:"policy"`
}

// PolicyConfig selects the override policy. An empty Expression restricts
// writes to the default overridable fields. Compiled expressions are kept
// for CacheTTL in a cache of at most CacheSize programs; zero disables
// either bound.
type PolicyConfig struct {
	Engine     string        `mapstructure:"engine"`
	Expression string        `mapstructure:"expression"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	CacheSize  int           `mapstructure:"cache_size"`
}

// Default policy program cache bounds.
const (
	DefaultPolicyCacheTTL  = 10 * time.Minute
	DefaultPolicyCacheSize = 128
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("ccxctl")
	v.AddConfigPath(".")
	v.SetEnvPrefix("CCX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("store", StoreBadger)
	v.SetDefault("badger_path", "ccx-data")
	v.SetDefault("policy.engine", "expr")
	v.SetDefault("policy.cache_ttl", DefaultPolicyCacheTTL)
	v.SetDefault("policy.cache_size", DefaultPolicyCacheSize)
	for _, key := range []string{"store", "database_url", "badger_path", "actor", "verbose", "policy.engine", "policy.expression", "policy.cache_ttl", "policy.cache_size"} {
		_ = v.BindEnv(key)
	}
	return v
}

func loadConfig(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("ccxctl: read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("ccxctl: decode config: %w", err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	switch cfg.Store {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("ccxctl: database_url is required for the %s store", StorePostgres)
		}
	case StoreBadger:
		if cfg.BadgerPath == "" {
			return Config{}, fmt.Errorf("ccxctl: badger_path is required for the %s store", StoreBadger)
		}
	default:
		return Config{}, fmt.Errorf("ccxctl: unknown store %q", cfg.Store)
	}
	if cfg.Policy.CacheTTL < 0 || cfg.Policy.CacheSize < 0 {
		return Config{}, errors.New("ccxctl: policy cache_ttl and cache_size must not be negative")
	}
	return cfg, nil
}
