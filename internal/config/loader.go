// Package config provides centralized configuration management for repolens.
// Values are layered with spf13/viper: built-in defaults, an optional YAML
// config file, then REPOLENS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is used for XDG paths and the config file name.
	AppName = "repolens"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "REPOLENS"

	// TokenFallbackEnv is read when github.tokens is empty.
	TokenFallbackEnv = "GITHUB_APP_INSTALLATION_TOKENS"

	DefaultAPIURL = "https://api.github.com/graphql"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// SetDefaults registers every known key with its default value. Keys must be
// known to viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("github.api_url", DefaultAPIURL)
	v.SetDefault("github.tokens", []string{})
	v.SetDefault("github.timeout", "30s")
	v.SetDefault("github.user_agent", AppName)
	v.SetDefault("github.max_retries", 3)
	v.SetDefault("github.backoff_base", "1s")
	v.SetDefault("github.low_remaining", 100)
	v.SetDefault("github.exhausted_remaining", 0)
	v.SetDefault("github.pause_buffer", "10s")
	v.SetDefault("github.quota_source", "auto")

	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("extract.workers", 1)
	v.SetDefault("extract.batch_size", 50)
	v.SetDefault("extract.refresh_after", "0s")
	v.SetDefault("extract.failure_log", "failed_repositories.log")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.host", "127.0.0.1")
	v.SetDefault("metrics.port", 9090)
}

// Configure prepares v for loading: defaults, config file discovery and
// environment binding. An empty cfgFile searches ./config and the XDG config
// directory for repolens.yaml / config.yaml.
func Configure(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	if strings.TrimSpace(cfgFile) != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if dir := gfconfig.GetAppConfigDir(AppName); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// It's OK if config file doesn't exist, we have defaults
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if strings.TrimSpace(cfgFile) == "" && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// Load decodes the effective configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		return nil, errors.New("viper instance is required")
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.GitHub.Tokens = cleanTokens(cfg.GitHub.Tokens)
	if len(cfg.GitHub.Tokens) == 0 {
		cfg.GitHub.Tokens = cleanTokens(strings.Split(os.Getenv(TokenFallbackEnv), ","))
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.GitHub.APIURL) == "" {
		return errors.New("github.api_url is required")
	}
	if c.GitHub.MaxRetries < 0 {
		return fmt.Errorf("github.max_retries must be >= 0, got %d", c.GitHub.MaxRetries)
	}
	if c.GitHub.BackoffBase < 0 {
		return fmt.Errorf("github.backoff_base must be >= 0, got %s", c.GitHub.BackoffBase)
	}
	if c.GitHub.Timeout < 0 {
		return fmt.Errorf("github.timeout must be >= 0, got %s", c.GitHub.Timeout)
	}
	if c.GitHub.LowRemaining < c.GitHub.ExhaustedRemaining {
		return fmt.Errorf("github.low_remaining (%d) must be >= github.exhausted_remaining (%d)",
			c.GitHub.LowRemaining, c.GitHub.ExhaustedRemaining)
	}
	switch strings.ToLower(strings.TrimSpace(c.GitHub.QuotaSource)) {
	case "", "auto", "body", "headers":
	default:
		return fmt.Errorf("github.quota_source must be auto, body or headers, got %q", c.GitHub.QuotaSource)
	}
	if c.Extract.Workers < 1 {
		return fmt.Errorf("extract.workers must be >= 1, got %d", c.Extract.Workers)
	}
	if c.Extract.BatchSize < 1 {
		return fmt.Errorf("extract.batch_size must be >= 1, got %d", c.Extract.BatchSize)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, AppName+".yaml")
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}

func cleanTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		// a YAML list may itself carry comma-joined entries
		for _, part := range strings.Split(token, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
