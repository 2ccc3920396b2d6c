package config

import "time"

// Config represents the complete application configuration.
// Layers, lowest precedence first: defaults, YAML config file, REPOLENS_* environment.
type Config struct {
	GitHub  GitHubConfig  `mapstructure:"github"`
	Store   StoreConfig   `mapstructure:"store"`
	Extract ExtractConfig `mapstructure:"extract"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// GitHubConfig configures the GraphQL request engine.
type GitHubConfig struct {
	APIURL    string        `mapstructure:"api_url"`
	Tokens    []string      `mapstructure:"tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries  int           `mapstructure:"max_retries"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`

	// Quota thresholds. A credential is rotated (or the run paused) once
	// remaining drops below LowRemaining or reaches ExhaustedRemaining.
	LowRemaining       int           `mapstructure:"low_remaining"`
	ExhaustedRemaining int           `mapstructure:"exhausted_remaining"`
	PauseBuffer        time.Duration `mapstructure:"pause_buffer"`

	// QuotaSource is one of auto, body, headers.
	QuotaSource string `mapstructure:"quota_source"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// ExtractConfig controls batch extraction runs.
type ExtractConfig struct {
	Workers      int           `mapstructure:"workers"`
	BatchSize    int           `mapstructure:"batch_size"`
	RefreshAfter time.Duration `mapstructure:"refresh_after"`
	FailureLog   string        `mapstructure:"failure_log"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: debug, info, warn, error
	Level string `mapstructure:"level"`

	// Format is console (human readable) or json (structured).
	Format string `mapstructure:"format"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}
