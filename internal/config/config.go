// Package config provides configuration management for reelarr using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variables, e.g. REELARR_SERVER_PORT.
const EnvPrefix = "REELARR"

// Default configuration values.
const (
	defaultServerPort            = 8080
	defaultServerTimeout         = 30 * time.Second
	defaultWriteTimeout          = 5 * time.Minute // covers synchronous reconcile/repair requests
	defaultShutdownTimeout       = 10 * time.Second
	defaultMaxOpenConns          = 25
	defaultMaxIdleConns          = 10
	defaultConnMaxIdleTime       = 30 * time.Minute
	defaultSourceTimeout         = 60 * time.Second
	defaultSourceRateLimit       = 5.0
	defaultSourceBurst           = 5
	defaultSourceRetryAttempts   = 3
	defaultPollTimeout           = 30 * time.Second
	defaultSyncLimit             = 10000
	defaultIncrementalWindow     = 200
	defaultReconcileWindow       = 1000
	defaultPassTimeout           = 30 * time.Minute
	defaultMaxConcurrentChannels = 4
	defaultIncrementalSchedule   = "*/15 * * * *"
	defaultReconcileSchedule     = "0 */6 * * *"
	defaultRepairSchedule        = "30 3 * * *"
	defaultMovieMaxEpisodes      = 3
	defaultSeriesMinEpisodes     = 5
	defaultMinBinaryVideoSize    = 5 * 1024 * 1024 // 5MiB
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Source     SourceConfig     `mapstructure:"source"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
}

// ServerConfig holds HTTP server configuration for the read-only catalog API.
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text, auto
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
	// DebugMode forces the debug level. It is kept for DEBUG_MODE.
	DebugMode bool `mapstructure:"debug_mode"`
}

// SourceConfig selects and configures the channel message transport.
type SourceConfig struct {
	Kind          string        `mapstructure:"kind"` // bridge, export
	BaseURL       string        `mapstructure:"base_url"`
	Token         string        `mapstructure:"token"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RateLimit     float64       `mapstructure:"rate_limit"` // requests per second
	Burst         int           `mapstructure:"burst"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	PollTimeout   time.Duration `mapstructure:"poll_timeout"`
	ExportFile    string        `mapstructure:"export_file"`
}

// SyncConfig controls which channels are ingested and how passes run.
type SyncConfig struct {
	Channels []string `mapstructure:"channels"`

	// Limit caps the number of history messages fetched per backfill.
	// Zero means unlimited.
	Limit int `mapstructure:"limit"`

	IncrementalWindow     int           `mapstructure:"incremental_window"`
	ReconcileWindow       int           `mapstructure:"reconcile_window"`
	ImportHistory         bool          `mapstructure:"import_history"`
	ForceSync             bool          `mapstructure:"force_sync"`
	CheckDeleted          bool          `mapstructure:"check_deleted"`
	ResetDatabase         bool          `mapstructure:"reset_database"`
	PassTimeout           time.Duration `mapstructure:"pass_timeout"`
	MaxConcurrentChannels int           `mapstructure:"max_concurrent_channels"`
	IncrementalSchedule   string        `mapstructure:"incremental_schedule"`
	ReconcileSchedule     string        `mapstructure:"reconcile_schedule"`
	RepairSchedule        string        `mapstructure:"repair_schedule"`
	LockFile              string        `mapstructure:"lock_file"`
}

// ClassifierConfig holds the tunable classification heuristics.
type ClassifierConfig struct {
	UseEpisodeCount    bool  `mapstructure:"use_episode_count"`
	MovieMaxEpisodes   int   `mapstructure:"movie_max_episodes"`
	SeriesMinEpisodes  int   `mapstructure:"series_min_episodes"`
	MinBinaryVideoSize int64 `mapstructure:"min_binary_video_size"`
}

// legacyEnv maps config keys to the unprefixed environment variables used by
// earlier deployments. The prefixed name is checked first.
var legacyEnv = map[string]string{
	"sync.channels":                  "CHANNELS",
	"sync.limit":                     "SYNC_LIMIT",
	"sync.import_history":            "IMPORT_HISTORY",
	"sync.check_deleted":             "CHECK_DELETED_MESSAGES",
	"sync.force_sync":                "FORCE_SYNC",
	"sync.reset_database":            "RESET_DATABASE",
	"logging.debug_mode":             "DEBUG_MODE",
	"classifier.movie_max_episodes":  "MOVIE_THRESHOLD",
	"classifier.series_min_episodes": "SERIES_THRESHOLD",
	"database.dsn":                   "DATABASE_URL",
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with REELARR_ and use underscores for nesting.
// Example: REELARR_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	Bind(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/reelarr")
		v.AddConfigPath("$HOME/.reelarr")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return FromViper(v)
}

// Bind installs defaults and environment variable bindings on v.
func Bind(v *viper.Viper) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, legacy)
	}
}

// FromViper unmarshals and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Logging.DebugMode {
		cfg.Logging.Level = "debug"
	}
	cfg.Sync.Channels = splitChannels(cfg.Sync.Channels)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultWriteTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "reelarr.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
	v.SetDefault("logging.debug_mode", false)

	// Source defaults
	v.SetDefault("source.kind", "bridge")
	v.SetDefault("source.base_url", "http://localhost:8081")
	v.SetDefault("source.token", "")
	v.SetDefault("source.timeout", defaultSourceTimeout)
	v.SetDefault("source.rate_limit", defaultSourceRateLimit)
	v.SetDefault("source.burst", defaultSourceBurst)
	v.SetDefault("source.retry_attempts", defaultSourceRetryAttempts)
	v.SetDefault("source.poll_timeout", defaultPollTimeout)
	v.SetDefault("source.export_file", "")

	// Sync defaults
	v.SetDefault("sync.channels", []string{})
	v.SetDefault("sync.limit", defaultSyncLimit)
	v.SetDefault("sync.incremental_window", defaultIncrementalWindow)
	v.SetDefault("sync.reconcile_window", defaultReconcileWindow)
	v.SetDefault("sync.import_history", false)
	v.SetDefault("sync.force_sync", false)
	v.SetDefault("sync.check_deleted", true)
	v.SetDefault("sync.reset_database", false)
	v.SetDefault("sync.pass_timeout", defaultPassTimeout)
	v.SetDefault("sync.max_concurrent_channels", defaultMaxConcurrentChannels)
	v.SetDefault("sync.incremental_schedule", defaultIncrementalSchedule)
	v.SetDefault("sync.reconcile_schedule", defaultReconcileSchedule)
	v.SetDefault("sync.repair_schedule", defaultRepairSchedule)
	v.SetDefault("sync.lock_file", "reelarr.lock")

	// Classifier defaults
	v.SetDefault("classifier.use_episode_count", true)
	v.SetDefault("classifier.movie_max_episodes", defaultMovieMaxEpisodes)
	v.SetDefault("classifier.series_min_episodes", defaultSeriesMinEpisodes)
	v.SetDefault("classifier.min_binary_video_size", defaultMinBinaryVideoSize)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	// Database validation
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true, "auto": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text, auto")
	}

	// Source validation
	switch c.Source.Kind {
	case "bridge":
		if c.Source.BaseURL == "" {
			return fmt.Errorf("source.base_url is required for the bridge source")
		}
	case "export":
	default:
		return fmt.Errorf("source.kind must be one of: bridge, export")
	}
	if c.Source.RateLimit <= 0 {
		return fmt.Errorf("source.rate_limit must be positive")
	}
	if c.Source.Burst < 1 {
		return fmt.Errorf("source.burst must be at least 1")
	}

	// Sync validation
	if c.Sync.Limit < 0 {
		return fmt.Errorf("sync.limit must not be negative (0 means unlimited)")
	}
	if c.Sync.IncrementalWindow < 1 {
		return fmt.Errorf("sync.incremental_window must be at least 1")
	}
	if c.Sync.ReconcileWindow < 1 {
		return fmt.Errorf("sync.reconcile_window must be at least 1")
	}
	if c.Sync.MaxConcurrentChannels < 1 {
		return fmt.Errorf("sync.max_concurrent_channels must be at least 1")
	}
	for key, expr := range map[string]string{
		"sync.incremental_schedule": c.Sync.IncrementalSchedule,
		"sync.reconcile_schedule":   c.Sync.ReconcileSchedule,
		"sync.repair_schedule":      c.Sync.RepairSchedule,
	} {
		if expr == "" {
			continue
		}
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("%s is not a valid cron expression: %w", key, err)
		}
	}

	// Classifier validation
	if c.Classifier.MovieMaxEpisodes < 0 {
		return fmt.Errorf("classifier.movie_max_episodes must not be negative")
	}
	if c.Classifier.SeriesMinEpisodes <= c.Classifier.MovieMaxEpisodes {
		return fmt.Errorf("classifier.series_min_episodes must be greater than classifier.movie_max_episodes")
	}
	if c.Classifier.MinBinaryVideoSize < 0 {
		return fmt.Errorf("classifier.min_binary_video_size must not be negative")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// splitChannels accepts both list and comma separated forms, which is what
// CHANNELS=@a,@b produces through the environment.
func splitChannels(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, item := range in {
		for ch := range strings.SplitSeq(item, ",") {
			ch = strings.TrimSpace(ch)
			if ch == "" || seen[ch] {
				continue
			}
			seen[ch] = true
			out = append(out, ch)
		}
	}
	return out
}
