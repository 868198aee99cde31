// Package config loads and validates collector configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Collector CollectorConfig `mapstructure:"collector"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Retention RetentionConfig `mapstructure:"retention"`
	Health    HealthConfig    `mapstructure:"health"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Backup    BackupConfig    `mapstructure:"backup"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the status HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CollectorConfig governs the poll loop and its maintenance cadences.
type CollectorConfig struct {
	BaseURL                string `mapstructure:"base_url"`
	DataDir                string `mapstructure:"data_dir"`
	IntervalSeconds        int    `mapstructure:"interval_seconds"`
	MaxConsecutiveFailures int    `mapstructure:"max_consecutive_failures"`
	SnapshotEvery          int    `mapstructure:"snapshot_every"`
	LeaguesEvery           int    `mapstructure:"leagues_every"`
	RetentionEvery         int    `mapstructure:"retention_every"`
	PingEvery              int    `mapstructure:"ping_every"`
	GCEvery                int    `mapstructure:"gc_every"`
	MaxRestarts            int    `mapstructure:"max_restarts"`
	RestartDelaySeconds    int    `mapstructure:"restart_delay_seconds"`
}

// FetcherConfig configures the page fetcher and its lifecycle.
type FetcherConfig struct {
	Headless          bool   `mapstructure:"headless"`
	UserAgent         string `mapstructure:"user_agent"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	MaxAgeHours       int    `mapstructure:"max_age_hours"`
}

// RetentionConfig bounds in-memory and on-disk growth.
type RetentionConfig struct {
	WindowHours int `mapstructure:"window_hours"`
	KeepFiles   int `mapstructure:"keep_files"`
}

// HealthConfig holds the outbound liveness ping target.
type HealthConfig struct {
	PingURL string `mapstructure:"ping_url"`
}

// DBConfig controls the optional Postgres mirror.
type DBConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
}

// PubSubConfig holds metadata for change-summary publishing.
type PubSubConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// BackupConfig controls off-host snapshot mirroring.
type BackupConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("COLLECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 10000)
	v.SetDefault("collector.base_url", "https://ind.1xbet.com/")
	v.SetDefault("collector.data_dir", "data")
	v.SetDefault("collector.interval_seconds", 120)
	v.SetDefault("collector.max_consecutive_failures", 5)
	v.SetDefault("collector.snapshot_every", 10)
	v.SetDefault("collector.leagues_every", 30)
	v.SetDefault("collector.retention_every", 50)
	v.SetDefault("collector.ping_every", 10)
	v.SetDefault("collector.gc_every", 20)
	v.SetDefault("collector.max_restarts", 5)
	v.SetDefault("collector.restart_delay_seconds", 60)
	v.SetDefault("fetcher.headless", true)
	v.SetDefault("fetcher.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("fetcher.nav_timeout_seconds", 20)
	v.SetDefault("fetcher.timeout_seconds", 15)
	v.SetDefault("fetcher.max_age_hours", 4)
	v.SetDefault("retention.window_hours", 48)
	v.SetDefault("retention.keep_files", 5)
	v.SetDefault("db.provider", "noop")
	v.SetDefault("pubsub.provider", "noop")
	v.SetDefault("backup.provider", "noop")
	v.SetDefault("backup.prefix", "snapshots")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Collector.BaseURL == "" {
		return fmt.Errorf("collector.base_url must be set")
	}
	if c.Collector.DataDir == "" {
		return fmt.Errorf("collector.data_dir must be set")
	}
	if c.Collector.IntervalSeconds <= 0 {
		return fmt.Errorf("collector.interval_seconds must be > 0")
	}
	if c.Collector.MaxConsecutiveFailures <= 0 {
		return fmt.Errorf("collector.max_consecutive_failures must be > 0")
	}
	if c.Retention.WindowHours <= 0 {
		return fmt.Errorf("retention.window_hours must be > 0")
	}
	if c.Retention.KeepFiles <= 0 {
		return fmt.Errorf("retention.keep_files must be > 0")
	}
	if c.DB.Provider == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when db.provider is postgres")
	}
	if c.PubSub.Provider == "pubsub" && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub.provider is pubsub")
	}
	if c.Backup.Provider == "gcs" && c.Backup.GCSBucket == "" {
		return fmt.Errorf("backup.gcs_bucket must be set when backup.provider is gcs")
	}
	return nil
}

// Interval returns the poll interval as a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.Collector.IntervalSeconds) * time.Second
}

// RestartDelay returns the pause between top-level restart attempts.
func (c Config) RestartDelay() time.Duration {
	return time.Duration(c.Collector.RestartDelaySeconds) * time.Second
}

// NavTimeout returns the headless navigation budget.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Fetcher.NavTimeoutSeconds) * time.Second
}

// FetchTimeout returns the plain-HTTP fetch budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetcher.TimeoutSeconds) * time.Second
}

// FetcherMaxAge returns the browser age ceiling for scheduled resets.
func (c Config) FetcherMaxAge() time.Duration {
	return time.Duration(c.Fetcher.MaxAgeHours) * time.Hour
}

// RetentionWindow returns the entity retention window.
func (c Config) RetentionWindow() time.Duration {
	return time.Duration(c.Retention.WindowHours) * time.Hour
}
