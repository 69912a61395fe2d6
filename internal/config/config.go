// Package config provides configuration management for campscout. Values
// are loaded from an optional YAML file and overridden by environment
// variables via viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults.
const (
	defaultServerPort           = 8060
	defaultServerTimeout        = 30 * time.Second
	defaultDatabasePort         = 5432
	defaultMaxOpenConns         = 25
	defaultMaxIdleConns         = 5
	defaultConnMaxLifetime      = 5 * time.Minute
	defaultWorkerPoolSize       = 10
	defaultStartJitterMinMs     = 100
	defaultStartJitterMaxMs     = 4000
	defaultExtractTimeout       = 60 * time.Second
	defaultBrowserTimeout       = 120 * time.Second
	defaultGenerateTestTimeout  = 5 * time.Minute
	defaultScheduleSpec         = "@every 5m"
	defaultStaleJobTimeout      = 30 * time.Minute
	defaultPollInterval         = 15 * time.Second
	defaultFailureAlertLevel    = 3
	defaultRegenerationLevel    = 3
	defaultChangeVolumeLevel    = 50
	defaultMaxExternalChildren  = 30
	defaultMaxInternalChildren  = 50
	defaultExplorationDepth     = 2
	defaultScrapeIntervalMin    = 24 * 60
	defaultRedisAddress         = "localhost:6379"
)

// Config is the application configuration.
type Config struct {
	Debug        bool               `mapstructure:"debug"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Pipeline     PipelineConfig     `mapstructure:"pipeline"`
	Extraction   ExtractionConfig   `mapstructure:"extraction"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Address returns the listen address.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN builds the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis settings for the optional event publisher.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

// OrchestratorConfig holds job orchestration settings.
type OrchestratorConfig struct {
	// PoolSize bounds global in-flight scrape workflows.
	PoolSize int `mapstructure:"pool_size"`

	// StartJitterMinMs/StartJitterMaxMs bound the randomized delay before
	// a freshly created job's workflow starts.
	StartJitterMinMs int `mapstructure:"start_jitter_min_ms"`
	StartJitterMaxMs int `mapstructure:"start_jitter_max_ms"`

	// ScheduleSpec is the cron spec for the run-due-sources pass.
	ScheduleSpec string `mapstructure:"schedule_spec"`

	// StaleJobTimeout bounds how long a pending or running job may sit
	// untouched before a scheduled pass fails it out. Deferred starts
	// live in process memory, so a restart orphans any in-flight row.
	StaleJobTimeout time.Duration `mapstructure:"stale_job_timeout"`

	// DefaultScrapeIntervalMinutes applies to sources created without one.
	DefaultScrapeIntervalMinutes int `mapstructure:"default_scrape_interval_minutes"`

	// FailureAlertThreshold is the consecutive-failure count that raises a
	// scraper_degraded alert.
	FailureAlertThreshold int `mapstructure:"failure_alert_threshold"`

	// RegenerationThreshold is the consecutive-zero-result count that sets
	// needs_regeneration.
	RegenerationThreshold int `mapstructure:"regeneration_threshold"`

	// ChangeVolumeThreshold raises high_change_volume when one job records
	// more changes than this.
	ChangeVolumeThreshold int `mapstructure:"change_volume_threshold"`
}

// PipelineConfig holds development-pipeline settings.
type PipelineConfig struct {
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	Market              string        `mapstructure:"market"`
	MaxExternalChildren int           `mapstructure:"max_external_children"`
	MaxInternalChildren int           `mapstructure:"max_internal_children"`
	ExplorationDepth    int           `mapstructure:"exploration_depth"`
	GenerateTestTimeout time.Duration `mapstructure:"generate_test_timeout"`

	// CodegenURL is the code-generation service endpoint. Empty disables
	// the devworker's generation path.
	CodegenURL string `mapstructure:"codegen_url"`
}

// ExtractionConfig holds extraction-worker settings.
type ExtractionConfig struct {
	// WorkerURL is the external extraction worker endpoint. Empty selects
	// the built-in registry only.
	WorkerURL      string        `mapstructure:"worker_url"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	BrowserTimeout time.Duration `mapstructure:"browser_timeout"`
}

// Load reads configuration from the given path (optional) and the
// environment. Environment variables use the CAMPSCOUT_ prefix with
// underscores, e.g. CAMPSCOUT_DATABASE_HOST.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CAMPSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/campscout")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No file is fine; env and defaults carry the config.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", defaultDatabasePort)
	v.SetDefault("database.user", "campscout")
	v.SetDefault("database.dbname", "campscout")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", defaultConnMaxLifetime)

	v.SetDefault("redis.address", defaultRedisAddress)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", false)

	v.SetDefault("orchestrator.pool_size", defaultWorkerPoolSize)
	v.SetDefault("orchestrator.start_jitter_min_ms", defaultStartJitterMinMs)
	v.SetDefault("orchestrator.start_jitter_max_ms", defaultStartJitterMaxMs)
	v.SetDefault("orchestrator.schedule_spec", defaultScheduleSpec)
	v.SetDefault("orchestrator.stale_job_timeout", defaultStaleJobTimeout)
	v.SetDefault("orchestrator.default_scrape_interval_minutes", defaultScrapeIntervalMin)
	v.SetDefault("orchestrator.failure_alert_threshold", defaultFailureAlertLevel)
	v.SetDefault("orchestrator.regeneration_threshold", defaultRegenerationLevel)
	v.SetDefault("orchestrator.change_volume_threshold", defaultChangeVolumeLevel)

	v.SetDefault("pipeline.poll_interval", defaultPollInterval)
	v.SetDefault("pipeline.max_external_children", defaultMaxExternalChildren)
	v.SetDefault("pipeline.max_internal_children", defaultMaxInternalChildren)
	v.SetDefault("pipeline.exploration_depth", defaultExplorationDepth)
	v.SetDefault("pipeline.generate_test_timeout", defaultGenerateTestTimeout)

	v.SetDefault("extraction.fetch_timeout", defaultExtractTimeout)
	v.SetDefault("extraction.browser_timeout", defaultBrowserTimeout)
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return errors.New("database host is required")
	}
	if c.Orchestrator.PoolSize < 1 {
		return errors.New("orchestrator pool size must be at least 1")
	}
	if c.Orchestrator.StartJitterMinMs < 0 ||
		c.Orchestrator.StartJitterMaxMs < c.Orchestrator.StartJitterMinMs {
		return errors.New("invalid start jitter bounds")
	}
	if c.Orchestrator.RegenerationThreshold < 1 {
		return errors.New("regeneration threshold must be at least 1")
	}
	if c.Pipeline.PollInterval <= 0 {
		return errors.New("pipeline poll interval must be positive")
	}
	if c.Extraction.FetchTimeout <= 0 || c.Extraction.BrowserTimeout <= 0 {
		return errors.New("extraction timeouts must be positive")
	}
	return nil
}
