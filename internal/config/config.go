// Package config loads and validates service configuration from a YAML
// file and environment variable overrides via viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/pageindexer/internal/logger"
)

// Default configuration values.
const (
	DefaultGoogleEndpoint      = "https://indexing.googleapis.com/v3/urlNotifications:publish"
	DefaultGooglePerMinute     = 10
	DefaultGooglePerDay        = 200
	DefaultIndexNowPerMinute   = 100
	DefaultIndexNowPerDay      = 10000
	DefaultReconcileBatchSize  = 10
	DefaultReconcileLimit      = 100
	DefaultReconcileCallDelay  = 500 * time.Millisecond
	DefaultReconcileBatchDelay = time.Second
	DefaultAutoIndexBatch      = 100
	DefaultSitemapRecheck      = 24 * time.Hour
	DefaultServerPort          = 8080
	DefaultWorkerCount         = 4
)

// DefaultIndexNowEndpoints are the key-based protocol endpoints used when
// none are configured.
var DefaultIndexNowEndpoints = map[string]string{
	"bing":   "https://api.indexnow.org/IndexNow",
	"yandex": "https://yandex.com/indexnow",
	"naver":  "https://searchadvisor.naver.com/indexnow",
}

// Config is the root configuration for the service.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Log          logger.Config      `mapstructure:"log"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Server       ServerConfig       `mapstructure:"server"`
	Engines      EnginesConfig      `mapstructure:"engines"`
	RateLimits   RateLimitsConfig   `mapstructure:"rate_limits"`
	AutoIndexing AutoIndexingConfig `mapstructure:"auto_indexing"`
	Reconcile    ReconcileConfig    `mapstructure:"reconcile"`
	Worker       WorkerConfig       `mapstructure:"worker"`
}

// AppConfig holds application identity settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig holds Redis connection settings for the work queue.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ServerConfig holds HTTP API server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// EnginesConfig groups per-engine adapter settings.
type EnginesConfig struct {
	Google   GoogleConfig   `mapstructure:"google"`
	IndexNow IndexNowConfig `mapstructure:"indexnow"`
}

// GoogleConfig configures the push-notification engine adapter and the
// inspection collaborator scope.
type GoogleConfig struct {
	// SiteURL is the canonical property URL registered with Search Console.
	SiteURL string `mapstructure:"site_url"`
	// Endpoint overrides the publish endpoint, mainly for tests.
	Endpoint string `mapstructure:"endpoint"`
	// ServiceAccountPath points at the credential file consumed by the
	// external token source. The core stores it, never parses it.
	ServiceAccountPath string `mapstructure:"service_account_path"`
}

// IndexNowConfig configures the key-based engine adapter.
type IndexNowConfig struct {
	Enabled         bool              `mapstructure:"enabled"`
	Key             string            `mapstructure:"key"`
	KeyLocation     string            `mapstructure:"key_location"`
	Endpoints       map[string]string `mapstructure:"endpoints"`
	DefaultEndpoint string            `mapstructure:"default_endpoint"`
}

// EndpointMap returns the configured endpoints, falling back to the
// protocol defaults when none are set.
func (c *IndexNowConfig) EndpointMap() map[string]string {
	if len(c.Endpoints) > 0 {
		return c.Endpoints
	}
	return DefaultIndexNowEndpoints
}

// EngineLimit holds the rolling-window submission caps for one engine.
type EngineLimit struct {
	PerMinute int `mapstructure:"per_minute"`
	PerDay    int `mapstructure:"per_day"`
}

// RateLimitsConfig holds per-engine submission caps.
type RateLimitsConfig struct {
	Google   EngineLimit `mapstructure:"google"`
	IndexNow EngineLimit `mapstructure:"indexnow"`
}

// AutoIndexingConfig controls automatic dispatch of pending pages.
type AutoIndexingConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxPagesPerBatch int           `mapstructure:"max_pages_per_batch"`
	SitemapRecheck   time.Duration `mapstructure:"sitemap_recheck"`
}

// ReconcileConfig controls the inspection reconciliation sweep.
type ReconcileConfig struct {
	Limit      int           `mapstructure:"limit"`
	BatchSize  int           `mapstructure:"batch_size"`
	CallDelay  time.Duration `mapstructure:"call_delay"`
	BatchDelay time.Duration `mapstructure:"batch_delay"`
}

// WorkerConfig controls the queue worker pool.
type WorkerConfig struct {
	Count int `mapstructure:"count"`
}

// Load reads configuration from the given file (or the default search
// paths when empty) and applies environment overrides prefixed with
// PAGEINDEXER_.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.pageindexer")
		v.AddConfigPath("/etc/pageindexer")
	}

	v.SetEnvPrefix("PAGEINDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Defaults plus env overrides are enough to run.
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

// setDefaults registers default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pageindexer")
	v.SetDefault("app.environment", "development")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "pageindexer")
	v.SetDefault("database.dbname", "pageindexer")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("engines.google.endpoint", DefaultGoogleEndpoint)
	v.SetDefault("engines.indexnow.enabled", true)
	v.SetDefault("engines.indexnow.default_endpoint", "bing")

	v.SetDefault("rate_limits.google.per_minute", DefaultGooglePerMinute)
	v.SetDefault("rate_limits.google.per_day", DefaultGooglePerDay)
	v.SetDefault("rate_limits.indexnow.per_minute", DefaultIndexNowPerMinute)
	v.SetDefault("rate_limits.indexnow.per_day", DefaultIndexNowPerDay)

	v.SetDefault("auto_indexing.enabled", false)
	v.SetDefault("auto_indexing.max_pages_per_batch", DefaultAutoIndexBatch)
	v.SetDefault("auto_indexing.sitemap_recheck", DefaultSitemapRecheck)

	v.SetDefault("reconcile.limit", DefaultReconcileLimit)
	v.SetDefault("reconcile.batch_size", DefaultReconcileBatchSize)
	v.SetDefault("reconcile.call_delay", DefaultReconcileCallDelay)
	v.SetDefault("reconcile.batch_delay", DefaultReconcileBatchDelay)

	v.SetDefault("worker.count", DefaultWorkerCount)
}

// Validate checks the configuration for inconsistencies that would only
// surface later at call sites.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid environment: %s", c.App.Environment)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.RateLimits.Google.PerMinute <= 0 || c.RateLimits.Google.PerDay <= 0 {
		return errors.New("google rate limits must be positive")
	}
	if c.RateLimits.IndexNow.PerMinute <= 0 || c.RateLimits.IndexNow.PerDay <= 0 {
		return errors.New("indexnow rate limits must be positive")
	}

	if c.Worker.Count <= 0 {
		return errors.New("worker count must be positive")
	}

	if c.Reconcile.BatchSize <= 0 {
		return errors.New("reconcile batch size must be positive")
	}

	return nil
}
