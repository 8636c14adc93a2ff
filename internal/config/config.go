package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Feeds      FeedsConfig      `yaml:"feeds" mapstructure:"feeds"`
	Routing    RoutingConfig    `yaml:"routing" mapstructure:"routing"`
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
	TravelTime TravelTimeConfig `yaml:"traveltime" mapstructure:"traveltime"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Sampler    SamplerConfig    `yaml:"sampler" mapstructure:"sampler"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// FeedsConfig configures the government open-data feeds.
type FeedsConfig struct {
	InfoURL         string `yaml:"info_url" mapstructure:"info_url"`
	InfoResourceID  string `yaml:"info_resource_id" mapstructure:"info_resource_id"`
	PageSize        int    `yaml:"page_size" mapstructure:"page_size"`
	AvailabilityURL string `yaml:"availability_url" mapstructure:"availability_url"`
	APIKey          string `yaml:"api_key" mapstructure:"api_key"`
	EVCSVPath       string `yaml:"ev_csv_path" mapstructure:"ev_csv_path"`
	RefreshSecs     int    `yaml:"refresh_secs" mapstructure:"refresh_secs"`
}

// RoutingConfig configures the OSRM-compatible routing service.
type RoutingConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	Profile   string  `yaml:"profile" mapstructure:"profile"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// GeocodeConfig configures the geocoding service.
type GeocodeConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	CacheTTLHours int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	MaxAttempts   int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// TravelTimeConfig configures driving-time enrichment.
type TravelTimeConfig struct {
	BatchSize        int `yaml:"batch_size" mapstructure:"batch_size"`
	BatchDelayMs     int `yaml:"batch_delay_ms" mapstructure:"batch_delay_ms"`
	RequestTimeoutMs int `yaml:"request_timeout_ms" mapstructure:"request_timeout_ms"`
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	TimeoutThreshold int `yaml:"timeout_threshold" mapstructure:"timeout_threshold"`
	CacheTTLMins     int `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
	SweepIntervalSec int `yaml:"sweep_interval_secs" mapstructure:"sweep_interval_secs"`
}

// BatchDelay returns the pause between batches.
func (c TravelTimeConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMs) * time.Millisecond
}

// RequestTimeout returns the per-destination request deadline.
func (c TravelTimeConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// CacheTTL returns how long cached travel times stay fresh.
func (c TravelTimeConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMins) * time.Minute
}

// SweepInterval returns the background cache sweep period.
func (c TravelTimeConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

// CacheConfig selects the local key-value store.
type CacheConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	SQLitePath    string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	PostgresURL   string `yaml:"postgres_url" mapstructure:"postgres_url"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// SamplerConfig configures the spatial sampler.
type SamplerConfig struct {
	Cap            int     `yaml:"cap" mapstructure:"cap"`
	PostalRadiusKm float64 `yaml:"postal_radius_km" mapstructure:"postal_radius_km"`
}

// MonitoringConfig configures the background health checker.
type MonitoringConfig struct {
	WebhookURL        string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	StaleAfterMins    int     `yaml:"stale_after_mins" mapstructure:"stale_after_mins"`
	MinFacilities     int     `yaml:"min_facilities" mapstructure:"min_facilities"`
	MinCacheHitRate   float64 `yaml:"min_cache_hit_rate" mapstructure:"min_cache_hit_rate"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CARPARK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("feeds.info_url", "https://data.gov.sg/api/action/datastore_search")
	v.SetDefault("feeds.info_resource_id", "d_23f946fa557947f93a8043bbef41dd09")
	v.SetDefault("feeds.page_size", 5000)
	v.SetDefault("feeds.availability_url", "https://api.data.gov.sg/v1/transport/carpark-availability")
	v.SetDefault("feeds.api_key", "")
	v.SetDefault("feeds.ev_csv_path", "")
	v.SetDefault("feeds.refresh_secs", 60)
	v.SetDefault("routing.base_url", "https://router.project-osrm.org")
	v.SetDefault("routing.profile", "driving")
	v.SetDefault("routing.rate_limit", 0)
	v.SetDefault("geocode.base_url", "https://www.onemap.gov.sg")
	v.SetDefault("geocode.rate_limit", 4)
	v.SetDefault("geocode.cache_ttl_hours", 24)
	v.SetDefault("geocode.max_attempts", 2)
	v.SetDefault("traveltime.batch_size", 10)
	v.SetDefault("traveltime.batch_delay_ms", 100)
	v.SetDefault("traveltime.request_timeout_ms", 5000)
	v.SetDefault("traveltime.failure_threshold", 5)
	v.SetDefault("traveltime.timeout_threshold", 3)
	v.SetDefault("traveltime.cache_ttl_mins", 15)
	v.SetDefault("traveltime.sweep_interval_secs", 300)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.sqlite_path", "carpark-cache.db")
	v.SetDefault("cache.postgres_url", "")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.key_prefix", "carpark:")
	v.SetDefault("sampler.cap", 60)
	v.SetDefault("sampler.postal_radius_km", 1.0)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.stale_after_mins", 30)
	v.SetDefault("monitoring.min_facilities", 1)
	v.SetDefault("monitoring.min_cache_hit_rate", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes: ingest,
// enrich, sample, geocode, cache, serve.
func (c *Config) Validate(mode string) error {
	var errs []string

	needFeeds := func() {
		if c.Feeds.InfoURL == "" {
			errs = append(errs, "feeds.info_url is required")
		}
		if c.Feeds.AvailabilityURL == "" {
			errs = append(errs, "feeds.availability_url is required")
		}
		if c.Feeds.PageSize < 1 {
			errs = append(errs, "feeds.page_size must be > 0")
		}
	}
	needTravel := func() {
		if c.Routing.BaseURL == "" {
			errs = append(errs, "routing.base_url is required")
		}
		if c.TravelTime.BatchSize < 1 || c.TravelTime.BatchSize > 100 {
			errs = append(errs, "traveltime.batch_size must be between 1 and 100")
		}
		if c.TravelTime.RequestTimeoutMs < 1 {
			errs = append(errs, "traveltime.request_timeout_ms must be > 0")
		}
		if c.TravelTime.FailureThreshold < 1 || c.TravelTime.TimeoutThreshold < 1 {
			errs = append(errs, "traveltime thresholds must be > 0")
		}
	}
	needCache := func() {
		switch strings.ToLower(c.Cache.Driver) {
		case "", "memory":
		case "sqlite":
			if c.Cache.SQLitePath == "" {
				errs = append(errs, "cache.sqlite_path is required for the sqlite driver")
			}
		case "redis":
			if c.Cache.RedisAddr == "" {
				errs = append(errs, "cache.redis_addr is required for the redis driver")
			}
		case "postgres":
			if c.Cache.PostgresURL == "" {
				errs = append(errs, "cache.postgres_url is required for the postgres driver")
			}
		default:
			errs = append(errs, fmt.Sprintf("cache.driver %q is not one of memory, sqlite, redis, postgres", c.Cache.Driver))
		}
	}
	needGeocode := func() {
		if c.Geocode.BaseURL == "" {
			errs = append(errs, "geocode.base_url is required")
		}
	}

	switch mode {
	case "ingest":
		needFeeds()
	case "enrich":
		needTravel()
		needCache()
	case "sample":
		if c.Sampler.Cap < 1 {
			errs = append(errs, "sampler.cap must be > 0")
		}
	case "geocode":
		needGeocode()
		needCache()
	case "cache":
		needCache()
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Sampler.Cap < 1 {
			errs = append(errs, "sampler.cap must be > 0")
		}
		needFeeds()
		needTravel()
		needCache()
		needGeocode()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
