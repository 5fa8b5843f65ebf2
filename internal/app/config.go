package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the swdash service.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Store      StoreConfig      `mapstructure:"store"`
	Refresher  RefresherConfig  `mapstructure:"refresher"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port      int    `mapstructure:"port" validate:"min=1,max=65535"`
	LogLevel  string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"omitempty,oneof=json console"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver" validate:"omitempty,oneof=sqlite postgres postgresql mysql"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"min=0,max=65535"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig sizes the in-memory table cache.
type CacheConfig struct {
	MaxBytes               int64 `mapstructure:"max_bytes" validate:"gte=0"`
	CompressThresholdBytes int64 `mapstructure:"compress_threshold_bytes" validate:"gte=0"`
	SmallRowCap            int   `mapstructure:"small_row_cap" validate:"gte=0"`
}

// StoreConfig tunes access to the backing store.
type StoreConfig struct {
	QueryTimeout time.Duration `mapstructure:"query_timeout" validate:"gte=0s"`
	Breaker      BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig controls the circuit breaker in front of the store.
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout" validate:"gte=0s"`
}

// RefresherConfig controls the background refresher.
type RefresherConfig struct {
	Enabled   bool            `mapstructure:"enabled"`
	Disabled  bool            `mapstructure:"disabled"`
	Tick      time.Duration   `mapstructure:"tick" validate:"gte=1s"`
	History   bool            `mapstructure:"history"`
	Intervals IntervalsConfig `mapstructure:"intervals"`
}

// IntervalsConfig holds the per-category refresh intervals.
type IntervalsConfig struct {
	RealTime time.Duration `mapstructure:"real_time" validate:"gte=0s"`
	Hourly   time.Duration `mapstructure:"hourly" validate:"gte=0s"`
	Daily    time.Duration `mapstructure:"daily" validate:"gte=0s"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Active reports whether the refresher should run. The legacy
// DISABLE_BACKGROUND_REFRESH flag wins over refresher.enabled.
func (c RefresherConfig) Active() bool {
	return c.Enabled && !c.Disabled
}

// legacyEnv maps config keys to the environment variables the original
// dashboard deployment used. SWDASH_ variables take precedence.
var legacyEnv = map[string]string{
	"database.postgres.username": "DB_USER",
	"database.postgres.password": "DB_PASSWORD",
	"database.postgres.host":     "DB_HOST",
	"database.postgres.database": "DB_NAME",
	"database.postgres.port":     "DB_PORT",
	"refresher.disabled":         "DISABLE_BACKGROUND_REFRESH",
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("SWDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		primary := "SWDASH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, primary, legacy); err != nil {
			return nil, fmt.Errorf("config: bind env %s: %w", legacy, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8050)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.path", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.mysql.port", 3306)

	v.SetDefault("cache.max_bytes", 100<<20)
	v.SetDefault("cache.compress_threshold_bytes", 10<<20)
	v.SetDefault("cache.small_row_cap", 1000)

	v.SetDefault("store.query_timeout", "30s")
	v.SetDefault("store.breaker.enabled", true)
	v.SetDefault("store.breaker.failure_threshold", 5)
	v.SetDefault("store.breaker.open_timeout", "30s")

	v.SetDefault("refresher.enabled", true)
	v.SetDefault("refresher.disabled", false)
	v.SetDefault("refresher.tick", "60s")
	v.SetDefault("refresher.history", false)
	v.SetDefault("refresher.intervals.real_time", "60s")
	v.SetDefault("refresher.intervals.hourly", "1h")
	v.SetDefault("refresher.intervals.daily", "24h")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
