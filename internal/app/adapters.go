package app

import (
	"strings"

	"github.com/charlesng35/swdash/internal/cache"
	"github.com/charlesng35/swdash/internal/database"
	"github.com/charlesng35/swdash/internal/refresher"
	"github.com/charlesng35/swdash/internal/store"
)

// ConnectionConfig converts the database section into the database package representation.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:   strings.TrimSpace(c.Path),
		DSN:    strings.TrimSpace(c.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(c.Postgres.Host)
		dbCfg.Port = c.Postgres.Port
		dbCfg.Name = strings.TrimSpace(c.Postgres.Database)
		dbCfg.User = strings.TrimSpace(c.Postgres.Username)
		dbCfg.Password = c.Postgres.Password
	case "mysql":
		dbCfg.Host = strings.TrimSpace(c.MySQL.Host)
		dbCfg.Port = c.MySQL.Port
		dbCfg.Name = strings.TrimSpace(c.MySQL.Database)
		dbCfg.User = strings.TrimSpace(c.MySQL.Username)
		dbCfg.Password = c.MySQL.Password
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

// TableCacheConfig converts the cache section into cache.Config.
func (c CacheConfig) TableCacheConfig() cache.Config {
	return cache.Config{
		MaxBytes:          c.MaxBytes,
		CompressThreshold: c.CompressThresholdBytes,
		SmallRowCap:       c.SmallRowCap,
	}
}

// GatewayBreakerConfig converts the breaker section into store.BreakerConfig.
func (c BreakerConfig) GatewayBreakerConfig() store.BreakerConfig {
	return store.BreakerConfig{
		Name:             "store",
		FailureThreshold: c.FailureThreshold,
		OpenTimeout:      c.OpenTimeout,
	}
}

// RefreshIntervals converts the interval section, keeping stock values for unset categories.
func (c IntervalsConfig) RefreshIntervals() refresher.Intervals {
	out := refresher.DefaultIntervals()
	if c.RealTime > 0 {
		out.RealTime = c.RealTime
	}
	if c.Hourly > 0 {
		out.Hourly = c.Hourly
	}
	if c.Daily > 0 {
		out.Daily = c.Daily
	}
	return out
}
