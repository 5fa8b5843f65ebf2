package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/swdash/internal/cache"
	"github.com/charlesng35/swdash/internal/reader"
	"github.com/charlesng35/swdash/pkg/validator"
)

const defaultRefreshTick = 60 * time.Second

// ApplyRuntimeDefaults fills settings left at their zero value, which happens
// when a Config is built by hand instead of through LoadConfig. It returns the
// keys that were filled so callers can log them.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	applied := make(map[string]bool)
	set := func(key string, cond bool, apply func()) {
		if cond {
			apply()
			applied[key] = true
		}
	}

	set("server.port", cfg.Server.Port == 0, func() { cfg.Server.Port = 8050 })
	set("server.log_level", strings.TrimSpace(cfg.Server.LogLevel) == "", func() { cfg.Server.LogLevel = "info" })
	set("server.log_format", strings.TrimSpace(cfg.Server.LogFormat) == "", func() { cfg.Server.LogFormat = "json" })
	set("cache.max_bytes", cfg.Cache.MaxBytes == 0, func() { cfg.Cache.MaxBytes = cache.DefaultMaxBytes })
	set("cache.compress_threshold_bytes", cfg.Cache.CompressThresholdBytes == 0, func() {
		cfg.Cache.CompressThresholdBytes = cache.DefaultCompressThreshold
	})
	set("cache.small_row_cap", cfg.Cache.SmallRowCap == 0, func() { cfg.Cache.SmallRowCap = cache.DefaultSmallRowCap })
	set("store.query_timeout", cfg.Store.QueryTimeout == 0, func() { cfg.Store.QueryTimeout = reader.DefaultQueryTimeout })
	set("refresher.tick", cfg.Refresher.Tick == 0, func() { cfg.Refresher.Tick = defaultRefreshTick })

	return applied, nil
}

// Validate checks the decoded configuration against its struct rules.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if err := validator.ValidateStruct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
