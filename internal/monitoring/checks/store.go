package checks

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/swdash/internal/monitoring"
)

const defaultStoreTimeout = 2 * time.Second

// Store probes the table store with a trivial query. Without a handle the
// service still answers from cache, so the result is degraded rather than down.
func Store(db *gorm.DB, timeout time.Duration) monitoring.Check {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}

	return monitoring.NewCheck("store", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if db == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "store not configured, serving cache only",
				Duration: time.Since(start),
			}
		}

		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var one int
		if err := db.WithContext(probeCtx).Raw("SELECT 1").Scan(&one).Error; err != nil {
			return monitoring.ResultFromError("store", err, time.Since(start))
		}

		result := monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Duration: time.Since(start),
		}
		if sqlDB, err := db.DB(); err == nil {
			stats := sqlDB.Stats()
			result.Details = fmt.Sprintf("open=%d in_use=%d", stats.OpenConnections, stats.InUse)
		}
		return result
	})
}
