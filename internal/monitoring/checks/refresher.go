package checks

import (
	"context"
	"strings"
	"time"

	"github.com/charlesng35/swdash/internal/monitoring"
)

const defaultRefreshMaxAge = 10 * time.Minute

// Refresher verifies that background refresh passes keep completing.
// Stale or failing passes report degraded, never down.
func Refresher(maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultRefreshMaxAge
	}

	return monitoring.NewCheck("refresher", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		summary := monitoring.Snapshot()
		now := time.Now()

		if len(summary.Refresh.Jobs) == 0 {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "no refresh pass recorded yet",
				Duration: time.Since(start),
			}
		}

		status := monitoring.StatusUp
		var problems []string

		for _, job := range summary.Refresh.Jobs {
			if job.ConsecutiveFailures > 0 {
				status = monitoring.StatusDegraded
				problems = append(problems, job.Job+": "+job.LastStatus)
			}
			if !job.LastRunAt.IsZero() && now.Sub(job.LastRunAt) > maxAge {
				status = monitoring.StatusDegraded
				problems = append(problems, job.Job+": stale run "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{
			Status:   status,
			Details:  strings.Join(problems, "; "),
			Duration: time.Since(start),
		}
	})
}

// Breaker reports degraded readiness while any store circuit breaker is open.
func Breaker() monitoring.Check {
	return monitoring.NewCheck("store_breaker", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		var open []string
		for name, state := range monitoring.Snapshot().Breakers {
			if state == "open" {
				open = append(open, name)
			}
		}
		if len(open) == 0 {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Duration: time.Since(start)}
		}
		return monitoring.ProbeResult{
			Status:   monitoring.StatusDegraded,
			Details:  "open: " + strings.Join(open, ", "),
			Duration: time.Since(start),
		}
	})
}
