package monitoring

import "time"

// Summary surfaces aggregated monitoring data for the operations endpoint.
type Summary struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Cache       CacheSummary      `json:"cache"`
	Loads       []LoadSummary     `json:"loads"`
	Refresh     RefreshSummary    `json:"refresh"`
	Breakers    map[string]string `json:"breakers"`
}

type CacheSummary struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Stale     uint64  `json:"stale"`
	Bypassed  uint64  `json:"bypassed"`
	Evictions uint64  `json:"evictions"`
	Entries   int64   `json:"entries"`
	Bytes     int64   `json:"bytes"`
	HitRatio  float64 `json:"hit_ratio"`
}

type LoadSummary struct {
	Mode                  string        `json:"mode"`
	Success               uint64        `json:"success"`
	Failure               uint64        `json:"failure"`
	LastStatus            string        `json:"last_status"`
	LastDuration          time.Duration `json:"last_duration"`
	LastCompletedAt       time.Time     `json:"last_completed_at"`
	LastError             string        `json:"last_error,omitempty"`
	AverageLatencySeconds float64       `json:"average_latency_seconds"`
}

type RefreshSummary struct {
	Jobs []RefreshJobSummary `json:"jobs"`
}

type RefreshJobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	ConsecutiveSuccess  uint64        `json:"consecutive_success"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	TotalRuns           uint64        `json:"total_runs"`
}

// Snapshot returns a point-in-time summary from the current module when configured.
func Snapshot() Summary {
	if module := current(); module != nil && module.stats != nil {
		return module.stats.summary()
	}
	return Summary{GeneratedAt: time.Now(), Breakers: map[string]string{}}
}
