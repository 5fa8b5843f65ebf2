package monitoring

import (
	"strings"
	"time"
)

// ObserveAPILatency captures the HTTP request latency for the supplied route.
func ObserveAPILatency(method, path, status string, duration time.Duration) {
	module := current()
	if module == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	path = sanitizePath(path)
	if path == "" {
		path = "unknown"
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = "unknown"
	}
	module.metrics.apiLatency.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordCacheLookup counts a table cache lookup outcome.
func RecordCacheLookup(result string) {
	module := current()
	if module == nil {
		return
	}
	label := normalizeLabel(result)
	module.metrics.cacheLookups.WithLabelValues(label).Inc()
	module.stats.recordLookup(label)
}

// RecordCacheEviction counts entries removed to honour the byte budget.
func RecordCacheEviction(count int) {
	module := current()
	if module == nil || count <= 0 {
		return
	}
	module.metrics.cacheEvictions.Add(float64(count))
	module.stats.cacheEvictions.Add(uint64(count))
}

// SetCacheUsage publishes the current entry count and accounted bytes.
func SetCacheUsage(entries int, bytes int64) {
	module := current()
	if module == nil {
		return
	}
	if entries < 0 {
		entries = 0
	}
	if bytes < 0 {
		bytes = 0
	}
	module.metrics.cacheEntries.Set(float64(entries))
	module.metrics.cacheBytes.Set(float64(bytes))
	module.stats.cacheEntries.Store(int64(entries))
	module.stats.cacheBytes.Store(bytes)
}

// RecordTableLoad captures a store load and its latency.
func RecordTableLoad(mode, result, message string, duration time.Duration) {
	module := current()
	if module == nil {
		return
	}
	mode = normalizeLabel(mode)
	result = normalizeLabel(result)
	module.metrics.tableLoads.WithLabelValues(mode, result).Inc()
	observeDuration(module.metrics.tableLoadDuration.WithLabelValues(mode), duration)
	module.stats.loadEntry(mode).record(result, strings.TrimSpace(message), duration)
}

// RecordRefreshRun records the completion of a background refresh pass.
func RecordRefreshRun(job, result, message string, duration time.Duration) {
	module := current()
	if module == nil {
		return
	}
	jobID := normalizeLabel(job)
	result = normalizeLabel(result)
	module.metrics.refreshRuns.WithLabelValues(jobID, result).Inc()
	observeDuration(module.metrics.refreshDuration.WithLabelValues(jobID), duration)
	if result == "success" {
		module.metrics.refreshLastRun.WithLabelValues(jobID).Set(float64(time.Now().Unix()))
	}
	module.stats.jobEntry(jobID).record(result, strings.TrimSpace(message), duration)
}

// RecordRefreshTable counts a per-table decision taken during a refresh pass.
func RecordRefreshTable(category, result string) {
	module := current()
	if module == nil {
		return
	}
	module.metrics.refreshTables.WithLabelValues(normalizeLabel(category), normalizeLabel(result)).Inc()
}

// SetBreakerState publishes a circuit breaker transition.
func SetBreakerState(name, state string) {
	module := current()
	if module == nil {
		return
	}
	name = normalizeLabel(name)
	state = normalizeLabel(state)
	module.metrics.breakerState.WithLabelValues(name).Set(breakerStateValue(state))
	module.stats.breakers.Store(name, state)
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}

func sanitizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "/" {
		return "root"
	}
	path = strings.Trim(path, "/")
	return strings.ReplaceAll(path, " ", "_")
}
