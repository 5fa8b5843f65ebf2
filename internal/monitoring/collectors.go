package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type serviceCollectors struct {
	apiLatency        *prometheus.HistogramVec
	cacheLookups      *prometheus.CounterVec
	cacheEvictions    prometheus.Counter
	cacheEntries      prometheus.Gauge
	cacheBytes        prometheus.Gauge
	tableLoads        *prometheus.CounterVec
	tableLoadDuration *prometheus.HistogramVec
	refreshRuns       *prometheus.CounterVec
	refreshDuration   *prometheus.HistogramVec
	refreshLastRun    *prometheus.GaugeVec
	refreshTables     *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
}

func newServiceCollectors(namespace string) *serviceCollectors {
	buckets := prometheus.DefBuckets
	loadBuckets := []float64{
		0.01, 0.05, 0.1, 0.25, 0.5,
		1, 2.5, 5, 10, 30, 60,
	}

	return &serviceCollectors{
		apiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_latency_seconds",
				Help:      "API endpoint latency",
				Buckets:   buckets,
			},
			[]string{"method", "path", "status"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Table cache lookups by outcome (hit, miss, stale, bypass)",
			},
			[]string{"result"},
		),
		cacheEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_evictions_total",
				Help:      "Entries evicted to keep the table cache within its byte budget",
			},
		),
		cacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_entries",
				Help:      "Number of snapshots held by the table cache",
			},
		),
		cacheBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_bytes",
				Help:      "Accounted size of the table cache in bytes",
			},
		),
		tableLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "table_loads_total",
				Help:      "Store loads by mode (full, incremental) and result",
			},
			[]string{"mode", "result"},
		),
		tableLoadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "table_load_duration_seconds",
				Help:      "Duration of store loads",
				Buckets:   loadBuckets,
			},
			[]string{"mode"},
		),
		refreshRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_runs_total",
				Help:      "Background refresh passes by result",
			},
			[]string{"job", "result"},
		),
		refreshDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "refresh_duration_seconds",
				Help:      "Background refresh pass duration",
				Buckets:   loadBuckets,
			},
			[]string{"job"},
		),
		refreshLastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "refresh_last_success_timestamp",
				Help:      "Timestamp of the last successful refresh pass (seconds since epoch)",
			},
			[]string{"job"},
		),
		refreshTables: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_tables_total",
				Help:      "Per-table refresh decisions by category and result",
			},
			[]string{"category", "result"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "store_breaker_state",
				Help:      "Store circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"breaker"},
		),
	}
}

func (c *serviceCollectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.apiLatency,
		c.cacheLookups,
		c.cacheEvictions,
		c.cacheEntries,
		c.cacheBytes,
		c.tableLoads,
		c.tableLoadDuration,
		c.refreshRuns,
		c.refreshDuration,
		c.refreshLastRun,
		c.refreshTables,
		c.breakerState,
	}
}

// observeDuration records a duration in seconds on the supplied histogram observer.
func observeDuration(observer prometheus.Observer, d time.Duration) {
	if observer == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	observer.Observe(d.Seconds())
}

func breakerStateValue(state string) float64 {
	switch state {
	case "open":
		return 2
	case "half-open":
		return 1
	default:
		return 0
	}
}
