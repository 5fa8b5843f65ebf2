package monitoring_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/swdash/internal/monitoring"
	"github.com/charlesng35/swdash/internal/monitoring/checks"
)

func setupModule(t *testing.T) *monitoring.Module {
	t.Helper()

	mod, err := monitoring.NewModule(monitoring.WithoutRuntimeMetrics())
	require.NoError(t, err)
	monitoring.SetModule(mod)
	return mod
}

func TestSummaryAggregatesMetrics(t *testing.T) {
	setupModule(t)

	monitoring.RecordCacheLookup("hit")
	monitoring.RecordCacheLookup("hit")
	monitoring.RecordCacheLookup("miss")
	monitoring.RecordCacheLookup("stale")
	monitoring.RecordCacheEviction(2)
	monitoring.SetCacheUsage(3, 4096)
	monitoring.RecordTableLoad("full", "success", "", 200*time.Millisecond)
	monitoring.RecordTableLoad("incremental", "failure", "no time column", 10*time.Millisecond)
	monitoring.RecordRefreshRun("refresher", "success", "", time.Second)
	monitoring.SetBreakerState("store", "half-open")

	summary := monitoring.Snapshot()
	require.Equal(t, uint64(2), summary.Cache.Hits)
	require.Equal(t, uint64(1), summary.Cache.Misses)
	require.Equal(t, uint64(2), summary.Cache.Evictions)
	require.Equal(t, int64(3), summary.Cache.Entries)
	require.Equal(t, int64(4096), summary.Cache.Bytes)
	require.InDelta(t, 0.5, summary.Cache.HitRatio, 1e-9)

	require.Len(t, summary.Loads, 2)
	require.Equal(t, "full", summary.Loads[0].Mode)
	require.Equal(t, "no time column", summary.Loads[1].LastError)

	require.Len(t, summary.Refresh.Jobs, 1)
	require.Equal(t, "half-open", summary.Breakers["store"])
}

func TestHandlerExposesNamespacedMetrics(t *testing.T) {
	mod := setupModule(t)
	monitoring.RecordCacheLookup("hit")

	rec := httptest.NewRecorder()
	mod.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `swdash_cache_lookups_total{result="hit"} 1`))
}

func TestHealthManagerEvaluate(t *testing.T) {
	manager := monitoring.NewHealthManager()
	manager.RegisterReadiness(monitoring.NewCheck("store", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("store_breaker", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "connection refused"}
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 2)
}

func TestHealthManagerDegradedStillSucceeds(t *testing.T) {
	manager := monitoring.NewHealthManager()
	manager.RegisterReadiness(monitoring.NewCheck("store", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("refresher", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "stale"}
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.True(t, report.Success)
	require.Equal(t, monitoring.StatusDegraded, report.Status)
	require.Equal(t, "store", report.Checks[0].Component)
	require.Equal(t, "refresher", report.Checks[1].Component)
}

func TestHealthManagerRecoversPanickingProbe(t *testing.T) {
	manager := monitoring.NewHealthManager()
	manager.RegisterLiveness(monitoring.NewCheck("boom", func(ctx context.Context) monitoring.ProbeResult {
		panic("probe exploded")
	}))

	report := manager.EvaluateLiveness(context.Background())
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Equal(t, "probe exploded", report.Checks[0].Details)
	require.Equal(t, "boom", report.Checks[0].Component)
}

func TestRefresherCheckDegradesOnFailure(t *testing.T) {
	setupModule(t)

	result := checks.Refresher(0).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)

	monitoring.RecordRefreshRun("refresher", "failure", "list tables: connection refused", time.Second)

	result = checks.Refresher(0).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "refresher")
}

func TestBreakerCheck(t *testing.T) {
	setupModule(t)

	monitoring.SetBreakerState("store", "closed")
	require.Equal(t, monitoring.StatusUp, checks.Breaker().Run(context.Background()).Status)

	monitoring.SetBreakerState("store", "open")
	result := checks.Breaker().Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Equal(t, "open: store", result.Details)
}

func TestStoreCheckWithoutHandleIsDegraded(t *testing.T) {
	result := checks.Store(nil, 0).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Equal(t, "store", result.Component)
}

func TestInstrumentationWithoutModuleIsNoop(t *testing.T) {
	require.NotPanics(t, func() {
		var mod *monitoring.Module
		require.Nil(t, mod.Registry())
		require.Nil(t, mod.Health())
	})
}

func TestModuleNamespaceOption(t *testing.T) {
	mod, err := monitoring.NewModule(monitoring.WithoutRuntimeMetrics(), monitoring.WithNamespace("spaceweather"))
	require.NoError(t, err)

	families, err := mod.Registry().Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "spaceweather_cache_entries")
	require.NotContains(t, names, "go_goroutines")
}
