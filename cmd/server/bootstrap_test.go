package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/swdash/internal/app"
	"github.com/charlesng35/swdash/internal/refresher"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()
	cfg := &app.Config{
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
	_, err := app.ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	return cfg
}

func TestBootstrapWithoutStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "postgres"
	cfg.Refresher.Enabled = true

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = stack.Shutdown(context.Background(), zap.NewNop()) })

	require.Nil(t, stack.DB)
	require.Nil(t, stack.Gateway)
	require.False(t, stack.Reader.Available())
	require.Equal(t, refresher.Stopped, stack.Refresher.State())

	rec := httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tables", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"degraded"`)
}

func TestBootstrapWithSQLiteStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database = app.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}
	cfg.Store.Breaker = app.BreakerConfig{Enabled: true, FailureThreshold: 3, OpenTimeout: time.Second}
	cfg.Refresher.Enabled = true
	cfg.Refresher.History = true

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	require.NotNil(t, stack.DB)
	require.NotNil(t, stack.History)
	require.True(t, stack.Reader.Available())
	require.Equal(t, refresher.Running, stack.Refresher.State())
	require.True(t, stack.DB.Migrator().HasTable("refresh_runs"))

	rec := httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tables", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "refresh_runs")

	rec = httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, stack.Shutdown(ctx, zap.NewNop()))
	require.Equal(t, refresher.Stopped, stack.Refresher.State())
}

func TestBootstrapRefresherOptOut(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database = app.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}
	cfg.Refresher.Enabled = true
	cfg.Refresher.Disabled = true

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = stack.Shutdown(context.Background(), zap.NewNop()) })

	require.Nil(t, stack.Refresher)
	require.Nil(t, stack.History)
	require.False(t, stack.DB.Migrator().HasTable("refresh_runs"))
}

func TestShutdownNilStack(t *testing.T) {
	var stack *runtimeStack
	require.NoError(t, stack.Shutdown(context.Background(), zap.NewNop()))
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig("/definitely/not/here")
	require.ErrorContains(t, err, "does not exist")
}
