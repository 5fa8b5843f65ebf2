package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/swdash/internal/app"
	"github.com/charlesng35/swdash/internal/handlers"
	"github.com/charlesng35/swdash/internal/middleware"
	"github.com/charlesng35/swdash/internal/monitoring"
)

// NewRouter builds the Gin engine, wires middleware and registers the table,
// cache, monitoring and health routes. history may be nil.
func NewRouter(cfg *app.Config, reader handlers.TableReader, mon *monitoring.Module, history handlers.RunHistory) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if reader == nil {
		return nil, fmt.Errorf("table reader must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	registerHealthRoutes(r, cfg, mon)

	tableHandler, err := handlers.NewTableHandler(reader)
	if err != nil {
		return nil, err
	}
	cacheHandler, err := handlers.NewCacheHandler(reader)
	if err != nil {
		return nil, err
	}

	api := r.Group("/api")
	registerTableRoutes(api, tableHandler, cacheHandler)
	registerMonitoringRoutes(api, handlers.NewMonitoringHandler(mon, cfg, history))

	// Metrics endpoint
	if cfg.Monitoring.Prometheus.Enabled && mon != nil {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(mon.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
