package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/swdash/internal/app"
	"github.com/charlesng35/swdash/internal/monitoring"
	appErrors "github.com/charlesng35/swdash/pkg/errors"
	"github.com/charlesng35/swdash/pkg/response"
)

var errHealthDisabled = appErrors.New("health.disabled", "health checks are disabled", http.StatusNotFound)

type evaluator func(context.Context) monitoring.HealthReport

// registerHealthRoutes mounts the probes at the root and under /api. /health
// is the readiness summary without per-check detail.
func registerHealthRoutes(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) {
	if cfg == nil {
		return
	}

	routers := []gin.IRouter{r, r.Group("/api")}
	if !cfg.Monitoring.Health.Enabled || mon.Health() == nil {
		for _, router := range routers {
			router.GET("/health", healthDisabled)
			router.GET("/health/live", healthDisabled)
			router.GET("/health/ready", healthDisabled)
		}
		return
	}

	manager := mon.Health()
	for _, router := range routers {
		router.GET("/health", healthHandler(manager.EvaluateReadiness, false))
		router.GET("/health/live", healthHandler(manager.EvaluateLiveness, true))
		router.GET("/health/ready", healthHandler(manager.EvaluateReadiness, true))
	}
}

func healthHandler(eval evaluator, detailed bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := eval(c.Request.Context())

		status := http.StatusOK
		if !report.Success {
			status = http.StatusServiceUnavailable
		}
		body := gin.H{
			"success":    report.Success,
			"status":     report.Status,
			"checked_at": time.Now().UTC(),
		}
		if detailed {
			body["checks"] = report.Checks
		}
		c.JSON(status, body)
	}
}

func healthDisabled(c *gin.Context) {
	response.Error(c, errHealthDisabled)
}
