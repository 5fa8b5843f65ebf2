package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/swdash/internal/app"
	"github.com/charlesng35/swdash/internal/models"
	"github.com/charlesng35/swdash/internal/monitoring"
	"github.com/charlesng35/swdash/internal/refresher"
	appErrors "github.com/charlesng35/swdash/pkg/errors"
	"github.com/charlesng35/swdash/pkg/response"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// RunHistory lists recorded refresher passes.
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]models.RefreshRun, error)
}

// MonitoringHandler surfaces monitoring summaries and refresh history.
type MonitoringHandler struct {
	module  *monitoring.Module
	cfg     *app.Config
	history RunHistory
}

// NewMonitoringHandler constructs a monitoring handler. Returns nil when monitoring is disabled.
// history may be nil when refresh history is not recorded.
func NewMonitoringHandler(module *monitoring.Module, cfg *app.Config, history RunHistory) *MonitoringHandler {
	if module == nil || cfg == nil {
		return nil
	}
	if !cfg.Monitoring.Health.Enabled && !cfg.Monitoring.Prometheus.Enabled {
		return nil
	}
	return &MonitoringHandler{module: module, cfg: cfg, history: history}
}

// Summary returns aggregated cache, load and refresh statistics.
func (h *MonitoringHandler) Summary(c *gin.Context) {
	snapshot := monitoring.Snapshot()
	endpoint := strings.TrimSpace(h.cfg.Monitoring.Prometheus.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}

	response.Success(c, http.StatusOK, gin.H{
		"summary": snapshot,
		"prometheus": gin.H{
			"enabled":  h.cfg.Monitoring.Prometheus.Enabled,
			"endpoint": endpoint,
		},
		"history": h.history != nil,
	})
}

type refreshRunDTO struct {
	ID         string                   `json:"id"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	DurationMS int64                    `json:"duration_ms"`
	Status     string                   `json:"status"`
	Refreshed  int                      `json:"refreshed"`
	Skipped    int                      `json:"skipped"`
	Failed     int                      `json:"failed"`
	Error      string                   `json:"error,omitempty"`
	Tables     []refresher.TableOutcome `json:"tables"`
}

// RefreshRuns handles GET /api/monitoring/refresh-runs?limit=.
func (h *MonitoringHandler) RefreshRuns(c *gin.Context) {
	if h.history == nil {
		response.Error(c, appErrors.New("refresh_history.disabled", "Refresh history is not recorded", http.StatusNotFound))
		return
	}

	limit, err := parseIntQuery(c, "limit", defaultRunLimit)
	if err != nil || limit <= 0 {
		response.Error(c, appErrors.Invalid("limit must be a positive integer"))
		return
	}
	if limit > maxRunLimit {
		limit = maxRunLimit
	}

	runs, err := h.history.Recent(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "Failed to load refresh history"))
		return
	}

	out := make([]refreshRunDTO, 0, len(runs))
	for _, run := range runs {
		outcomes, err := refresher.DecodeOutcomes(run)
		if err != nil || outcomes == nil {
			outcomes = []refresher.TableOutcome{}
		}
		out = append(out, refreshRunDTO{
			ID:         run.ID,
			StartedAt:  run.StartedAt.UTC(),
			FinishedAt: run.FinishedAt.UTC(),
			DurationMS: run.Duration().Milliseconds(),
			Status:     run.Status,
			Refreshed:  run.Refreshed,
			Skipped:    run.Skipped,
			Failed:     run.Failed,
			Error:      run.Error,
			Tables:     outcomes,
		})
	}
	response.SuccessWithMeta(c, http.StatusOK, out, &response.Meta{Total: len(out)})
}
