package refresher

import (
	"context"
	"errors"

	json "github.com/goccy/go-json"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/swdash/internal/models"
)

// TableOutcome is the per-table record kept in a refresh run.
type TableOutcome struct {
	Table    string   `json:"table"`
	Category Category `json:"category"`
	Result   string   `json:"result"`
	Mode     string   `json:"mode,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Recorder persists refresh passes.
type Recorder interface {
	Record(ctx context.Context, run *models.RefreshRun) error
}

// GormRecorder stores refresh runs in the refresh_runs table.
type GormRecorder struct {
	db *gorm.DB
}

// NewGormRecorder returns a recorder backed by db.
func NewGormRecorder(db *gorm.DB) (*GormRecorder, error) {
	if db == nil {
		return nil, errors.New("refresher: history requires a database")
	}
	return &GormRecorder{db: db}, nil
}

// Record inserts run.
func (r *GormRecorder) Record(ctx context.Context, run *models.RefreshRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Recent returns up to limit runs, newest first.
func (r *GormRecorder) Recent(ctx context.Context, limit int) ([]models.RefreshRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.RefreshRun
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// DecodeOutcomes unpacks the per-table outcomes of a stored run.
func DecodeOutcomes(run models.RefreshRun) ([]TableOutcome, error) {
	if len(run.Tables) == 0 {
		return nil, nil
	}
	var out []TableOutcome
	if err := json.Unmarshal(run.Tables, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeOutcomes(outcomes []TableOutcome) (datatypes.JSON, error) {
	raw, err := json.Marshal(outcomes)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
