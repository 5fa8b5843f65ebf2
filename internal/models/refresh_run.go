package models

import (
	"time"

	"gorm.io/datatypes"
)

// RefreshRun status values.
const (
	RefreshRunSucceeded = "succeeded"
	RefreshRunPartial   = "partial"
	RefreshRunFailed    = "failed"
)

// RefreshRun records one background refresh pass.
type RefreshRun struct {
	BaseModel

	StartedAt  time.Time      `gorm:"index" json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Status     string         `gorm:"size:16;not null" json:"status"`
	Refreshed  int            `json:"refreshed"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Tables     datatypes.JSON `json:"tables"`
	Error      string         `gorm:"type:text" json:"error,omitempty"`
}

// TableName pins the history table name so the store gateway can hide it.
func (RefreshRun) TableName() string { return "refresh_runs" }

// Duration is the wall time the pass took.
func (r RefreshRun) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
