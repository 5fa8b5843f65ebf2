package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/charlesng35/swdash/internal/models"
)

// ServiceTables lists the tables this service owns. They are hidden from the
// table listing so they never show up as dashboard data.
var ServiceTables = []string{models.RefreshRun{}.TableName()}

// AutoMigrate creates or updates the tables the service writes to. Data
// tables are owned by the ingest pipeline and are never migrated here.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	return db.AutoMigrate(&models.RefreshRun{})
}
