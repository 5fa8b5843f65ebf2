// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/swdash/internal/database"
)

type options struct {
	serviceTables bool
	tables        []any
}

// Option configures MustOpenTestDB.
type Option func(*options)

// WithAutoMigrate creates the service's own tables (refresh_runs).
func WithAutoMigrate() Option {
	return func(o *options) { o.serviceTables = true }
}

// WithTables creates one table per gorm model, standing in for the
// space-weather tables a real store would hold.
func WithTables(models ...any) Option {
	return func(o *options) { o.tables = append(o.tables, models...) }
}

// MustOpenTestDB opens a private in-memory SQLite database that is closed
// when the test ends.
func MustOpenTestDB(t *testing.T, opts ...Option) *gorm.DB {
	t.Helper()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db, err := database.Open(database.Config{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, database.Close(db)) })

	if o.serviceTables {
		require.NoError(t, database.AutoMigrate(db))
	}
	if len(o.tables) > 0 {
		require.NoError(t, db.AutoMigrate(o.tables...))
	}
	return db
}
