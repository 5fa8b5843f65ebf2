// Package store is the gateway to the relational store holding the
// space-weather tables. It lists tables, inspects their columns and reads
// their rows into snapshots; it never writes.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charlesng35/swdash/internal/snapshot"
)

var (
	// ErrStoreUnavailable reports that no connection configuration exists.
	// The condition is permanent for the life of the process.
	ErrStoreUnavailable = errors.New("store: no connection configured")

	// ErrInvalidIdentifier rejects table or column names that are not plain identifiers.
	ErrInvalidIdentifier = errors.New("store: invalid identifier")
)

// QueryError wraps a single failed store operation.
type QueryError struct {
	Op    string
	Table string
	Err   error
}

func (e *QueryError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Table == "" {
		return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store: %s %q: %v", e.Op, e.Table, e.Err)
}

func (e *QueryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Gateway is the read interface over the backing store.
type Gateway interface {
	// ListTables returns the table identifiers in listing order.
	ListTables(ctx context.Context) ([]string, error)
	// Columns returns the catalog column names of a table.
	Columns(ctx context.Context, table string) ([]string, error)
	// Query reads a table, at most rowCap rows when rowCap > 0.
	Query(ctx context.Context, table string, rowCap int) (*snapshot.Snapshot, error)
	// QuerySince reads the rows whose column value is strictly after since,
	// ascending by that column.
	QuerySince(ctx context.Context, table, column string, since time.Time) (*snapshot.Snapshot, error)
}
