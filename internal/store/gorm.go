package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/swdash/internal/snapshot"
	"github.com/charlesng35/swdash/pkg/validator"
)

// GormGateway implements Gateway on top of a gorm connection. Identifiers are
// always passed to gorm as quoted table/column expressions, never
// interpolated into SQL text.
type GormGateway struct {
	db      *gorm.DB
	exclude map[string]struct{}
}

// GatewayOption customises a GormGateway.
type GatewayOption func(*GormGateway)

// WithExcludedTables hides service-owned tables from ListTables.
func WithExcludedTables(names ...string) GatewayOption {
	return func(g *GormGateway) {
		for _, name := range names {
			g.exclude[strings.ToLower(name)] = struct{}{}
		}
	}
}

// NewGormGateway wraps db. A nil db means the store is not configured.
func NewGormGateway(db *gorm.DB, opts ...GatewayOption) (*GormGateway, error) {
	if db == nil {
		return nil, ErrStoreUnavailable
	}
	g := &GormGateway{db: db, exclude: map[string]struct{}{}}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// ListTables returns the user tables of the current schema, sorted by name.
func (g *GormGateway) ListTables(ctx context.Context) ([]string, error) {
	tables, err := g.db.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		return nil, &QueryError{Op: "list tables", Err: err}
	}

	out := make([]string, 0, len(tables))
	for _, name := range tables {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "sqlite_") {
			continue
		}
		if _, skip := g.exclude[lower]; skip {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Columns returns the column names recorded in the schema catalog.
func (g *GormGateway) Columns(ctx context.Context, table string) ([]string, error) {
	if err := checkIdentifier(table); err != nil {
		return nil, &QueryError{Op: "columns", Table: table, Err: err}
	}
	types, err := g.db.WithContext(ctx).Migrator().ColumnTypes(table)
	if err != nil {
		return nil, &QueryError{Op: "columns", Table: table, Err: err}
	}
	names := make([]string, len(types))
	for i, ct := range types {
		names[i] = ct.Name()
	}
	return names, nil
}

// Query runs SELECT * against table with an optional LIMIT.
func (g *GormGateway) Query(ctx context.Context, table string, rowCap int) (*snapshot.Snapshot, error) {
	if err := checkIdentifier(table); err != nil {
		return nil, &QueryError{Op: "query", Table: table, Err: err}
	}

	tx := g.db.WithContext(ctx).Table(table).Select("*")
	if rowCap > 0 {
		tx = tx.Limit(rowCap)
	}
	snap, err := collect(tx)
	if err != nil {
		return nil, &QueryError{Op: "query", Table: table, Err: err}
	}
	return snap, nil
}

// QuerySince reads rows newer than since, ascending by column.
func (g *GormGateway) QuerySince(ctx context.Context, table, column string, since time.Time) (*snapshot.Snapshot, error) {
	if err := checkIdentifier(table); err != nil {
		return nil, &QueryError{Op: "query since", Table: table, Err: err}
	}
	if err := checkIdentifier(column); err != nil {
		return nil, &QueryError{Op: "query since", Table: table, Err: err}
	}

	col := clause.Column{Name: column}
	tx := g.db.WithContext(ctx).
		Table(table).
		Select("*").
		Where(clause.Gt{Column: col, Value: since}).
		Order(clause.OrderByColumn{Column: col})

	snap, err := collect(tx)
	if err != nil {
		return nil, &QueryError{Op: "query since", Table: table, Err: err}
	}
	return snap, nil
}

func checkIdentifier(name string) error {
	if !validator.IsIdentifier(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

func collect(tx *gorm.DB) (*snapshot.Snapshot, error) {
	rows, err := tx.Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	data := [][]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i := range values {
			values[i] = convertValue(values[i], types[i])
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshot.New(columns, data), nil
}

// convertValue folds driver values into the small set of types snapshots use.
func convertValue(v any, ct *sql.ColumnType) any {
	switch val := v.(type) {
	case []byte:
		if isBinaryType(ct) {
			return append([]byte(nil), val...)
		}
		return string(val)
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}

func isBinaryType(ct *sql.ColumnType) bool {
	if ct == nil {
		return false
	}
	switch strings.ToUpper(ct.DatabaseTypeName()) {
	case "BLOB", "BYTEA", "BINARY", "VARBINARY", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB":
		return true
	default:
		return false
	}
}

var _ Gateway = (*GormGateway)(nil)
