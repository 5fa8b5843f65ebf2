// Package snapshot models a tabular read of one store table and the
// transformations applied to it before it is cached or handed to callers.
package snapshot

import (
	"time"
)

// Kind describes the dominant Go type held by a column.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// KindOf reports the Kind of a single cell value. Nil values report KindUnknown.
func KindOf(v any) Kind {
	switch v.(type) {
	case string:
		return KindString
	case int64, int, int32:
		return KindInt
	case float64, float32:
		return KindFloat
	case bool:
		return KindBool
	case time.Time:
		return KindTime
	case []byte:
		return KindBytes
	default:
		return KindUnknown
	}
}

// Column is a named, typed column of a Snapshot.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Snapshot is an ordered set of columns and rows. A Snapshot stored in the
// cache is never mutated; callers always receive their own copy.
type Snapshot struct {
	Columns []Column
	Rows    [][]any
}

// New builds a Snapshot from column names and rows, inferring column kinds
// from the row values.
func New(columns []string, rows [][]any) *Snapshot {
	cols := make([]Column, len(columns))
	for i, name := range columns {
		cols[i] = Column{Name: name}
	}
	s := &Snapshot{Columns: cols, Rows: rows}
	s.inferKinds()
	return s
}

// Empty returns a snapshot with no columns and no rows.
func Empty() *Snapshot {
	return &Snapshot{Columns: []Column{}, Rows: [][]any{}}
}

// Len returns the number of rows.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// IsEmpty reports whether the snapshot holds no rows.
func (s *Snapshot) IsEmpty() bool {
	return s.Len() == 0
}

// ColumnNames returns the column names in order.
func (s *Snapshot) ColumnNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// ColumnIndex returns the position of the named column or -1.
func (s *Snapshot) ColumnIndex(name string) int {
	if s == nil {
		return -1
	}
	for i, col := range s.Columns {
		if col.Name == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy that shares no mutable state with s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Columns: append([]Column(nil), s.Columns...),
		Rows:    make([][]any, len(s.Rows)),
	}
	if out.Columns == nil {
		out.Columns = []Column{}
	}
	for i, row := range s.Rows {
		out.Rows[i] = cloneRow(row)
	}
	return out
}

func cloneRow(row []any) []any {
	cp := make([]any, len(row))
	for j, v := range row {
		if b, ok := v.([]byte); ok {
			v = append([]byte(nil), b...)
		}
		cp[j] = v
	}
	return cp
}

const (
	sliceHeaderBytes = 24
	interfaceBytes   = 16
	timeBytes        = 24
	wordBytes        = 8
)

// EstimateSize approximates the in-memory footprint of the snapshot in bytes.
func (s *Snapshot) EstimateSize() int64 {
	if s == nil {
		return 0
	}
	size := int64(sliceHeaderBytes * 2)
	for _, col := range s.Columns {
		size += int64(len(col.Name)) + interfaceBytes + wordBytes
	}
	for _, row := range s.Rows {
		size += sliceHeaderBytes + int64(len(row))*interfaceBytes
		for _, v := range row {
			size += cellSize(v)
		}
	}
	return size
}

func cellSize(v any) int64 {
	switch val := v.(type) {
	case nil:
		return 0
	case string:
		return int64(len(val))
	case []byte:
		return int64(len(val)) + sliceHeaderBytes
	case time.Time:
		return timeBytes
	case bool:
		return 1
	default:
		return wordBytes
	}
}

func (s *Snapshot) inferKinds() {
	for i := range s.Columns {
		s.Columns[i].Kind = s.columnKind(i)
	}
}

// columnKind returns the shared kind of all non-nil cells in column i, or
// KindUnknown when the column is empty or mixed.
func (s *Snapshot) columnKind(i int) Kind {
	kind := KindUnknown
	for _, row := range s.Rows {
		if i >= len(row) || row[i] == nil {
			continue
		}
		k := KindOf(row[i])
		if kind == KindUnknown {
			kind = k
			continue
		}
		if k != kind {
			return KindUnknown
		}
	}
	return kind
}
