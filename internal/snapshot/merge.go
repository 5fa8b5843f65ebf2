package snapshot

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrSchemaMismatch is returned when two snapshots cannot be merged because
// their column sets differ.
var ErrSchemaMismatch = errors.New("snapshot: column sets differ")

// MergeByTime appends next to prev, keeps one row per distinct value of the
// time column and sorts the result ascending by it. When both inputs carry a
// row for the same timestamp the row from next wins. Rows without a
// timestamp are kept, after the timed rows, in their original order.
//
// next may list its columns in any order but must hold the same column set
// as prev. Neither input is modified.
func MergeByTime(prev, next *Snapshot, column string) (*Snapshot, error) {
	timeIdx := prev.ColumnIndex(column)
	if timeIdx < 0 {
		return nil, fmt.Errorf("merge: time column %q not in snapshot", column)
	}

	order, err := alignColumns(prev, next)
	if err != nil {
		return nil, err
	}

	out := &Snapshot{
		Columns: append([]Column(nil), prev.Columns...),
		Rows:    make([][]any, 0, prev.Len()+next.Len()),
	}

	var untimed [][]any
	seen := make(map[int64]int, prev.Len()+next.Len())
	add := func(row []any) {
		t, ok := row[timeIdx].(time.Time)
		if !ok {
			untimed = append(untimed, row)
			return
		}
		key := t.UnixNano()
		if pos, dup := seen[key]; dup {
			out.Rows[pos] = row
			return
		}
		seen[key] = len(out.Rows)
		out.Rows = append(out.Rows, row)
	}

	for _, row := range prev.Rows {
		add(cloneRow(padRow(row, len(out.Columns))))
	}
	for _, row := range next.Rows {
		add(reorderRow(row, order))
	}

	sort.SliceStable(out.Rows, func(i, j int) bool {
		return out.Rows[i][timeIdx].(time.Time).Before(out.Rows[j][timeIdx].(time.Time))
	})
	out.Rows = append(out.Rows, untimed...)

	for i := range out.Columns {
		if out.Columns[i].Kind == KindUnknown {
			out.Columns[i].Kind = out.columnKind(i)
		}
	}
	return out, nil
}

// alignColumns maps every column of prev to its position in next.
func alignColumns(prev, next *Snapshot) ([]int, error) {
	if len(prev.Columns) != len(next.Columns) {
		return nil, fmt.Errorf("%w: %d vs %d columns", ErrSchemaMismatch, len(prev.Columns), len(next.Columns))
	}
	order := make([]int, len(prev.Columns))
	for i, col := range prev.Columns {
		j := next.ColumnIndex(col.Name)
		if j < 0 {
			return nil, fmt.Errorf("%w: column %q missing", ErrSchemaMismatch, col.Name)
		}
		order[i] = j
	}
	return order, nil
}

func reorderRow(row []any, order []int) []any {
	out := make([]any, len(order))
	for i, j := range order {
		if j < len(row) {
			out[i] = row[j]
		}
	}
	return cloneRow(out)
}

func padRow(row []any, width int) []any {
	if len(row) >= width {
		return row
	}
	out := make([]any, width)
	copy(out, row)
	return out
}
