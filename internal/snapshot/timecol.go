package snapshot

import (
	"strings"
	"time"
)

// PickTimeColumn chooses the column a chart should use as its x axis.
// Among time-like columns it prefers one named "time", one ending in "_at"
// or one containing "timetag"; otherwise the first time-like column wins.
// It reports false for an empty snapshot or one without time-like columns.
func PickTimeColumn(s *Snapshot) (string, bool) {
	if s.IsEmpty() {
		return "", false
	}
	var candidates []string
	for _, col := range s.Columns {
		if IsTimeLike(col.Name) {
			candidates = append(candidates, col.Name)
		}
	}
	return pickPreferred(candidates)
}

// CatalogTimeColumn picks the time column of a table from its catalog column
// names, using the same preference rules as PickTimeColumn over the wider
// catalog pattern set.
func CatalogTimeColumn(columns []string) (string, bool) {
	var candidates []string
	for _, name := range columns {
		if IsCatalogTimeLike(name) {
			candidates = append(candidates, name)
		}
	}
	return pickPreferred(candidates)
}

func pickPreferred(candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	for _, c := range candidates {
		lower := strings.ToLower(c)
		if lower == "time" || strings.HasSuffix(lower, "_at") || strings.Contains(lower, "timetag") {
			return c, true
		}
	}
	return candidates[0], true
}

// MaxTime returns the latest timestamp held in the named column.
func MaxTime(s *Snapshot, column string) (time.Time, bool) {
	idx := s.ColumnIndex(column)
	if idx < 0 {
		return time.Time{}, false
	}
	var (
		max   time.Time
		found bool
	)
	for _, row := range s.Rows {
		if idx >= len(row) {
			continue
		}
		t, ok := row[idx].(time.Time)
		if !ok {
			continue
		}
		if !found || t.After(max) {
			max = t
			found = true
		}
	}
	return max, found
}
