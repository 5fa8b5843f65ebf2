package snapshot

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// timeLikePatterns select the columns the normaliser parses into timestamps.
// catalogPatterns extend them for the store catalog lookup used by
// incremental loads, so both passes share one table.
var (
	timeLikePatterns = []string{"time", "date", "timetag", "processedat", "processed_at", "observed"}
	catalogPatterns  = []string{"created", "updated"}
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006-01-02",
}

// ErrUnparseableTime is wrapped by NormalizationWarning when a cell cannot be
// read as a timestamp.
var ErrUnparseableTime = errors.New("value is not a timestamp")

// NormalizationWarning reports a time-like column that was left unparsed.
type NormalizationWarning struct {
	Column string
	Err    error
}

func (w NormalizationWarning) Error() string {
	return fmt.Sprintf("normalize column %q: %v", w.Column, w.Err)
}

func (w NormalizationWarning) Unwrap() error {
	return w.Err
}

// IsTimeLike reports whether a (lower-cased) column name looks like a timestamp.
func IsTimeLike(name string) bool {
	return containsAny(strings.ToLower(name), timeLikePatterns)
}

// IsCatalogTimeLike is IsTimeLike widened with the audit column patterns
// ("created", "updated") that the schema catalog lookup also accepts.
func IsCatalogTimeLike(name string) bool {
	lower := strings.ToLower(name)
	return containsAny(lower, timeLikePatterns) || containsAny(lower, catalogPatterns)
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Normalize lower-cases column names and parses time-like columns into
// time.Time values. A column whose values cannot all be parsed is left as-is
// and reported as a warning. The input snapshot is not modified.
//
// Normalize is idempotent.
func Normalize(s *Snapshot) (*Snapshot, []NormalizationWarning) {
	if s == nil {
		return Empty(), nil
	}

	out := s.Clone()
	for i := range out.Columns {
		out.Columns[i].Name = strings.ToLower(out.Columns[i].Name)
	}

	var warnings []NormalizationWarning
	for i, col := range out.Columns {
		if !IsTimeLike(col.Name) {
			continue
		}
		if err := parseColumn(out, i); err != nil {
			warnings = append(warnings, NormalizationWarning{Column: col.Name, Err: err})
		}
	}

	out.inferKinds()
	return out, warnings
}

// parseColumn converts column i in place. The conversion is all-or-nothing:
// on the first failure no cell is changed.
func parseColumn(s *Snapshot, i int) error {
	parsed := make([]any, len(s.Rows))
	for r, row := range s.Rows {
		if i >= len(row) {
			continue
		}
		v, err := parseTime(row[i])
		if err != nil {
			return fmt.Errorf("row %d: %w", r, err)
		}
		parsed[r] = v
	}
	for r, row := range s.Rows {
		if i < len(row) {
			row[i] = parsed[r]
		}
	}
	return nil
}

func parseTime(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return val.UTC(), nil
	case []byte:
		return parseTimeString(string(val))
	case string:
		return parseTimeString(val)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnparseableTime, v)
	}
}

func parseTimeString(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnparseableTime, raw)
}
