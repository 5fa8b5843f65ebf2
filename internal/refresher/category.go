package refresher

import (
	"strings"
	"time"
)

// Category groups tables by how often their source data changes.
type Category string

const (
	RealTime Category = "real_time"
	Hourly   Category = "hourly"
	Daily    Category = "daily"
)

// Intervals holds the minimum age before a cached table is refreshed.
type Intervals struct {
	RealTime time.Duration
	Hourly   time.Duration
	Daily    time.Duration
}

// DefaultIntervals returns the stock per-category refresh intervals.
func DefaultIntervals() Intervals {
	return Intervals{
		RealTime: time.Minute,
		Hourly:   time.Hour,
		Daily:    24 * time.Hour,
	}
}

// For returns the interval configured for c.
func (i Intervals) For(c Category) time.Duration {
	switch c {
	case RealTime:
		return i.RealTime
	case Daily:
		return i.Daily
	default:
		return i.Hourly
	}
}

func (i Intervals) withDefaults() Intervals {
	def := DefaultIntervals()
	if i.RealTime <= 0 {
		i.RealTime = def.RealTime
	}
	if i.Hourly <= 0 {
		i.Hourly = def.Hourly
	}
	if i.Daily <= 0 {
		i.Daily = def.Daily
	}
	return i
}

var (
	realTimeMarkers = []string{"_1m", "_1s", "_5m", "1_minute", "realtime", "real_time", "rtsw"}
	dailyMarkers    = []string{"1_day", "_1d", "daily", "_day", "solar_region", "27_day", "predicted"}
)

// Categorize assigns a category from substrings of the table name. Real-time
// markers win over daily ones; anything unmarked is hourly.
func Categorize(table string) Category {
	name := strings.ToLower(table)
	for _, marker := range realTimeMarkers {
		if strings.Contains(name, marker) {
			return RealTime
		}
	}
	for _, marker := range dailyMarkers {
		if strings.Contains(name, marker) {
			return Daily
		}
	}
	return Hourly
}
