// Package cache holds table snapshots in memory under a byte budget.
package cache

import (
	"fmt"
	"strings"
)

// Row-cap buckets. Reads whose caps fall in the same bucket share one entry.
const (
	BucketSmall  = "small"
	BucketRecent = "recent"
)

// DefaultSmallRowCap is the largest row cap that maps to BucketSmall.
const DefaultSmallRowCap = 1000

// Key identifies one cache entry.
type Key struct {
	Table  string
	Bucket string
}

func (k Key) String() string {
	return k.Table + ":" + k.Bucket
}

// KeyFor derives the key for a read of table capped at rowCap rows. A cap of
// zero or less means uncapped. smallCap <= 0 selects DefaultSmallRowCap.
func KeyFor(table string, rowCap, smallCap int) Key {
	if smallCap <= 0 {
		smallCap = DefaultSmallRowCap
	}
	bucket := BucketRecent
	if rowCap > 0 && rowCap <= smallCap {
		bucket = BucketSmall
	}
	return Key{Table: table, Bucket: bucket}
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	idx := strings.LastIndexByte(s, ':')
	if idx <= 0 || idx == len(s)-1 {
		return Key{}, fmt.Errorf("cache: malformed key %q", s)
	}
	bucket := s[idx+1:]
	if bucket != BucketSmall && bucket != BucketRecent {
		return Key{}, fmt.Errorf("cache: unknown bucket %q", bucket)
	}
	return Key{Table: s[:idx], Bucket: bucket}, nil
}
