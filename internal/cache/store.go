package cache

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/swdash/internal/monitoring"
	"github.com/charlesng35/swdash/internal/snapshot"
	"github.com/charlesng35/swdash/pkg/logger"
)

const (
	// DefaultMaxBytes is the total budget across all entries.
	DefaultMaxBytes int64 = 100 << 20
	// DefaultCompressThreshold is the per-entry size above which payloads are gzipped.
	DefaultCompressThreshold int64 = 10 << 20
)

// Config sizes a TableCache.
type Config struct {
	MaxBytes          int64
	CompressThreshold int64
	SmallRowCap       int
}

// Entry is a read-only view of one cached snapshot.
type Entry struct {
	Key        Key
	CapturedAt time.Time
	Compressed bool
	// Size is the accounted footprint: compressed length when compressed,
	// estimated in-memory size otherwise.
	Size int64

	snap    *snapshot.Snapshot
	payload []byte
}

// Snapshot returns a private copy of the cached snapshot. Mutating it never
// affects the cache.
func (e Entry) Snapshot() (*snapshot.Snapshot, error) {
	if !e.Compressed {
		if e.snap == nil {
			return snapshot.Empty(), nil
		}
		return e.snap.Clone(), nil
	}
	snap, err := snapshot.Decompress(e.payload)
	if err != nil {
		return nil, &SerializationError{Op: "decompress", Key: e.Key, Err: err}
	}
	return snap, nil
}

// Age reports how long ago the entry was captured.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CapturedAt)
}

// Sizer estimates the in-memory footprint of a snapshot.
type Sizer func(*snapshot.Snapshot) int64

// Option customises a TableCache.
type Option func(*TableCache)

// WithSizer replaces the default size estimator.
func WithSizer(fn Sizer) Option {
	return func(c *TableCache) {
		if fn != nil {
			c.sizer = fn
		}
	}
}

// TableCache maps keys to snapshots. All methods are safe for concurrent use;
// eviction and insertion for a put happen under one lock.
type TableCache struct {
	mu      sync.Mutex
	entries map[Key]*Entry
	total   int64

	cfg   Config
	sizer Sizer
	log   *zap.Logger
}

// New constructs an empty TableCache.
func New(cfg Config, opts ...Option) *TableCache {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.CompressThreshold <= 0 {
		cfg.CompressThreshold = DefaultCompressThreshold
	}
	if cfg.SmallRowCap <= 0 {
		cfg.SmallRowCap = DefaultSmallRowCap
	}

	c := &TableCache{
		entries: make(map[Key]*Entry),
		cfg:     cfg,
		sizer:   func(s *snapshot.Snapshot) int64 { return s.EstimateSize() },
		log:     logger.WithModule("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// KeyFor derives the key for a read using this cache's small-bucket threshold.
func (c *TableCache) KeyFor(table string, rowCap int) Key {
	return KeyFor(table, rowCap, c.cfg.SmallRowCap)
}

// Get returns the entry stored under key.
func (c *TableCache) Get(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Put stores snap under key, replacing any previous entry. Snapshots larger
// than the compression threshold are stored gzipped. Older entries are evicted
// first so the total stays within budget once the new entry is added, unless
// the new entry alone exceeds it.
func (c *TableCache) Put(key Key, snap *snapshot.Snapshot, capturedAt time.Time) error {
	if snap == nil {
		snap = snapshot.Empty()
	}

	entry := &Entry{Key: key, CapturedAt: capturedAt}
	size := c.sizer(snap)
	if size > c.cfg.CompressThreshold {
		payload, err := snapshot.Compress(snap)
		if err != nil {
			// The previous entry is superseded either way.
			c.Invalidate(key)
			return &SerializationError{Op: "compress", Key: key, Err: err}
		}
		entry.Compressed = true
		entry.payload = payload
		entry.Size = int64(len(payload))
	} else {
		entry.snap = snap.Clone()
		entry.Size = size
	}

	c.mu.Lock()
	c.removeLocked(key)
	evicted := c.evictLocked(entry.Size, 0)
	c.entries[key] = entry
	c.total += entry.Size
	entries, total := len(c.entries), c.total
	c.mu.Unlock()

	c.report(evicted, entries, total)
	return nil
}

// EvictIfOverBudget drops the oldest entries until the total fits the budget
// or a single entry remains. It returns the number of entries removed.
func (c *TableCache) EvictIfOverBudget() int {
	c.mu.Lock()
	evicted := c.evictLocked(0, 1)
	entries, total := len(c.entries), c.total
	c.mu.Unlock()

	c.report(evicted, entries, total)
	return len(evicted)
}

// Invalidate removes the entry for key. It reports whether one existed.
func (c *TableCache) Invalidate(key Key) bool {
	c.mu.Lock()
	removed := c.removeLocked(key)
	entries, total := len(c.entries), c.total
	c.mu.Unlock()

	monitoring.SetCacheUsage(entries, total)
	return removed
}

// InvalidateTable removes every bucket cached for table and returns how many
// entries were dropped.
func (c *TableCache) InvalidateTable(table string) int {
	c.mu.Lock()
	removed := 0
	for key := range c.entries {
		if key.Table == table && c.removeLocked(key) {
			removed++
		}
	}
	entries, total := len(c.entries), c.total
	c.mu.Unlock()

	monitoring.SetCacheUsage(entries, total)
	return removed
}

// Clear removes every entry.
func (c *TableCache) Clear() int {
	c.mu.Lock()
	removed := len(c.entries)
	c.entries = make(map[Key]*Entry)
	c.total = 0
	c.mu.Unlock()

	monitoring.SetCacheUsage(0, 0)
	return removed
}

// Len returns the number of entries.
func (c *TableCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Usage returns the accounted size of all entries.
func (c *TableCache) Usage() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// HasTable reports whether any bucket of table is cached.
func (c *TableCache) HasTable(table string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if key.Table == table {
			return true
		}
	}
	return false
}

// Keys lists the cached keys, oldest capture first.
func (c *TableCache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	ordered := c.oldestFirstLocked()
	keys := make([]Key, len(ordered))
	for i, entry := range ordered {
		keys[i] = entry.Key
	}
	return keys
}

func (c *TableCache) removeLocked(key Key) bool {
	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	delete(c.entries, key)
	c.total -= entry.Size
	return true
}

// evictLocked removes entries oldest first while total+reserve exceeds the
// budget and more than keep entries remain.
func (c *TableCache) evictLocked(reserve int64, keep int) []Key {
	if c.total+reserve <= c.cfg.MaxBytes {
		return nil
	}

	var evicted []Key
	for _, entry := range c.oldestFirstLocked() {
		if c.total+reserve <= c.cfg.MaxBytes || len(c.entries) <= keep {
			break
		}
		c.removeLocked(entry.Key)
		evicted = append(evicted, entry.Key)
	}
	return evicted
}

func (c *TableCache) oldestFirstLocked() []*Entry {
	ordered := make([]*Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		ordered = append(ordered, entry)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].CapturedAt.Equal(ordered[j].CapturedAt) {
			return ordered[i].Key.String() < ordered[j].Key.String()
		}
		return ordered[i].CapturedAt.Before(ordered[j].CapturedAt)
	})
	return ordered
}

func (c *TableCache) report(evicted []Key, entries int, total int64) {
	if len(evicted) > 0 {
		names := make([]string, len(evicted))
		for i, key := range evicted {
			names[i] = key.String()
		}
		c.log.Info("evicted cache entries to stay within budget",
			zap.Strings("keys", names),
			zap.Int64("bytes", total),
			zap.Int64("budget", c.cfg.MaxBytes),
		)
		monitoring.RecordCacheEviction(len(evicted))
	}
	monitoring.SetCacheUsage(entries, total)
}
