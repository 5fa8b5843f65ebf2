package reader

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/swdash/internal/snapshot"
	"github.com/charlesng35/swdash/internal/store"
)

// ListTables returns the store's table identifiers in listing order. A
// successful listing is remembered for HasTable.
func (r *Reader) ListTables(ctx context.Context) ([]string, error) {
	if r.gateway == nil {
		return nil, store.ErrStoreUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	tables, err := r.gateway.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	r.listMu.Lock()
	r.listing = slices.Clone(tables)
	r.listMu.Unlock()
	return tables, nil
}

// HasTable reports whether table may be read. A table with a cache entry is
// known without asking the store. Otherwise the store is listed; when that
// fails, the last successful listing answers and the error is returned only
// if the table was never listed.
func (r *Reader) HasTable(ctx context.Context, table string) (bool, error) {
	if r.cache.HasTable(table) {
		return true, nil
	}

	tables, err := r.ListTables(ctx)
	if err != nil {
		if r.listed(table) {
			return true, nil
		}
		return false, err
	}
	return slices.Contains(tables, table), nil
}

func (r *Reader) listed(table string) bool {
	r.listMu.Lock()
	defer r.listMu.Unlock()
	return slices.Contains(r.listing, table)
}

// FindTableLike returns the first table, in listing order, whose lower-cased
// name contains every keyword. Keywords are matched case-insensitively.
func (r *Reader) FindTableLike(ctx context.Context, keywords ...string) (string, bool, error) {
	tables, err := r.ListTables(ctx)
	if err != nil {
		return "", false, err
	}
	name, ok := MatchTable(tables, keywords)
	return name, ok, nil
}

// MatchTable applies the FindTableLike rule to an explicit listing.
func MatchTable(tables, keywords []string) (string, bool) {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		lowered = append(lowered, strings.ToLower(kw))
	}

	for _, name := range tables {
		candidate := strings.ToLower(name)
		matched := true
		for _, kw := range lowered {
			if !strings.Contains(candidate, kw) {
				matched = false
				break
			}
		}
		if matched {
			return name, true
		}
	}
	return "", false
}

// PickTimeColumn exposes the normaliser's time-column choice to consumers.
func (r *Reader) PickTimeColumn(snap *snapshot.Snapshot) (string, bool) {
	return snapshot.PickTimeColumn(snap)
}

// ClearCache drops every cached bucket of table, or the whole cache when
// table is empty. It returns the number of entries removed.
func (r *Reader) ClearCache(table string) int {
	table = strings.TrimSpace(table)
	var removed int
	if table == "" {
		removed = r.cache.Clear()
	} else {
		removed = r.cache.InvalidateTable(table)
	}
	r.log.Info("cache cleared", zap.String("table", table), zap.Int("entries", removed))
	return removed
}

// CachedAt returns the capture time of the uncapped entry for table.
func (r *Reader) CachedAt(table string) (time.Time, bool) {
	entry, ok := r.cache.Get(r.cache.KeyFor(table, 0))
	if !ok {
		return time.Time{}, false
	}
	return entry.CapturedAt, true
}

// Refresh force-reloads the uncapped entry for table and reports store
// failures instead of absorbing them. It returns the load mode used.
func (r *Reader) Refresh(ctx context.Context, table string) (string, error) {
	if r.gateway == nil {
		return "", store.ErrStoreUnavailable
	}
	o := defaultReadOptions()
	o.forceRefresh = true

	key := r.cache.KeyFor(table, 0)
	res, err := r.load(ctx, key, r.generation(key), o)
	if err != nil {
		return "", err
	}
	if res.cause != nil {
		return res.mode, fmt.Errorf("refresh %s: %w", table, res.cause)
	}
	return res.mode, nil
}

// Now reports the reader's clock.
func (r *Reader) Now() time.Time {
	return r.clock.Now()
}
