package reader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/swdash/internal/cache"
	"github.com/charlesng35/swdash/internal/monitoring"
	"github.com/charlesng35/swdash/internal/snapshot"
	"github.com/charlesng35/swdash/internal/store"
)

// ErrIncrementalUnavailable reports that a table cannot be refreshed
// incrementally: no time column, or no timestamp in the previous snapshot.
var ErrIncrementalUnavailable = errors.New("reader: incremental load not possible")

// LoadIncremental refreshes prev by fetching only rows newer than its latest
// timestamp. Any failure falls back to a full load of the table. The result is
// not written to the cache.
func (r *Reader) LoadIncremental(ctx context.Context, table string, prev *snapshot.Snapshot) (*snapshot.Snapshot, error) {
	if r.gateway == nil {
		return nil, store.ErrStoreUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	snap, err := r.mergeSince(ctx, table, prev)
	if err == nil {
		return snap, nil
	}
	r.log.Debug("incremental load failed, running full load", zap.String("table", table), zap.Error(err))

	snap, err = r.full(ctx, table, 0)
	if err != nil {
		return snapshot.Empty(), nil
	}
	return snap, nil
}

func (r *Reader) incremental(ctx context.Context, table string, entry cache.Entry) (*snapshot.Snapshot, error) {
	prev, err := entry.Snapshot()
	if err != nil {
		return nil, err
	}
	return r.mergeSince(ctx, table, prev)
}

// mergeSince implements the incremental path without fallback.
func (r *Reader) mergeSince(ctx context.Context, table string, prev *snapshot.Snapshot) (*snapshot.Snapshot, error) {
	start := r.clock.Now()
	snap, err := r.doMergeSince(ctx, table, prev)
	if err != nil {
		monitoring.RecordTableLoad("incremental", "failure", err.Error(), r.clock.Since(start))
		return nil, err
	}
	monitoring.RecordTableLoad("incremental", "success", "", r.clock.Since(start))
	return snap, nil
}

func (r *Reader) doMergeSince(ctx context.Context, table string, prev *snapshot.Snapshot) (*snapshot.Snapshot, error) {
	if prev.IsEmpty() {
		return nil, fmt.Errorf("%w: previous snapshot is empty", ErrIncrementalUnavailable)
	}

	column, err := r.timeColumn(ctx, table, prev)
	if err != nil {
		return nil, err
	}

	local := strings.ToLower(column)
	since, ok := snapshot.MaxTime(prev, local)
	if !ok {
		return nil, fmt.Errorf("%w: no timestamps in column %q", ErrIncrementalUnavailable, local)
	}

	raw, err := r.gateway.QuerySince(ctx, table, column, since)
	if err != nil {
		return nil, err
	}

	fresh, warnings := snapshot.Normalize(raw)
	r.logWarnings(table, warnings)
	if fresh.IsEmpty() {
		return prev, nil
	}
	return snapshot.MergeByTime(prev, fresh, local)
}

// timeColumn resolves the catalog name of the table's time column. The
// snapshot's picked column is used when the catalog has it; otherwise the
// catalog's own best candidate.
func (r *Reader) timeColumn(ctx context.Context, table string, prev *snapshot.Snapshot) (string, error) {
	columns, err := r.gateway.Columns(ctx, table)
	if err != nil {
		return "", err
	}

	if picked, ok := snapshot.PickTimeColumn(prev); ok {
		for _, name := range columns {
			if strings.EqualFold(name, picked) {
				return name, nil
			}
		}
	}

	name, ok := snapshot.CatalogTimeColumn(columns)
	if !ok {
		return "", fmt.Errorf("%w: table %q has no time column", ErrIncrementalUnavailable, table)
	}
	return name, nil
}
