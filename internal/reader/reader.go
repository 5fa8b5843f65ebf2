// Package reader serves table snapshots from the cache, loading them from the
// store on a miss and refreshing warm entries incrementally.
package reader

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/charlesng35/swdash/internal/cache"
	"github.com/charlesng35/swdash/internal/monitoring"
	"github.com/charlesng35/swdash/internal/snapshot"
	"github.com/charlesng35/swdash/internal/store"
	"github.com/charlesng35/swdash/pkg/logger"
)

// Reader is the read path for table snapshots. It is safe for concurrent use.
type Reader struct {
	gateway      store.Gateway
	cache        *cache.TableCache
	group        singleflight.Group
	genMu        sync.Mutex
	generations  map[cache.Key]uint64
	listMu       sync.Mutex
	listing      []string
	clock        clockwork.Clock
	queryTimeout time.Duration
	log          *zap.Logger
}

// New constructs a Reader. A nil gateway means the store is not configured:
// loads fail with store.ErrStoreUnavailable while cached entries keep being
// served.
func New(gateway store.Gateway, tables *cache.TableCache, opts ...Option) *Reader {
	if tables == nil {
		tables = cache.New(cache.Config{})
	}
	r := &Reader{
		gateway:      gateway,
		cache:        tables,
		generations:  make(map[cache.Key]uint64),
		clock:        clockwork.NewRealClock(),
		queryTimeout: DefaultQueryTimeout,
		log:          logger.WithModule("reader"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Available reports whether a store gateway is configured.
func (r *Reader) Available() bool {
	return r.gateway != nil
}

// Cache exposes the underlying table cache.
func (r *Reader) Cache() *cache.TableCache {
	return r.cache
}

// ReadTable returns the snapshot for table.
//
// A fresh cache entry is returned without touching the store. Otherwise the
// table is loaded, normalised and written back. Store failures during a load
// yield an empty snapshot and a nil error; the only error returned for a load
// is store.ErrStoreUnavailable, and then only when nothing is cached. An empty
// table name yields an empty snapshot.
func (r *Reader) ReadTable(ctx context.Context, table string, opts ...ReadOption) (*snapshot.Snapshot, error) {
	o := defaultReadOptions()
	for _, opt := range opts {
		opt(&o)
	}

	table = strings.TrimSpace(table)
	if table == "" {
		return snapshot.Empty(), nil
	}

	key := r.cache.KeyFor(table, o.rowCap)
	gen := r.generation(key)

	if o.useCache && !o.forceRefresh {
		if snap, ok := r.lookup(key, o.ttl); ok {
			return snap, nil
		}
	} else {
		monitoring.RecordCacheLookup("bypass")
	}

	if r.gateway == nil {
		if o.useCache {
			if snap, ok := r.stale(key); ok {
				return snap, nil
			}
		}
		return nil, store.ErrStoreUnavailable
	}

	res, err := r.load(ctx, key, gen, o)
	if err != nil {
		return nil, err
	}
	return res.snap, nil
}

// lookup returns a copy of the entry under key when it is within ttl.
func (r *Reader) lookup(key cache.Key, ttl time.Duration) (*snapshot.Snapshot, bool) {
	entry, ok := r.cache.Get(key)
	if !ok {
		monitoring.RecordCacheLookup("miss")
		return nil, false
	}
	if ttl > 0 && entry.Age(r.clock.Now()) > ttl {
		monitoring.RecordCacheLookup("stale")
		return nil, false
	}

	snap, err := entry.Snapshot()
	if err != nil {
		r.dropCorrupt(key, err)
		monitoring.RecordCacheLookup("miss")
		return nil, false
	}
	monitoring.RecordCacheLookup("hit")
	return snap, true
}

// stale returns whatever is cached under key regardless of age.
func (r *Reader) stale(key cache.Key) (*snapshot.Snapshot, bool) {
	entry, ok := r.cache.Get(key)
	if !ok {
		return nil, false
	}
	snap, err := entry.Snapshot()
	if err != nil {
		r.dropCorrupt(key, err)
		return nil, false
	}
	return snap, true
}

func (r *Reader) dropCorrupt(key cache.Key, err error) {
	r.log.Warn("dropping unreadable cache entry", zap.String("key", key.String()), zap.Error(err))
	r.cache.Invalidate(key)
}

// loadResult carries a load outcome. err is returned to callers; cause is a
// store failure that ReadTable absorbs into an empty snapshot.
type loadResult struct {
	snap  *snapshot.Snapshot
	mode  string
	err   error
	cause error
}

// load runs one store load per key at a time. Concurrent callers for the
// same key wait for the in-flight load and receive their own copy of its
// result. The load itself is detached from any single caller's cancellation
// and bounded by the query timeout instead.
func (r *Reader) load(ctx context.Context, key cache.Key, gen uint64, o readOptions) (loadResult, error) {
	flightKey := key.String()
	if !o.useCache {
		flightKey = "nocache|" + flightKey
	}

	ch := r.group.DoChan(flightKey, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.queryTimeout)
		defer cancel()
		return r.loadAndStore(loadCtx, key, gen, o), nil
	})

	select {
	case <-ctx.Done():
		return loadResult{}, ctx.Err()
	case res := <-ch:
		out := res.Val.(loadResult)
		if out.err != nil {
			return out, out.err
		}
		if res.Shared {
			out.snap = out.snap.Clone()
		}
		return out, nil
	}
}

func (r *Reader) loadAndStore(ctx context.Context, key cache.Key, gen uint64, o readOptions) loadResult {
	// A load for this key finished after the caller looked at the cache:
	// hand out that result instead of querying again.
	if o.useCache && r.generation(key) != gen {
		if entry, ok := r.cache.Get(key); ok {
			if snap, err := entry.Snapshot(); err == nil {
				return loadResult{snap: snap, mode: "coalesced"}
			}
		}
	}

	if o.forceRefresh && o.useCache && o.rowCap == 0 {
		if entry, ok := r.cache.Get(key); ok {
			snap, err := r.incremental(ctx, key.Table, entry)
			if err == nil {
				r.store(key, snap)
				return loadResult{snap: snap, mode: "incremental"}
			}
			r.log.Debug("incremental refresh not used, falling back to full load",
				zap.String("table", key.Table),
				zap.Error(err),
			)
		}
	}

	snap, err := r.full(ctx, key.Table, o.rowCap)
	if err != nil {
		if errors.Is(err, store.ErrStoreUnavailable) {
			return loadResult{err: err}
		}
		r.log.Warn("table load failed, returning empty snapshot",
			zap.String("table", key.Table),
			zap.Error(err),
		)
		return loadResult{snap: snapshot.Empty(), mode: "full", cause: err}
	}

	if o.useCache {
		r.store(key, snap)
	}
	return loadResult{snap: snap, mode: "full"}
}

func (r *Reader) store(key cache.Key, snap *snapshot.Snapshot) {
	if err := r.cache.Put(key, snap, r.clock.Now()); err != nil {
		r.log.Warn("cache write failed", zap.String("key", key.String()), zap.Error(err))
		return
	}
	r.genMu.Lock()
	r.generations[key]++
	r.genMu.Unlock()
}

// generation counts completed writes for key.
func (r *Reader) generation(key cache.Key) uint64 {
	r.genMu.Lock()
	defer r.genMu.Unlock()
	return r.generations[key]
}

// full queries the whole table (or its first rowCap rows) and normalises it.
func (r *Reader) full(ctx context.Context, table string, rowCap int) (*snapshot.Snapshot, error) {
	start := r.clock.Now()
	raw, err := r.gateway.Query(ctx, table, rowCap)
	if err != nil {
		monitoring.RecordTableLoad("full", "failure", err.Error(), r.clock.Since(start))
		return nil, err
	}

	snap, warnings := snapshot.Normalize(raw)
	r.logWarnings(table, warnings)
	monitoring.RecordTableLoad("full", "success", "", r.clock.Since(start))
	return snap, nil
}

func (r *Reader) logWarnings(table string, warnings []snapshot.NormalizationWarning) {
	for _, w := range warnings {
		r.log.Debug("column left unparsed",
			zap.String("table", table),
			zap.String("column", w.Column),
			zap.Error(w.Err),
		)
	}
}
