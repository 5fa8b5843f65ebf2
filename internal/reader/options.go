package reader

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultQueryTimeout bounds every store call made by the reader.
const DefaultQueryTimeout = 30 * time.Second

// Option customises a Reader.
type Option func(*Reader)

// WithClock injects the clock used for capture times and TTL checks.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Reader) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithQueryTimeout overrides DefaultQueryTimeout.
func WithQueryTimeout(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.queryTimeout = d
		}
	}
}

// WithLogger overrides the module logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Reader) {
		if log != nil {
			r.log = log
		}
	}
}

// ReadOption adjusts a single ReadTable call.
type ReadOption func(*readOptions)

type readOptions struct {
	rowCap       int
	useCache     bool
	ttl          time.Duration
	forceRefresh bool
}

func defaultReadOptions() readOptions {
	return readOptions{useCache: true}
}

// WithRowCap limits a full load to n rows. Zero means uncapped.
func WithRowCap(n int) ReadOption {
	return func(o *readOptions) {
		if n > 0 {
			o.rowCap = n
		}
	}
}

// WithTTL treats cached entries older than ttl as stale. Without it a cached
// entry stays valid until refreshed or evicted.
func WithTTL(ttl time.Duration) ReadOption {
	return func(o *readOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithoutCache skips both the cache lookup and the write-back.
func WithoutCache() ReadOption {
	return func(o *readOptions) {
		o.useCache = false
	}
}

// WithForceRefresh bypasses the cache lookup and reloads from the store,
// incrementally when a cached uncapped snapshot exists.
func WithForceRefresh() ReadOption {
	return func(o *readOptions) {
		o.forceRefresh = true
	}
}
