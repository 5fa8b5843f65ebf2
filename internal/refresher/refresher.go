// Package refresher keeps warm cache entries fresh in the background.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/swdash/internal/models"
	"github.com/charlesng35/swdash/internal/monitoring"
	"github.com/charlesng35/swdash/pkg/logger"
)

const (
	// JobName labels refresher metrics and history.
	JobName = "refresher"

	defaultTick = time.Minute
)

// Per-table results recorded for each pass.
const (
	ResultRefreshed = "refreshed"
	ResultSkipped   = "skipped"
	ResultFailed    = "failed"
)

// TableReader is the slice of the read path the refresher drives.
type TableReader interface {
	Available() bool
	ListTables(ctx context.Context) ([]string, error)
	CachedAt(table string) (time.Time, bool)
	Refresh(ctx context.Context, table string) (string, error)
}

// State is the refresher lifecycle state.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Refresher periodically force-refreshes tables that already have a cache
// entry once the entry is older than the table category's interval. It never
// performs the first load of a table.
type Refresher struct {
	reader    TableReader
	cron      *cron.Cron
	clock     clockwork.Clock
	log       *zap.Logger
	tick      time.Duration
	intervals Intervals
	recorder  Recorder

	mu      sync.Mutex
	state   State
	tables  []tableCategory
	cancel  context.CancelFunc
	entryID cron.EntryID
}

type tableCategory struct {
	table    string
	category Category
}

// Option customises the Refresher.
type Option func(*Refresher)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Refresher) {
		if c != nil {
			r.cron = c
		}
	}
}

// WithClock overrides the clock used for due-time comparisons.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Refresher) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithTick sets how often a pass runs.
func WithTick(d time.Duration) Option {
	return func(r *Refresher) {
		if d >= time.Second {
			r.tick = d
		}
	}
}

// WithIntervals overrides the per-category refresh intervals.
func WithIntervals(i Intervals) Option {
	return func(r *Refresher) {
		r.intervals = i.withDefaults()
	}
}

// WithRecorder persists every pass that touched at least one table.
func WithRecorder(rec Recorder) Option {
	return func(r *Refresher) {
		r.recorder = rec
	}
}

// New constructs a stopped Refresher.
func New(reader TableReader, opts ...Option) *Refresher {
	r := &Refresher{
		reader:    reader,
		clock:     clockwork.NewRealClock(),
		log:       logger.WithModule("refresher"),
		tick:      defaultTick,
		intervals: DefaultIntervals(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cron == nil {
		r.cron = cron.New(
			cron.WithLogger(newCronLogger(r.log)),
			cron.WithChain(cron.SkipIfStillRunning(newCronLogger(r.log))),
		)
	}
	return r
}

// State reports whether the refresher loop is running.
func (r *Refresher) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start categorises the current tables and schedules a pass every tick.
// Passes stop once ctx is cancelled or Stop is called. Without a configured
// store the refresher stays stopped.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Running {
		return nil
	}
	if r.reader == nil || !r.reader.Available() {
		r.log.Info("background refresh not started: store unavailable")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	tables, err := r.categorize(runCtx)
	if err != nil {
		// Retried on the first pass.
		r.log.Warn("table categorisation failed", zap.Error(err))
	}
	r.tables = tables

	id, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.tick), func() {
		if err := r.RunOnce(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Warn("refresh pass finished with errors", zap.Error(err))
		}
	})
	if err != nil {
		cancel()
		return fmt.Errorf("schedule refresher: %w", err)
	}

	r.entryID = id
	r.cancel = cancel
	r.state = Running
	r.cron.Start()

	r.log.Info("background refresh started",
		zap.Duration("tick", r.tick),
		zap.Int("tables", len(tables)),
	)
	return nil
}

// Stop cancels the running pass, halts the scheduler and returns a context
// that is done once any in-flight pass has returned.
func (r *Refresher) Stop() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Running {
		return closedContext()
	}
	r.cancel()
	r.cron.Remove(r.entryID)
	r.state = Stopped
	return r.cron.Stop()
}

// RunOnce runs a single pass: every due table with a cache entry is refreshed.
// Failures of individual tables are collected and never stop the pass.
func (r *Refresher) RunOnce(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tables, err := r.knownTables(ctx)
	if err != nil {
		monitoring.RecordRefreshRun(JobName, "failure", err.Error(), 0)
		return err
	}

	started := r.clock.Now()
	var (
		errs     error
		outcomes []TableOutcome
		counts   = map[string]int{}
	)

	for _, tc := range tables {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		if !r.ShouldRefresh(tc.table, tc.category) {
			counts[ResultSkipped]++
			monitoring.RecordRefreshTable(string(tc.category), ResultSkipped)
			continue
		}

		outcome := TableOutcome{Table: tc.table, Category: tc.category, Result: ResultRefreshed}
		mode, err := r.reader.Refresh(ctx, tc.table)
		outcome.Mode = mode
		if err != nil {
			outcome.Result = ResultFailed
			outcome.Error = err.Error()
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", tc.table, err))
			r.log.Warn("table refresh failed",
				zap.String("table", tc.table),
				zap.String("category", string(tc.category)),
				zap.Error(err),
			)
		} else {
			r.log.Debug("table refreshed",
				zap.String("table", tc.table),
				zap.String("mode", mode),
			)
		}
		counts[outcome.Result]++
		outcomes = append(outcomes, outcome)
		monitoring.RecordRefreshTable(string(tc.category), outcome.Result)
	}

	duration := r.clock.Since(started)
	result, message := "success", ""
	if errs != nil {
		result, message = "failure", errs.Error()
	}
	monitoring.RecordRefreshRun(JobName, result, message, duration)

	if len(outcomes) > 0 {
		if err := r.record(ctx, started, counts, outcomes, errs); err != nil {
			r.log.Warn("refresh history not recorded", zap.Error(err))
		}
	}
	return errs
}

// ShouldRefresh reports whether table has a cache entry older than its
// category's interval.
func (r *Refresher) ShouldRefresh(table string, category Category) bool {
	capturedAt, ok := r.reader.CachedAt(table)
	if !ok {
		return false
	}
	return r.clock.Since(capturedAt) > r.intervals.For(category)
}

// Tables returns the categorised table list computed at start.
func (r *Refresher) Tables() map[string]Category {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Category, len(r.tables))
	for _, tc := range r.tables {
		out[tc.table] = tc.category
	}
	return out
}

func (r *Refresher) knownTables(ctx context.Context) ([]tableCategory, error) {
	r.mu.Lock()
	tables := r.tables
	r.mu.Unlock()
	if len(tables) > 0 {
		return tables, nil
	}

	tables, err := r.categorize(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.tables = tables
	r.mu.Unlock()
	return tables, nil
}

func (r *Refresher) categorize(ctx context.Context) ([]tableCategory, error) {
	names, err := r.reader.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	out := make([]tableCategory, 0, len(names))
	for _, name := range names {
		out = append(out, tableCategory{table: name, category: Categorize(name)})
	}
	return out, nil
}

func (r *Refresher) record(ctx context.Context, started time.Time, counts map[string]int, outcomes []TableOutcome, runErr error) error {
	if r.recorder == nil {
		return nil
	}
	tables, err := encodeOutcomes(outcomes)
	if err != nil {
		return err
	}

	status := models.RefreshRunSucceeded
	switch {
	case counts[ResultFailed] > 0 && counts[ResultRefreshed] == 0:
		status = models.RefreshRunFailed
	case counts[ResultFailed] > 0:
		status = models.RefreshRunPartial
	}

	run := &models.RefreshRun{
		StartedAt:  started,
		FinishedAt: r.clock.Now(),
		Status:     status,
		Refreshed:  counts[ResultRefreshed],
		Skipped:    counts[ResultSkipped],
		Failed:     counts[ResultFailed],
		Tables:     tables,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	return r.recorder.Record(context.WithoutCancel(ctx), run)
}

func closedContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
