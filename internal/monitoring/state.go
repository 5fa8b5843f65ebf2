package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type statStore struct {
	cacheHits      atomic.Uint64
	cacheMisses    atomic.Uint64
	cacheStale     atomic.Uint64
	cacheBypass    atomic.Uint64
	cacheEvictions atomic.Uint64
	cacheEntries   atomic.Int64
	cacheBytes     atomic.Int64

	loads    sync.Map // string -> *loadStats
	jobs     sync.Map // string -> *jobStats
	breakers sync.Map // string -> string
}

func newStatStore() *statStore {
	return &statStore{}
}

func (s *statStore) summary() Summary {
	hits := s.cacheHits.Load()
	misses := s.cacheMisses.Load()
	stale := s.cacheStale.Load()
	var ratio float64
	if total := hits + misses + stale; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	return Summary{
		GeneratedAt: time.Now(),
		Cache: CacheSummary{
			Hits:      hits,
			Misses:    misses,
			Stale:     stale,
			Bypassed:  s.cacheBypass.Load(),
			Evictions: s.cacheEvictions.Load(),
			Entries:   s.cacheEntries.Load(),
			Bytes:     s.cacheBytes.Load(),
			HitRatio:  ratio,
		},
		Loads: s.cloneLoads(),
		Refresh: RefreshSummary{
			Jobs: s.cloneJobs(),
		},
		Breakers: s.cloneBreakers(),
	}
}

func (s *statStore) recordLookup(result string) {
	switch result {
	case "hit":
		s.cacheHits.Add(1)
	case "stale":
		s.cacheStale.Add(1)
	case "bypass":
		s.cacheBypass.Add(1)
	default:
		s.cacheMisses.Add(1)
	}
}

func (s *statStore) cloneLoads() []LoadSummary {
	summaries := []LoadSummary{}
	s.loads.Range(func(key, value any) bool {
		summaries = append(summaries, value.(*loadStats).snapshot(key.(string)))
		return true
	})
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Mode < summaries[j].Mode })
	return summaries
}

func (s *statStore) cloneJobs() []RefreshJobSummary {
	summaries := []RefreshJobSummary{}
	s.jobs.Range(func(key, value any) bool {
		summaries = append(summaries, value.(*jobStats).snapshot(key.(string)))
		return true
	})
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Job < summaries[j].Job })
	return summaries
}

func (s *statStore) cloneBreakers() map[string]string {
	out := map[string]string{}
	s.breakers.Range(func(key, value any) bool {
		out[key.(string)] = value.(string)
		return true
	})
	return out
}

func (s *statStore) loadEntry(mode string) *loadStats {
	value, ok := s.loads.Load(mode)
	if ok {
		return value.(*loadStats)
	}
	actual, _ := s.loads.LoadOrStore(mode, &loadStats{})
	return actual.(*loadStats)
}

func (s *statStore) jobEntry(job string) *jobStats {
	value, ok := s.jobs.Load(job)
	if ok {
		return value.(*jobStats)
	}
	actual, _ := s.jobs.LoadOrStore(job, &jobStats{})
	return actual.(*jobStats)
}

type jobStats struct {
	lastStatus           atomic.Value // string
	lastError            atomic.Value // string
	lastRun              atomic.Int64 // unix nano
	lastDuration         atomic.Int64 // nanoseconds
	consecutiveFailures  atomic.Uint64
	totalRuns            atomic.Uint64
	lastSuccessfulRun    atomic.Int64
	consecutiveSuccesses atomic.Uint64
}

func (j *jobStats) snapshot(job string) RefreshJobSummary {
	status, _ := j.lastStatus.Load().(string)
	errMsg, _ := j.lastError.Load().(string)

	return RefreshJobSummary{
		Job:                 job,
		LastStatus:          status,
		LastRunAt:           unixOrZero(j.lastRun.Load()),
		LastDuration:        time.Duration(j.lastDuration.Load()),
		LastError:           errMsg,
		ConsecutiveFailures: j.consecutiveFailures.Load(),
		ConsecutiveSuccess:  j.consecutiveSuccesses.Load(),
		LastSuccessAt:       unixOrZero(j.lastSuccessfulRun.Load()),
		TotalRuns:           j.totalRuns.Load(),
	}
}

func (j *jobStats) record(result, message string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	now := time.Now()
	j.lastStatus.Store(result)
	j.lastError.Store(message)
	j.lastRun.Store(now.UnixNano())
	j.lastDuration.Store(int64(duration))
	j.totalRuns.Add(1)

	switch result {
	case "success":
		j.consecutiveFailures.Store(0)
		j.consecutiveSuccesses.Add(1)
		j.lastSuccessfulRun.Store(now.UnixNano())
	default:
		j.consecutiveFailures.Add(1)
		j.consecutiveSuccesses.Store(0)
	}
}

type loadStats struct {
	success        atomic.Uint64
	failure        atomic.Uint64
	lastStatus     atomic.Value // string
	lastError      atomic.Value // string
	lastDuration   atomic.Int64
	lastCompleted  atomic.Int64
	totalLatencyNs atomic.Uint64
	total          atomic.Uint64
}

func (l *loadStats) snapshot(mode string) LoadSummary {
	status, _ := l.lastStatus.Load().(string)
	errMsg, _ := l.lastError.Load().(string)
	total := l.total.Load()

	var avg float64
	if total > 0 {
		avg = float64(l.totalLatencyNs.Load()) / float64(total) / float64(time.Second)
	}

	return LoadSummary{
		Mode:                  mode,
		Success:               l.success.Load(),
		Failure:               l.failure.Load(),
		LastStatus:            status,
		LastDuration:          time.Duration(l.lastDuration.Load()),
		LastCompletedAt:       unixOrZero(l.lastCompleted.Load()),
		LastError:             errMsg,
		AverageLatencySeconds: avg,
	}
}

func (l *loadStats) record(result, message string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	if result == "success" {
		l.success.Add(1)
	} else {
		l.failure.Add(1)
	}

	l.lastStatus.Store(result)
	l.lastError.Store(message)
	l.lastDuration.Store(int64(duration))
	l.lastCompleted.Store(time.Now().UnixNano())
	l.total.Add(1)
	l.totalLatencyNs.Add(uint64(duration))
}

func unixOrZero(nanos int64) time.Time {
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}
