package metrics

import (
	"sync"
	"time"

	"vitals_backend/detection"
)

// DefaultRecentCapacity is how many runs Snapshot lists by default.
const DefaultRecentCapacity = 50

// StoreConfig configures a Store.
type StoreConfig struct {
	// RecentCapacity is the size of the recent-runs ring.
	RecentCapacity int
	// Version is reported in snapshots.
	Version string
}

// DefaultStoreConfig returns the default configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		RecentCapacity: DefaultRecentCapacity,
		Version:        "dev",
	}
}

type methodTotals struct {
	count         int64
	success       int64
	totalDuration time.Duration
	maxDuration   time.Duration
	errors        map[detection.ErrorKind]int64
}

// Store aggregates RunRecords. It is safe for concurrent use.
//
//	store := metrics.NewStore(metrics.DefaultStoreConfig(), time.Now())
//	detector = metrics.InstrumentDetector(detector, store)
//	snap := store.Snapshot()
type Store struct {
	mu sync.RWMutex

	recent []RunRecord
	head   int
	size   int

	totalRuns    int64
	totalSuccess int64
	totalNoFace  int64
	totalErrors  int64
	byMethod     map[detection.Method]*methodTotals

	startTime time.Time
	version   string
	now       func() time.Time
}

// NewStore creates a Store. startTime is the uptime origin.
func NewStore(config StoreConfig, startTime time.Time) *Store {
	capacity := config.RecentCapacity
	if capacity < 1 {
		capacity = DefaultRecentCapacity
	}
	return &Store{
		recent:    make([]RunRecord, capacity),
		byMethod:  make(map[detection.Method]*methodTotals),
		startTime: startTime,
		version:   config.Version,
		now:       time.Now,
	}
}

// Record adds one run.
func (s *Store) Record(rec RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent[s.head] = rec
	s.head = (s.head + 1) % len(s.recent)
	if s.size < len(s.recent) {
		s.size++
	}

	s.totalRuns++
	t, ok := s.byMethod[rec.Method]
	if !ok {
		t = &methodTotals{}
		s.byMethod[rec.Method] = t
	}
	t.count++
	t.totalDuration += rec.Duration
	t.maxDuration = max(t.maxDuration, rec.Duration)

	switch rec.Outcome {
	case OutcomeSuccess:
		s.totalSuccess++
		t.success++
	case OutcomeNoFace:
		s.totalNoFace++
	default:
		s.totalErrors++
		if t.errors == nil {
			t.errors = make(map[detection.ErrorKind]int64)
		}
		kind := rec.ErrorKind
		if kind == "" {
			kind = detection.KindUnknown
		}
		t.errors[kind]++
	}
}

// Recent returns up to limit runs, most recent first.
func (s *Store) Recent(limit int) []RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recentLocked(limit)
}

func (s *Store) recentLocked(limit int) []RunRecord {
	if limit <= 0 || s.size == 0 {
		return []RunRecord{}
	}
	limit = min(limit, s.size)
	out := make([]RunRecord, limit)
	for i := 0; i < limit; i++ {
		idx := (s.head - 1 - i + len(s.recent)) % len(s.recent)
		out[i] = s.recent[idx]
	}
	return out
}

// Snapshot copies the aggregates and the recent runs.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Version:      s.version,
		Uptime:       s.now().Sub(s.startTime),
		TotalRuns:    s.totalRuns,
		TotalSuccess: s.totalSuccess,
		TotalNoFace:  s.totalNoFace,
		TotalErrors:  s.totalErrors,
		ByMethod:     make(map[detection.Method]*MethodStats, len(s.byMethod)),
		Recent:       s.recentLocked(s.size),
	}
	for m, t := range s.byMethod {
		stats := &MethodStats{
			Count:       t.count,
			MaxDuration: t.maxDuration,
		}
		if t.count > 0 {
			stats.SuccessRate = float64(t.success) / float64(t.count) * 100
			stats.AvgDuration = t.totalDuration / time.Duration(t.count)
		}
		if len(t.errors) > 0 {
			stats.Errors = make(map[detection.ErrorKind]int64, len(t.errors))
			for k, v := range t.errors {
				stats.Errors[k] = v
			}
		}
		snap.ByMethod[m] = stats
	}
	return snap
}
