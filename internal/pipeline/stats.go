package pipeline

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
}

// StatsSnapshot is a point-in-time aggregate of export runs.
type StatsSnapshot struct {
	ExportsCompleted  int64 `json:"exports_completed"`
	ExportsFailed     int64 `json:"exports_failed"`
	DocumentsExported int64 `json:"documents_exported"`
	ResourcesEmbedded int64 `json:"resources_embedded"`
	RefErrors         int64 `json:"ref_errors"`

	// Latency of recent runs within the rolling window.
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// Stats tracks export run counters plus recent run latencies within a
// rolling window.
type Stats struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration

	exportsCompleted  int64
	exportsFailed     int64
	documentsExported int64
	resourcesEmbedded int64
	refErrors         int64
}

func NewStats(maxAge time.Duration) *Stats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Stats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// RecordRun folds one finished export run into the counters.
func (s *Stats) RecordRun(documents, resources, refErrors int, d time.Duration, ok bool) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ok {
		s.exportsCompleted++
	} else {
		s.exportsFailed++
	}
	s.documentsExported += int64(documents)
	s.resourcesEmbedded += int64(resources)
	s.refErrors += int64(refErrors)

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{
		timestamp:  now,
		durationMs: d.Milliseconds(),
	})
}

func (s *Stats) Snapshot() StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	snap := StatsSnapshot{
		ExportsCompleted:  s.exportsCompleted,
		ExportsFailed:     s.exportsFailed,
		DocumentsExported: s.documentsExported,
		ResourcesEmbedded: s.resourcesEmbedded,
		RefErrors:         s.refErrors,
	}
	if len(s.samples) == 0 {
		return snap
	}

	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	snap.Count = len(values)
	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	writeIdx := 0
	for _, sm := range s.samples {
		if !sm.timestamp.Before(cutoff) {
			s.samples[writeIdx] = sm
			writeIdx++
		}
	}
	s.samples = s.samples[:writeIdx]
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}
