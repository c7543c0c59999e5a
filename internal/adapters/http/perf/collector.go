package perf

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the default capacity of the ring buffer.
const DefaultRingSize = 10000

// EntryKind distinguishes what was timed.
type EntryKind uint8

const (
	KindRequest EntryKind = iota // inbound page or form request
	KindQuery                    // sqlite statement
	KindBackend                  // outbound call to the recommendation backend
)

// Entry is a single timing record stored in the ring buffer.
type Entry struct {
	Kind       EntryKind
	Path       string // HTTP route, statement label, or backend endpoint
	StatusCode int    // 0 for queries and transport failures
	DurationMs float64
	Timestamp  time.Time
}

// Collector is a fixed-size ring buffer for timing entries.
// When full, the oldest entries are overwritten. Aggregation happens on read.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
	size    int
	pos     int
	count   int64
}

// NewCollector creates a collector with the given ring buffer capacity.
// PRE: none
// POST: returns a ready collector; size <= 0 uses DefaultRingSize
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{
		entries: make([]Entry, size),
		size:    size,
	}
}

// Record appends an entry to the ring buffer.
// POST: entry stored; if the buffer is full the oldest entry is overwritten
func (c *Collector) Record(e Entry) {
	c.mu.Lock()
	c.entries[c.pos] = e
	c.pos = (c.pos + 1) % c.size
	c.mu.Unlock()
	atomic.AddInt64(&c.count, 1)
}

// TotalRecorded returns the number of entries ever recorded.
func (c *Collector) TotalRecorded() int64 {
	return atomic.LoadInt64(&c.count)
}

// Snapshot holds aggregated performance data computed on read.
type Snapshot struct {
	TotalRecorded  int64
	RequestP50Ms   float64
	RequestP95Ms   float64
	RequestP99Ms   float64
	BackendP95Ms   float64
	BackendErrors  int // transport failures and 5xx replies in the window
	SlowestPaths   []PathStat
	SlowestQueries []PathStat
	SlowestBackend []PathStat
}

// PathStat aggregates timing for one path, statement, or endpoint.
type PathStat struct {
	Path    string
	AvgMs   float64
	MaxMs   float64
	Count   int
	TotalMs float64
}

type bucket struct {
	stats     map[string]*PathStat
	durations []float64
}

func (b *bucket) add(e Entry) {
	b.durations = append(b.durations, e.DurationMs)
	s, ok := b.stats[e.Path]
	if !ok {
		s = &PathStat{Path: e.Path}
		b.stats[e.Path] = s
	}
	s.Count++
	s.TotalMs += e.DurationMs
	if e.DurationMs > s.MaxMs {
		s.MaxMs = e.DurationMs
	}
}

// Snapshot computes aggregated stats over entries recorded at or after since.
// It sorts, so it belongs on the perf page only.
// PRE: topN >= 0
// POST: returns percentiles and the topN slowest entries per kind
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	c.mu.Lock()
	buf := make([]Entry, c.size)
	copy(buf, c.entries)
	c.mu.Unlock()

	buckets := map[EntryKind]*bucket{
		KindRequest: {stats: map[string]*PathStat{}},
		KindQuery:   {stats: map[string]*PathStat{}},
		KindBackend: {stats: map[string]*PathStat{}},
	}
	var backendErrors int

	for _, e := range buf {
		if e.Timestamp.IsZero() || e.Timestamp.Before(since) {
			continue
		}
		b, ok := buckets[e.Kind]
		if !ok {
			continue
		}
		b.add(e)
		if e.Kind == KindBackend && (e.StatusCode == 0 || e.StatusCode >= 500) {
			backendErrors++
		}
	}

	snap := Snapshot{
		TotalRecorded:  c.TotalRecorded(),
		BackendErrors:  backendErrors,
		SlowestPaths:   topByAvg(buckets[KindRequest].stats, topN),
		SlowestQueries: topByAvg(buckets[KindQuery].stats, topN),
		SlowestBackend: topByAvg(buckets[KindBackend].stats, topN),
	}

	if req := buckets[KindRequest].durations; len(req) > 0 {
		sort.Float64s(req)
		snap.RequestP50Ms = percentile(req, 50)
		snap.RequestP95Ms = percentile(req, 95)
		snap.RequestP99Ms = percentile(req, 99)
	}
	if be := buckets[KindBackend].durations; len(be) > 0 {
		sort.Float64s(be)
		snap.BackendP95Ms = percentile(be, 95)
	}
	return snap
}

// percentile returns the p-th percentile from a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper || upper >= len(sorted) {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// topByAvg returns the top n entries by average duration, slowest first.
func topByAvg(stats map[string]*PathStat, n int) []PathStat {
	list := make([]PathStat, 0, len(stats))
	for _, s := range stats {
		s.AvgMs = s.TotalMs / float64(s.Count)
		list = append(list, *s)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].AvgMs == list[j].AvgMs {
			return list[i].Path < list[j].Path
		}
		return list[i].AvgMs > list[j].AvgMs
	})
	if len(list) > n {
		list = list[:n]
	}
	return list
}
