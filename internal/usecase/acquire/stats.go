package acquire

import (
	"sync"
	"time"
)

// SourceAttemptRecord is one completed source attempt in the rolling window.
type SourceAttemptRecord struct {
	Source    string
	Verb      string
	Success   bool
	Latency   time.Duration
	ErrorKind string
	At        time.Time
}

// SourceStats aggregates the rolling window for one source.
type SourceStats struct {
	Attempts    int
	Successes   int
	SuccessRate float64
	MeanLatency time.Duration
}

// attemptRing is a fixed-size ring of the most recent attempts. Once full,
// new records overwrite the oldest.
type attemptRing struct {
	mu      sync.Mutex
	records []SourceAttemptRecord
	next    int
	full    bool
}

func newAttemptRing(size int) *attemptRing {
	return &attemptRing{records: make([]SourceAttemptRecord, size)}
}

// Add appends a record, evicting the oldest when the ring is full.
func (r *attemptRing) Add(rec SourceAttemptRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[r.next] = rec
	r.next++
	if r.next == len(r.records) {
		r.next = 0
		r.full = true
	}
}

// Len returns the number of records currently held.
func (r *attemptRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.records)
	}
	return r.next
}

// PerSource aggregates the window into per-source stats.
func (r *attemptRing) PerSource() map[string]SourceStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	type acc struct {
		attempts  int
		successes int
		latency   time.Duration
	}
	accs := make(map[string]*acc)

	n := r.next
	if r.full {
		n = len(r.records)
	}
	for i := 0; i < n; i++ {
		rec := r.records[i]
		a := accs[rec.Source]
		if a == nil {
			a = &acc{}
			accs[rec.Source] = a
		}
		a.attempts++
		if rec.Success {
			a.successes++
		}
		a.latency += rec.Latency
	}

	out := make(map[string]SourceStats, len(accs))
	for name, a := range accs {
		s := SourceStats{Attempts: a.attempts, Successes: a.successes}
		s.SuccessRate = float64(a.successes) / float64(a.attempts)
		s.MeanLatency = a.latency / time.Duration(a.attempts)
		out[name] = s
	}
	return out
}

// OverallSuccessRate returns the success ratio across all sources, and
// whether the window has any records at all.
func (r *attemptRing) OverallSuccessRate() (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.next
	if r.full {
		n = len(r.records)
	}
	if n == 0 {
		return 0, false
	}

	successes := 0
	for i := 0; i < n; i++ {
		if r.records[i].Success {
			successes++
		}
	}
	return float64(successes) / float64(n), true
}
