// Package stats keeps rolling latency aggregates for render operations.
package stats

import (
	"sort"
	"sync"
	"time"
)

// Operation names recorded by the HTTP layer.
const (
	OpCitations    = "citations"
	OpBibliography = "bibliography"
)

type observation struct {
	at      time.Time
	elapsed time.Duration
	failed  bool
}

// Snapshot aggregates the observations currently inside the window.
type Snapshot struct {
	Count  int     `json:"count"`
	Errors int     `json:"errors"`
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// Window holds observations younger than its maximum age.
type Window struct {
	mu     sync.Mutex
	obs    []observation
	maxAge time.Duration
	now    func() time.Time
}

func NewWindow(maxAge time.Duration) *Window {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Window{
		obs:    make([]observation, 0, 256),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Observe records one operation. Negative durations count as zero.
func (w *Window) Observe(elapsed time.Duration, failed bool) {
	if elapsed < 0 {
		elapsed = 0
	}
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	w.obs = append(w.obs, observation{at: now, elapsed: elapsed, failed: failed})
}

func (w *Window) Snapshot() Snapshot {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	if len(w.obs) == 0 {
		return Snapshot{}
	}

	values := make([]float64, 0, len(w.obs))
	var sum float64
	errs := 0
	for _, o := range w.obs {
		ms := float64(o.elapsed) / float64(time.Millisecond)
		values = append(values, ms)
		sum += ms
		if o.failed {
			errs++
		}
	}
	sort.Float64s(values)

	return Snapshot{
		Count:  len(values),
		Errors: errs,
		MinMs:  values[0],
		MaxMs:  values[len(values)-1],
		AvgMs:  sum / float64(len(values)),
		P50Ms:  percentile(values, 50),
		P95Ms:  percentile(values, 95),
		P99Ms:  percentile(values, 99),
	}
}

func (w *Window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.maxAge)
	keep := 0
	for _, o := range w.obs {
		if !o.at.Before(cutoff) {
			w.obs[keep] = o
			keep++
		}
	}
	w.obs = w.obs[:keep]
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []float64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return sorted[0]
	case pct >= 100:
		return sorted[len(sorted)-1]
	}

	idx := float64(len(sorted)-1) * pct / 100
	lower := int(idx)
	if lower+1 >= len(sorted) {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower] + (sorted[lower+1]-sorted[lower])*frac
}

// Recorder keeps one Window per operation name.
type Recorder struct {
	mu      sync.Mutex
	maxAge  time.Duration
	windows map[string]*Window
}

func NewRecorder(maxAge time.Duration) *Recorder {
	return &Recorder{maxAge: maxAge, windows: make(map[string]*Window)}
}

// Observe records one run of op.
func (r *Recorder) Observe(op string, elapsed time.Duration, failed bool) {
	r.window(op).Observe(elapsed, failed)
}

// Snapshot returns aggregates for every operation seen so far.
func (r *Recorder) Snapshot() map[string]Snapshot {
	r.mu.Lock()
	windows := make(map[string]*Window, len(r.windows))
	for op, w := range r.windows {
		windows[op] = w
	}
	r.mu.Unlock()

	out := make(map[string]Snapshot, len(windows))
	for op, w := range windows {
		out[op] = w.Snapshot()
	}
	return out
}

func (r *Recorder) window(op string) *Window {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[op]
	if !ok {
		w = NewWindow(r.maxAge)
		r.windows[op] = w
	}
	return w
}
