package observability

import (
	"math"
	"slices"
	"strings"
	"sync"
	"time"
)

// Target p95 per pipeline stage for one WhatsApp event, in milliseconds.
// Vision and synthesis calls dominate.
var stageTargetsMS = map[string]float64{
	"extract_summary": 12000,
	"verify":          15000,
	"answer":          10000,
	"transcribe":      4000,
	"translate":       3000,
	"synthesize":      8000,
	"event_total":     30000,
}

type StageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
	// OverTarget counts windowed samples slower than the target.
	OverTarget int `json:"over_target,omitempty"`
}

type Indicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type StageSnapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	WindowSize  int          `json:"window_size"`
	Stages      []StageStats `json:"stages"`
	Indicators  []Indicator  `json:"indicators,omitempty"`
}

// ring keeps the most recent samples of one stage.
type ring struct {
	values []float64
	size   int
	head   int
	last   float64
}

func (r *ring) add(v float64) {
	r.values[r.head] = v
	r.head = (r.head + 1) % len(r.values)
	if r.size < len(r.values) {
		r.size++
	}
	r.last = v
}

func (r *ring) sorted() []float64 {
	out := slices.Clone(r.values[:r.size])
	slices.Sort(out)
	return out
}

type stageWindow struct {
	mu         sync.Mutex
	capacity   int
	rings      map[string]*ring
	indicators map[string]int
}

func newStageWindow(capacity int) *stageWindow {
	if capacity <= 0 {
		capacity = 256
	}
	return &stageWindow{
		capacity:   capacity,
		rings:      map[string]*ring{},
		indicators: map[string]int{},
	}
}

func (w *stageWindow) Observe(stage string, ms float64) {
	if stage == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.rings[stage]
	if r == nil {
		r = &ring{values: make([]float64, w.capacity)}
		w.rings[stage] = r
	}
	r.add(ms)
}

func (w *stageWindow) ObserveIndicator(name string) {
	name = strings.TrimSpace(name)
	if w == nil || name == "" {
		return
	}
	w.mu.Lock()
	w.indicators[name]++
	w.mu.Unlock()
}

func (w *stageWindow) Snapshot() StageSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := StageSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.capacity,
		Stages:      make([]StageStats, 0, len(w.rings)),
	}
	for _, stage := range sortedKeys(w.rings) {
		if r := w.rings[stage]; r.size > 0 {
			snap.Stages = append(snap.Stages, summarize(stage, r))
		}
	}
	for _, name := range sortedKeys(w.indicators) {
		snap.Indicators = append(snap.Indicators, Indicator{Name: name, Count: w.indicators[name]})
	}
	return snap
}

func summarize(stage string, r *ring) StageStats {
	samples := r.sorted()
	target := stageTargetsMS[stage]
	var sum float64
	over := 0
	for _, v := range samples {
		sum += v
		if target > 0 && v > target {
			over++
		}
	}
	return StageStats{
		Stage:       stage,
		Samples:     len(samples),
		LastMS:      round2(r.last),
		AvgMS:       round2(sum / float64(len(samples))),
		P50MS:       round2(percentile(samples, 50)),
		P95MS:       round2(percentile(samples, 95)),
		P99MS:       round2(percentile(samples, 99)),
		TargetP95MS: target,
		OverTarget:  over,
	}
}

// percentile interpolates linearly between the closest ranks of a sorted
// sample set.
func percentile(sorted []float64, p float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[len(sorted)-1]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo, frac := math.Modf(rank)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[i]
	}
	return sorted[i] + (sorted[i+1]-sorted[i])*frac
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
