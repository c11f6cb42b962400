package observability

import (
	"math"
	"slices"
	"sort"
	"sync"
	"time"
)

// TurnSample is one finished assistant turn as seen by the latency report.
type TurnSample struct {
	Matched    bool
	Category   string
	Score      float64
	Confidence int
	Words      int
	Think      time.Duration
	Reveal     time.Duration
	Total      time.Duration
}

// PacingBudget is what the configured delays allow. Zero fields disable the check.
type PacingBudget struct {
	ThinkMax         time.Duration
	RevealPerWordMax time.Duration
}

type StageStats struct {
	Stage      string  `json:"stage"`
	Samples    int     `json:"samples"`
	LastMS     float64 `json:"last_ms"`
	AvgMS      float64 `json:"avg_ms"`
	P50MS      float64 `json:"p50_ms"`
	P95MS      float64 `json:"p95_ms"`
	MaxMS      float64 `json:"max_ms"`
	BudgetMS   float64 `json:"budget_ms,omitempty"`
	OverBudget int     `json:"over_budget"`
}

type CategoryStats struct {
	Category      string  `json:"category"`
	Turns         int     `json:"turns"`
	AvgConfidence float64 `json:"avg_confidence"`
}

type TurnWindowSnapshot struct {
	GeneratedAt time.Time       `json:"generated_at"`
	WindowSize  int             `json:"window_size"`
	Turns       int             `json:"turns"`
	Fallbacks   int             `json:"fallbacks"`
	MatchRate   float64         `json:"match_rate"`
	Stages      []StageStats    `json:"stages"`
	Categories  []CategoryStats `json:"categories"`
}

// Sleeps overshoot by scheduler noise; a turn is only over budget past this.
const budgetSlack = 50 * time.Millisecond

type turnStage struct {
	name string
	// value returns the stage duration, or false when the turn has none.
	value func(TurnSample) (time.Duration, bool)
	// budget returns the allowed duration for one sample, or 0 for no limit.
	budget func(PacingBudget, TurnSample) time.Duration
	// perSample budgets depend on the turn and are not reported as one figure.
	perSample bool
}

var turnStages = []turnStage{
	{
		name:   "think",
		value:  func(s TurnSample) (time.Duration, bool) { return s.Think, true },
		budget: func(b PacingBudget, _ TurnSample) time.Duration { return b.ThinkMax },
	},
	{
		name: "reveal_per_word",
		value: func(s TurnSample) (time.Duration, bool) {
			if s.Words < 2 {
				return 0, false
			}
			return s.Reveal / time.Duration(s.Words-1), true
		},
		budget: func(b PacingBudget, _ TurnSample) time.Duration { return b.RevealPerWordMax },
	},
	{
		name:      "total",
		perSample: true,
		value: func(s TurnSample) (time.Duration, bool) { return s.Total, true },
		budget: func(b PacingBudget, s TurnSample) time.Duration {
			if b.ThinkMax == 0 || b.RevealPerWordMax == 0 {
				return 0
			}
			return b.ThinkMax + b.RevealPerWordMax*time.Duration(max(s.Words-1, 0))
		},
	},
}

// turnWindow keeps the most recent turns in a ring.
type turnWindow struct {
	mu      sync.Mutex
	samples []TurnSample
	next    int
	filled  bool
	budget  PacingBudget
}

func newTurnWindow(size int) *turnWindow {
	if size <= 0 {
		size = 256
	}
	return &turnWindow{samples: make([]TurnSample, size)}
}

func (w *turnWindow) SetBudget(b PacingBudget) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.budget = b
}

func (w *turnWindow) Observe(s TurnSample) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[w.next] = s
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.filled = true
	}
}

// recentLocked returns samples oldest first.
func (w *turnWindow) recentLocked() []TurnSample {
	if !w.filled {
		return slices.Clone(w.samples[:w.next])
	}
	return append(slices.Clone(w.samples[w.next:]), w.samples[:w.next]...)
}

func (w *turnWindow) Snapshot() TurnWindowSnapshot {
	w.mu.Lock()
	recent := w.recentLocked()
	budget := w.budget
	w.mu.Unlock()

	snap := TurnWindowSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  len(w.samples),
		Turns:       len(recent),
		Stages:      []StageStats{},
		Categories:  []CategoryStats{},
	}
	if len(recent) == 0 {
		return snap
	}

	type categoryTotal struct{ turns, confidence int }
	categories := make(map[string]*categoryTotal)
	for _, s := range recent {
		if !s.Matched {
			snap.Fallbacks++
		}
		c := categories[s.Category]
		if c == nil {
			c = &categoryTotal{}
			categories[s.Category] = c
		}
		c.turns++
		c.confidence += s.Confidence
	}
	snap.MatchRate = round2(float64(len(recent)-snap.Fallbacks) / float64(len(recent)))

	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := categories[name]
		snap.Categories = append(snap.Categories, CategoryStats{
			Category:      name,
			Turns:         c.turns,
			AvgConfidence: round2(float64(c.confidence) / float64(c.turns)),
		})
	}

	for _, stage := range turnStages {
		if stats, ok := stageStats(stage, recent, budget); ok {
			snap.Stages = append(snap.Stages, stats)
		}
	}
	return snap
}

func stageStats(stage turnStage, recent []TurnSample, budget PacingBudget) (StageStats, bool) {
	var (
		values []float64
		over   int
		last   float64
	)
	for _, s := range recent {
		d, ok := stage.value(s)
		if !ok {
			continue
		}
		if limit := stage.budget(budget, s); limit > 0 && d > limit+budgetSlack {
			over++
		}
		last = ms(d)
		values = append(values, last)
	}
	if len(values) == 0 {
		return StageStats{}, false
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	sort.Float64s(values)

	stats := StageStats{
		Stage:      stage.name,
		Samples:    len(values),
		LastMS:     round2(last),
		AvgMS:      round2(sum / float64(len(values))),
		P50MS:      round2(quantile(values, 0.50)),
		P95MS:      round2(quantile(values, 0.95)),
		MaxMS:      round2(values[len(values)-1]),
		OverBudget: over,
	}
	if !stage.perSample {
		stats.BudgetMS = ms(stage.budget(budget, TurnSample{}))
	}
	return stats, true
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := q * float64(len(sorted)-1)
	lo, hi := int(math.Floor(idx)), int(math.Ceil(idx))
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
