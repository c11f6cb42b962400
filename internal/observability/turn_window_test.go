package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTurnWindowSnapshot(t *testing.T) {
	w := newTurnWindow(8)
	w.SetBudget(PacingBudget{ThinkMax: 1500 * time.Millisecond, RevealPerWordMax: 80 * time.Millisecond})

	w.Observe(TurnSample{Matched: true, Category: "admissions", Confidence: 90, Words: 11,
		Think: 700 * time.Millisecond, Reveal: 500 * time.Millisecond, Total: 1200 * time.Millisecond})
	w.Observe(TurnSample{Matched: true, Category: "admissions", Confidence: 80, Words: 1,
		Think: 1100 * time.Millisecond, Total: 1100 * time.Millisecond})
	w.Observe(TurnSample{Matched: false, Category: "fallback", Confidence: 75, Words: 6,
		Think: 2 * time.Second, Reveal: time.Second, Total: 3 * time.Second})

	snap := w.Snapshot()
	if snap.WindowSize != 8 || snap.Turns != 3 {
		t.Fatalf("window = %d/%d, want 8/3", snap.WindowSize, snap.Turns)
	}
	if snap.Fallbacks != 1 || snap.MatchRate != 0.67 {
		t.Fatalf("fallbacks = %d match rate = %.2f, want 1 and 0.67", snap.Fallbacks, snap.MatchRate)
	}
	if len(snap.Categories) != 2 {
		t.Fatalf("categories = %+v", snap.Categories)
	}
	if c := snap.Categories[0]; c.Category != "admissions" || c.Turns != 2 || c.AvgConfidence != 85 {
		t.Fatalf("Categories[0] = %+v, want admissions x2 avg 85", c)
	}

	stages := map[string]StageStats{}
	for _, s := range snap.Stages {
		stages[s.Stage] = s
	}
	think := stages["think"]
	if think.Samples != 3 || think.P50MS != 1100 || think.MaxMS != 2000 || think.LastMS != 2000 {
		t.Fatalf("think = %+v", think)
	}
	if think.BudgetMS != 1500 || think.OverBudget != 1 {
		t.Fatalf("think budget = %.0f over = %d, want 1500 and 1", think.BudgetMS, think.OverBudget)
	}

	// Single-word replies have no gaps between words.
	perWord := stages["reveal_per_word"]
	if perWord.Samples != 2 || perWord.P50MS != 125 || perWord.OverBudget != 1 {
		t.Fatalf("reveal_per_word = %+v", perWord)
	}

	total := stages["total"]
	if total.BudgetMS != 0 || total.OverBudget != 1 {
		t.Fatalf("total = %+v, want per-sample budget with one overrun", total)
	}
}

func TestTurnWindowWrapsAround(t *testing.T) {
	w := newTurnWindow(2)
	for _, ms := range []int{10, 20, 30} {
		w.Observe(TurnSample{Matched: true, Category: "fees", Total: time.Duration(ms) * time.Millisecond})
	}

	snap := w.Snapshot()
	if snap.Turns != 2 {
		t.Fatalf("Turns = %d, want 2", snap.Turns)
	}
	for _, s := range snap.Stages {
		if s.Stage == "total" && (s.AvgMS != 25 || s.LastMS != 30) {
			t.Fatalf("total = %+v, want avg 25 last 30", s)
		}
		if s.OverBudget != 0 {
			t.Fatalf("%s over budget without a budget: %+v", s.Stage, s)
		}
	}
}

func TestTurnWindowEmpty(t *testing.T) {
	snap := newTurnWindow(0).Snapshot()
	if snap.WindowSize != 256 || snap.Turns != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Stages == nil || snap.Categories == nil {
		t.Fatalf("empty snapshot should carry empty slices")
	}
}

func TestMetricsObserveTurn(t *testing.T) {
	m := NewMetrics("enrollassist_test_observe_turn")
	m.ObserveTurn(TurnSample{Matched: true, Category: "admissions", Score: 19.4, Confidence: 75, Words: 4, Total: 2 * time.Second})
	m.ObserveTurn(TurnSample{Category: "fallback", Confidence: 75})
	m.ObserveKnowledgeReload(nil)
	m.ObserveKnowledgeReload(errTest)
	m.ObserveKnowledgeTable(16)

	if got := testutil.ToFloat64(m.Turns.WithLabelValues("matched", "admissions")); got != 1 {
		t.Fatalf("matched turns = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Turns.WithLabelValues("fallback", "fallback")); got != 1 {
		t.Fatalf("fallback turns = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.KnowledgeReloads.WithLabelValues("rejected")); got != 1 {
		t.Fatalf("rejected reloads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.KnowledgeEntries); got != 16 {
		t.Fatalf("knowledge entries = %v, want 16", got)
	}
	if snap := m.SnapshotTurns(); snap.Turns != 2 || snap.Fallbacks != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

type testError string

func (e testError) Error() string { return string(e) }

const errTest = testError("bad rule file")
