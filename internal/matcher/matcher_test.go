package matcher

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/enrollassist/internal/knowledge"
)

func entry(id string, base int, keywords ...string) knowledge.Entry {
	return knowledge.Entry{
		ID:             id,
		Keywords:       keywords,
		Response:       "response for " + id,
		BaseConfidence: base,
		Category:       "test",
		FollowUps:      []string{"next " + id},
	}
}

func TestScoreApplyScenario(t *testing.T) {
	rules := []knowledge.Entry{entry("apply", 97, "apply", "application")}

	ranked := Score("how do I apply", rules, nil)
	require.Len(t, ranked, 1)
	assert.Equal(t, 20, ranked[0].Raw)
	assert.InDelta(t, 19.4, ranked[0].Score, 1e-9)

	resp := Select(ranked)
	assert.True(t, resp.Matched)
	assert.Equal(t, "apply", resp.EntryID)
	assert.Equal(t, 75, resp.Confidence)
	assert.Equal(t, []string{"next apply"}, resp.FollowUps)
}

func TestScoreNoOverlapFallsBack(t *testing.T) {
	table, err := knowledge.Default()
	require.NoError(t, err)

	ranked := Score("xyz unrelated gibberish", table.Entries(), nil)
	assert.Empty(t, ranked)

	resp := Select(ranked)
	assert.False(t, resp.Matched)
	assert.Equal(t, FallbackConfidence, resp.Confidence)
	assert.Equal(t, "fallback", resp.Category)
	assert.NotEmpty(t, resp.Text)
	assert.NotEmpty(t, resp.FollowUps)
	assert.NotEmpty(t, resp.Links)
}

func TestScoreBonuses(t *testing.T) {
	cases := []struct {
		input string
		kw    string
		raw   int
	}{
		{"apply", "apply", 15 + exactBonus + wordBonus},
		{"apply now please", "apply", 15 + exactBonus + wordBonus},
		{"reapply", "apply", 15},
		{"applying today", "apply", 15},
		{"can i apply?", "apply", 15 + wordBonus},
		{"  FEES  ", "fees", 12 + exactBonus + wordBonus},
		{"who can join", "who can", 21 + exactBonus + wordBonus},
		{"grade", "grade", 15 + exactBonus + wordBonus},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			ranked := Score(tc.input, []knowledge.Entry{entry("e", 100, tc.kw)}, nil)
			require.Len(t, ranked, 1)
			assert.Equal(t, tc.raw, ranked[0].Raw)
			assert.InDelta(t, float64(tc.raw), ranked[0].Score, 1e-9)
		})
	}
}

func TestScoreKeywordsAreCumulative(t *testing.T) {
	ranked := Score("fee and fees", []knowledge.Entry{entry("fees", 100, "fee", "fees")}, nil)
	require.Len(t, ranked, 1)
	// "fee": 9 + exact 10 + word 5; "fees": 12 + word 5.
	assert.Equal(t, 41, ranked[0].Raw)
}

func TestScoreIsDeterministic(t *testing.T) {
	table, err := knowledge.Default()
	require.NoError(t, err)
	entries := table.Entries()

	tr := NewTracker(DefaultWindow)
	tr.Record("what are the fees for the program")
	tr.Record("is there a scholarship")

	first := Score("is there a scholarship", entries, tr)
	require.NotEmpty(t, first)
	for i := 0; i < 20; i++ {
		if diff := cmp.Diff(first, Score("is there a scholarship", entries, tr)); diff != "" {
			t.Fatalf("Score() changed between calls (-first +again):\n%s", diff)
		}
	}
}

func TestScoreTiesKeepDeclarationOrder(t *testing.T) {
	rules := []knowledge.Entry{
		entry("first", 50, "fees"),
		entry("second", 50, "fees"),
		entry("third", 50, "fees"),
		entry("better", 90, "fees"),
	}
	ranked := Score("fees", rules, nil)
	require.Len(t, ranked, 4)

	var ids []string
	for _, c := range ranked {
		ids = append(ids, c.Entry.ID)
	}
	assert.Equal(t, []string{"better", "first", "second", "third"}, ids)
	assert.Equal(t, 0, ranked[1].Index)
}

func TestScoreBlankInput(t *testing.T) {
	assert.Empty(t, Score("   ", []knowledge.Entry{entry("e", 100, "a")}, nil))
	assert.False(t, Select(nil).Matched)
}

func TestSelectThresholdIsStrict(t *testing.T) {
	e := entry("e", 100, "x")

	atThreshold := Select([]Candidate{{Entry: e, Score: 4}})
	assert.False(t, atThreshold.Matched)
	assert.Equal(t, FallbackCategory, atThreshold.Category)

	above := Select([]Candidate{{Entry: e, Score: 4.01}})
	assert.True(t, above.Matched)
	assert.Equal(t, "e", above.EntryID)
}

func TestDisplayConfidence(t *testing.T) {
	assert.Equal(t, 75, DisplayConfidence(97, 19.4))
	assert.Equal(t, 98, DisplayConfidence(100, 30), "clamped")
	assert.Equal(t, 16, DisplayConfidence(100, 4.01))
}

func TestSelectCopiesEntrySlices(t *testing.T) {
	e := entry("e", 100, "x")
	e.Links = []knowledge.Link{{Label: "Apply", Target: "/apply"}}
	resp := Select([]Candidate{{Entry: e, Score: 10}})
	resp.Links[0].Target = "mutated"
	resp.FollowUps[0] = "mutated"
	assert.Equal(t, "/apply", e.Links[0].Target)
	assert.Equal(t, "next e", e.FollowUps[0])
}

func TestContextBoostFromPriorTurn(t *testing.T) {
	rules := []knowledge.Entry{entry("programs", 100, "program", "grade")}

	tr := NewTracker(DefaultWindow)
	tr.Record("I'm in grade 10")
	tr.ExtractFacts("I'm in grade 10")
	tr.Record("what program fits me")

	boosted := Score("what program fits me", rules, tr)
	require.Len(t, boosted, 1)
	assert.Equal(t, 21+wordBonus+contextBonus, boosted[0].Raw)

	fresh := NewTracker(DefaultWindow)
	fresh.Record("what program fits me")
	plain := Score("what program fits me", rules, fresh)
	require.Len(t, plain, 1)
	assert.Equal(t, 21+wordBonus, plain[0].Raw)
}

func TestContextBoostNeverMatchesAlone(t *testing.T) {
	tr := NewTracker(DefaultWindow)
	tr.Record("tell me about fees")
	tr.Record("hello")
	ranked := Score("hello", []knowledge.Entry{entry("fees", 100, "fees")}, tr)
	assert.Empty(t, ranked)
}

func TestContextBoostAppliedOncePerRule(t *testing.T) {
	tr := NewTracker(DefaultWindow)
	tr.Record("fees")
	tr.Record("fee structure")
	tr.Record("fees please")
	ranked := Score("fees please", []knowledge.Entry{entry("fees", 100, "fees", "fee")}, tr)
	require.Len(t, ranked, 1)
	// "fees" 12+10+5, "fee" only as a substring, boost once.
	assert.Equal(t, 27+9+contextBonus, ranked[0].Raw)
}

func TestTrackerWindowIsFIFO(t *testing.T) {
	tr := NewTracker(DefaultWindow)
	for i := 0; i <= DefaultWindow; i++ {
		tr.Record(fmt.Sprintf("Input %d ", i))
	}
	recent := tr.Recent()
	assert.Len(t, recent, DefaultWindow)
	assert.NotContains(t, recent, "input 0")
	assert.Equal(t, "input 1", recent[0])
	assert.Equal(t, fmt.Sprintf("input %d", DefaultWindow), recent[DefaultWindow-1])
}

func TestTrackerIgnoresBlank(t *testing.T) {
	tr := NewTracker(0)
	tr.Record("  ")
	assert.Empty(t, tr.Recent())
	assert.Equal(t, DefaultWindow, tr.Window())
}

func TestExtractFacts(t *testing.T) {
	cases := []struct {
		input string
		want  map[string]string
	}{
		{"I'm in grade 10", map[string]string{"grade": "10"}},
		{"my son is in class 9", map[string]string{"grade": "9"}},
		{"she studies in 12th std", map[string]string{"grade": "12"}},
		{"I am taking science in grade 11", map[string]string{"grade": "11", "stream": "science"}},
		{"commerce stream", map[string]string{"stream": "commerce"}},
		{"Hi, my name is Priya", map[string]string{"name": "Priya"}},
		{"i'm looking for courses", map[string]string{}},
		{"nothing useful here", map[string]string{}},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got := NewTracker(DefaultWindow).ExtractFacts(tc.input)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("ExtractFacts(%q) mismatch (-want +got):\n%s", tc.input, diff)
			}
		})
	}
}

func TestExtractFactsNewerOverwrites(t *testing.T) {
	tr := NewTracker(DefaultWindow)
	tr.ExtractFacts("I'm in grade 9, my name is Ravi")
	tr.ExtractFacts("sorry, actually class 10")

	facts := tr.Facts()
	assert.Equal(t, "10", facts["grade"])
	assert.Equal(t, "Ravi", facts["name"], "facts are never removed")

	facts["grade"] = "mutated"
	assert.Equal(t, "10", tr.Facts()["grade"])
}

func TestExplainMatchesScore(t *testing.T) {
	table, err := knowledge.Default()
	require.NoError(t, err)
	entries := table.Entries()

	ranked := Score("how much are the fees for online classes", entries, nil)
	explained := Explain("how much are the fees for online classes", entries, nil)
	require.Equal(t, len(ranked), len(explained))
	for i := range ranked {
		assert.Equal(t, ranked[i].Entry.ID, explained[i].EntryID)
		assert.Equal(t, ranked[i].Raw, explained[i].Raw)
		assert.NotEmpty(t, explained[i].Hits)
	}
}

func TestContainsWholeWord(t *testing.T) {
	cases := []struct {
		s, kw string
		want  bool
	}{
		{"how do i apply", "apply", true},
		{"reapply now", "apply", false},
		{"reapply, then apply", "apply", true},
		{"apply_now", "apply", false},
		{"class-9", "class", true},
		{"what's the fee?", "fee", true},
		{"feedback", "fee", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, containsWholeWord(tc.s, tc.kw), "%q in %q", tc.kw, tc.s)
	}
}
