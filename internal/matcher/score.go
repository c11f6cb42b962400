package matcher

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ent0n29/enrollassist/internal/knowledge"
)

const (
	substringWeight = 3
	exactBonus      = 10
	wordBonus       = 5
	contextBonus    = 8
)

// Booster reports whether recent conversation mentioned any of the keywords.
// *Tracker implements it.
type Booster interface {
	Boosts(input string, keywords []string) bool
}

type Candidate struct {
	Entry knowledge.Entry
	// Index is the entry's position in the table; ties keep this order.
	Index int
	Raw   int
	Score float64
}

type KeywordHit struct {
	Keyword   string `json:"keyword"`
	Exact     bool   `json:"exact"`
	WholeWord bool   `json:"whole_word"`
	Points    int    `json:"points"`
}

// Explanation is the per-entry breakdown behind a score.
type Explanation struct {
	EntryID      string       `json:"entry_id"`
	Category     string       `json:"category"`
	Hits         []KeywordHit `json:"hits"`
	ContextBoost bool         `json:"context_boost"`
	Raw          int          `json:"raw"`
	Score        float64      `json:"score"`
}

func Normalize(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// Score ranks entries against input. Only entries with a positive score are returned,
// highest first; equal scores keep table order. ctx may be nil.
func Score(input string, entries []knowledge.Entry, ctx Booster) []Candidate {
	norm := Normalize(input)
	if norm == "" {
		return nil
	}
	out := make([]Candidate, 0, 4)
	for i, e := range entries {
		ex := explainEntry(norm, e, ctx)
		if ex.Score <= 0 {
			continue
		}
		out = append(out, Candidate{Entry: e, Index: i, Raw: ex.Raw, Score: ex.Score})
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Score > out[b].Score
	})
	return out
}

// Explain returns the breakdown for every entry that scored, in ranked order.
func Explain(input string, entries []knowledge.Entry, ctx Booster) []Explanation {
	norm := Normalize(input)
	if norm == "" {
		return nil
	}
	out := make([]Explanation, 0, 4)
	for _, e := range entries {
		ex := explainEntry(norm, e, ctx)
		if ex.Score > 0 {
			out = append(out, ex)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Score > out[b].Score
	})
	return out
}

func explainEntry(norm string, e knowledge.Entry, ctx Booster) Explanation {
	ex := Explanation{EntryID: e.ID, Category: e.Category}
	for _, kw := range e.Keywords {
		if kw == "" || !strings.Contains(norm, kw) {
			continue
		}
		hit := KeywordHit{
			Keyword: kw,
			Points:  utf8.RuneCountInString(kw) * substringWeight,
		}
		if leadingToken(norm, kw) {
			hit.Exact = true
			hit.Points += exactBonus
		}
		if containsWholeWord(norm, kw) {
			hit.WholeWord = true
			hit.Points += wordBonus
		}
		ex.Hits = append(ex.Hits, hit)
		ex.Raw += hit.Points
	}
	// Context only strengthens an existing match.
	if ex.Raw > 0 && ctx != nil && ctx.Boosts(norm, e.Keywords) {
		ex.ContextBoost = true
		ex.Raw += contextBonus
	}
	ex.Score = float64(ex.Raw) * float64(e.BaseConfidence) / 100
	return ex
}

// leadingToken reports whether input is kw, or starts with kw followed by whitespace.
func leadingToken(input, kw string) bool {
	if input == kw {
		return true
	}
	if !strings.HasPrefix(input, kw) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(input[len(kw):])
	return unicode.IsSpace(r)
}

// containsWholeWord reports whether kw occurs in s delimited by word boundaries, with
// word characters being ASCII letters, digits and underscore.
func containsWholeWord(s, kw string) bool {
	if kw == "" {
		return false
	}
	for off := 0; off <= len(s)-len(kw); {
		i := strings.Index(s[off:], kw)
		if i < 0 {
			return false
		}
		start := off + i
		end := start + len(kw)
		if boundaryAt(s, start) && boundaryAt(s, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		off = start + size
	}
	return false
}

func boundaryAt(s string, i int) bool {
	before := i > 0 && isWordByte(s[i-1])
	after := i < len(s) && isWordByte(s[i])
	return before != after
}

func isWordByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}
