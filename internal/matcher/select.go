package matcher

import (
	"math"
	"slices"

	"github.com/ent0n29/enrollassist/internal/knowledge"
)

const (
	// Threshold is the score the top candidate must strictly exceed.
	Threshold            = 4.0
	FallbackConfidence   = 75
	FallbackCategory     = "fallback"
	maxDisplayConfidence = 98
	confidenceDivisor    = 25.0
)

const fallbackText = `I'm not completely sure I understood that.
Could you rephrase it, or ask me about admissions, programs, fees or scholarships?
If you'd rather talk to a person, our support team is happy to help.`

var (
	fallbackFollowUps = []string{
		"How do I apply?",
		"What programs do you offer?",
		"Are there any fees?",
		"How can I contact you?",
	}
	fallbackLinks = []knowledge.Link{
		{Label: "Contact us", Target: "/contact"},
		{Label: "Email support", Target: "mailto:support@enrollassist.org"},
	}
)

// Response is what the assistant says for one turn.
type Response struct {
	EntryID    string             `json:"entry_id,omitempty"`
	Text       string             `json:"text"`
	Confidence int                `json:"confidence"`
	Category   string             `json:"category"`
	FollowUps  []string           `json:"follow_ups,omitempty"`
	Links      []knowledge.Link   `json:"links,omitempty"`
	Actions    []knowledge.Action `json:"actions,omitempty"`
	Score      float64            `json:"score"`
	Matched    bool               `json:"matched"`
}

// Select resolves ranked candidates to a response. It always returns one: when nothing
// clears Threshold the fallback is used.
func Select(candidates []Candidate) Response {
	if len(candidates) == 0 || !(candidates[0].Score > Threshold) {
		r := Fallback()
		if len(candidates) > 0 {
			r.Score = candidates[0].Score
		}
		return r
	}
	top := candidates[0]
	e := top.Entry
	return Response{
		EntryID:    e.ID,
		Text:       e.Response,
		Confidence: DisplayConfidence(e.BaseConfidence, top.Score),
		Category:   e.Category,
		FollowUps:  slices.Clone(e.FollowUps),
		Links:      slices.Clone(e.Links),
		Actions:    slices.Clone(e.Actions),
		Score:      top.Score,
		Matched:    true,
	}
}

// DisplayConfidence is min(98, round(base * score / 25)).
func DisplayConfidence(base int, score float64) int {
	v := int(math.Round(float64(base) * score / confidenceDivisor))
	return min(v, maxDisplayConfidence)
}

func Fallback() Response {
	return Response{
		Text:       fallbackText,
		Confidence: FallbackConfidence,
		Category:   FallbackCategory,
		FollowUps:  slices.Clone(fallbackFollowUps),
		Links:      slices.Clone(fallbackLinks),
	}
}

// Match runs Score then Select.
func Match(input string, entries []knowledge.Entry, ctx Booster) (Response, []Candidate) {
	ranked := Score(input, entries, ctx)
	return Select(ranked), ranked
}
