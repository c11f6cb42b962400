package matcher

import (
	"maps"
	"regexp"
	"strings"
)

const DefaultWindow = 5

var (
	gradeAfterWord  = regexp.MustCompile(`\b(?:grade|class|std|standard)\s*[:.#-]?\s*(\d{1,2})\b`)
	gradeBeforeWord = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:grade|class|std|standard)\b`)
	streamAfterWord = regexp.MustCompile(`\b(?:stream|in|taking|studying|doing)\s+(science|commerce|arts|humanities)\b`)
	streamTrailing  = regexp.MustCompile(`\b(science|commerce|arts|humanities)\s+stream\b`)
	namePattern     = regexp.MustCompile(`\b(?:my name is|i am|i'm|im)\s+([a-z]+)\b`)
)

// Words that follow "i am" / "i'm" without being a name.
var notNames = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "in": {}, "at": {}, "from": {}, "on": {}, "into": {},
	"with": {}, "of": {}, "and": {}, "not": {}, "so": {}, "very": {}, "just": {},
	"really": {}, "also": {}, "still": {}, "currently": {}, "now": {}, "here": {},
	"new": {}, "looking": {}, "interested": {}, "studying": {}, "trying": {},
	"planning": {}, "applying": {}, "going": {}, "having": {}, "able": {},
	"taking": {}, "doing": {}, "enrolled": {}, "learning": {}, "working": {},
	"asking": {}, "wondering": {}, "thinking": {}, "curious": {},
	"confused": {}, "unsure": {}, "sure": {}, "eligible": {}, "ready": {}, "done": {},
	"fine": {}, "good": {}, "ok": {}, "okay": {}, "student": {}, "parent": {},
	"teacher": {}, "grade": {}, "class": {}, "std": {}, "standard": {},
}

// Tracker is the per-session conversational context: a bounded window of recent
// normalized inputs plus facts extracted from them. It is not safe for concurrent use;
// the owning session serializes access.
type Tracker struct {
	window int
	recent []string
	facts  map[string]string
}

func NewTracker(window int) *Tracker {
	if window < 1 {
		window = DefaultWindow
	}
	return &Tracker{
		window: window,
		recent: make([]string, 0, window),
		facts:  make(map[string]string),
	}
}

// Record pushes the normalized input, evicting the oldest entry past the window.
func (t *Tracker) Record(input string) {
	norm := Normalize(input)
	if norm == "" {
		return
	}
	if len(t.recent) == t.window {
		copy(t.recent, t.recent[1:])
		t.recent = t.recent[:t.window-1]
	}
	t.recent = append(t.recent, norm)
}

// Boosts reports whether a prior input in the window contains any of keywords. Record
// runs before scoring, so the newest entry is skipped once when it is the input itself.
func (t *Tracker) Boosts(input string, keywords []string) bool {
	prior := t.recent
	if n := len(prior); n > 0 && prior[n-1] == Normalize(input) {
		prior = prior[:n-1]
	}
	for _, past := range prior {
		for _, kw := range keywords {
			if kw != "" && strings.Contains(past, kw) {
				return true
			}
		}
	}
	return false
}

// ExtractFacts returns the facts found in input and merges them into the tracker,
// newer values replacing older ones.
func (t *Tracker) ExtractFacts(input string) map[string]string {
	norm := Normalize(input)
	found := make(map[string]string)

	if m := gradeAfterWord.FindStringSubmatch(norm); m != nil {
		found["grade"] = strings.TrimLeft(m[1], "0")
	} else if m := gradeBeforeWord.FindStringSubmatch(norm); m != nil {
		found["grade"] = strings.TrimLeft(m[1], "0")
	}
	if found["grade"] == "" {
		delete(found, "grade")
	}

	if m := streamAfterWord.FindStringSubmatch(norm); m != nil {
		found["stream"] = m[1]
	} else if m := streamTrailing.FindStringSubmatch(norm); m != nil {
		found["stream"] = m[1]
	}

	for _, m := range namePattern.FindAllStringSubmatch(norm, -1) {
		if _, skip := notNames[m[1]]; skip {
			continue
		}
		found["name"] = strings.ToUpper(m[1][:1]) + m[1][1:]
		break
	}

	maps.Copy(t.facts, found)
	return found
}

func (t *Tracker) Facts() map[string]string {
	return maps.Clone(t.facts)
}

// Recent returns the window, oldest first.
func (t *Tracker) Recent() []string {
	out := make([]string, len(t.recent))
	copy(out, t.recent)
	return out
}

func (t *Tracker) Window() int { return t.window }
