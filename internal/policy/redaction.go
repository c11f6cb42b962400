package policy

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	// Roll and admission numbers, e.g. "roll no 2231" or "admission number: AB-1029".
	enrolmentIDPattern = regexp.MustCompile(`(?i)\b(roll|admission|application|student)\s*(?:no\.?|number|id)\s*[:#]?\s*[a-z0-9\-]{3,}`)
)

// RedactPII masks common high-risk PII patterns.
func RedactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	// Card before phone so long digit runs are not classified as phone numbers.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = enrolmentIDPattern.ReplaceAllString(out, "$1 [REDACTED_ID]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}

// RedactLearnerInput masks PII plus the learner's own name when the conversation
// has picked one up. Used for anything that leaves the process (logs, turn reports).
func RedactLearnerInput(input string, facts map[string]string) string {
	out, _ := RedactPII(input)
	name := strings.TrimSpace(facts["name"])
	if len(name) < 2 {
		return out
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	if err != nil {
		return out
	}
	return re.ReplaceAllString(out, "[REDACTED_NAME]")
}

// RedactFacts returns a copy of facts that is safe to log.
func RedactFacts(facts map[string]string) map[string]string {
	out := make(map[string]string, len(facts))
	for k, v := range facts {
		if k == "name" {
			v = "[REDACTED_NAME]"
		}
		out[k] = v
	}
	return out
}
