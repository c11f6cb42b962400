package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Email me at sam@example.com or +1 (555) 123-9876 and use 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactPIIEnrolmentNumbers(t *testing.T) {
	out, changed := RedactPII("my admission number: AB-1029 is not working")
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	if strings.Contains(out, "AB-1029") || !strings.Contains(out, "admission [REDACTED_ID]") {
		t.Fatalf("RedactPII() = %q", out)
	}
}

func TestRedactPIILeavesPlainQuestions(t *testing.T) {
	in := "what are the fees for class 10?"
	out, changed := RedactPII(in)
	if changed || out != in {
		t.Fatalf("RedactPII(%q) = %q, %v", in, out, changed)
	}
}

func TestRedactLearnerInputMasksName(t *testing.T) {
	got := RedactLearnerInput("hi this is Priya, mail priya@example.com", map[string]string{"name": "Priya"})
	if strings.Contains(got, "Priya") {
		t.Fatalf("name survived redaction: %q", got)
	}
	if !strings.Contains(got, "[REDACTED_NAME]") || !strings.Contains(got, "[REDACTED_EMAIL]") {
		t.Fatalf("RedactLearnerInput() = %q", got)
	}
}

func TestRedactFacts(t *testing.T) {
	facts := map[string]string{"name": "Priya", "grade": "10"}
	got := RedactFacts(facts)
	if got["name"] != "[REDACTED_NAME]" || got["grade"] != "10" {
		t.Fatalf("RedactFacts() = %v", got)
	}
	if facts["name"] != "Priya" {
		t.Fatalf("input map was modified")
	}
}
