package conversation

import (
	"slices"
	"time"

	"github.com/ent0n29/enrollassist/internal/knowledge"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type State string

const (
	StateIdle               State = "idle"
	StateAwaitingThinkDelay State = "awaiting_think_delay"
	StateRevealing          State = "revealing"
	StateClosed             State = "closed"
)

// Turn is one message in the conversation log. Assistant turns are created empty with
// Revealing set, grow during the reveal, and are immutable once finalized.
type Turn struct {
	ID          int                `json:"id"`
	Role        Role               `json:"role"`
	Text        string             `json:"text"`
	CreatedAt   time.Time          `json:"created_at"`
	Suggestions []string           `json:"suggestions,omitempty"`
	Links       []knowledge.Link   `json:"links,omitempty"`
	Actions     []knowledge.Action `json:"actions,omitempty"`
	Confidence  *int               `json:"confidence,omitempty"`
	Category    string             `json:"category,omitempty"`
	EntryID     string             `json:"entry_id,omitempty"`
	Revealing   bool               `json:"revealing"`
}

func (t Turn) clone() Turn {
	c := t
	c.Suggestions = slices.Clone(t.Suggestions)
	c.Links = slices.Clone(t.Links)
	c.Actions = slices.Clone(t.Actions)
	if t.Confidence != nil {
		v := *t.Confidence
		c.Confidence = &v
	}
	return c
}
