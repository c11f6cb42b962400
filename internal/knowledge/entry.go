package knowledge

import (
	"slices"
	"strings"
)

// Link is a navigational affordance attached to a response. Target is opaque to the
// matcher; the widget decides how to open it.
type Link struct {
	Label  string `yaml:"label" json:"label" jsonschema:"required"`
	Target string `yaml:"target" json:"target" jsonschema:"required"`
}

// Action is a side-effecting trigger (open dialer, open form) resolved by the widget.
type Action struct {
	Label    string `yaml:"label" json:"label" jsonschema:"required"`
	ActionID string `yaml:"action_id" json:"action_id" jsonschema:"required"`
}

// Entry binds trigger keywords to a canned response.
type Entry struct {
	ID             string   `yaml:"id,omitempty" json:"id,omitempty"`
	Keywords       []string `yaml:"keywords" json:"keywords" jsonschema:"required,minItems=1"`
	Response       string   `yaml:"response" json:"response" jsonschema:"required"`
	BaseConfidence int      `yaml:"confidence" json:"confidence" jsonschema:"required,minimum=1,maximum=100"`
	Category       string   `yaml:"category,omitempty" json:"category,omitempty"`
	FollowUps      []string `yaml:"follow_ups,omitempty" json:"follow_ups,omitempty"`
	Links          []Link   `yaml:"links,omitempty" json:"links,omitempty"`
	Actions        []Action `yaml:"actions,omitempty" json:"actions,omitempty"`
}

func (e Entry) clone() Entry {
	c := e
	c.Keywords = slices.Clone(e.Keywords)
	c.FollowUps = slices.Clone(e.FollowUps)
	c.Links = slices.Clone(e.Links)
	c.Actions = slices.Clone(e.Actions)
	return c
}

// normalizeKeywords lowercases, trims and de-duplicates while keeping declaration order.
func normalizeKeywords(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, kw := range raw {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
