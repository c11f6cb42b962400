package knowledge

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const defaultCategory = "general"

var ErrEmptyTable = errors.New("knowledge table has no entries")

// ValidationError describes one malformed entry. NewTable joins all of them so authors
// see every problem in a rule file at once.
type ValidationError struct {
	Index  int
	ID     string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("entry %d (%s): %s %s", e.Index+1, e.ID, e.Field, e.Reason)
}

// Table is a validated, read-only rule table. Sessions take a copy of the entries when
// they open, so a Table is never mutated after NewTable returns.
type Table struct {
	version    string
	source     string
	entries    []Entry
	categories []string
}

// NewTable normalizes and validates entries. A table that fails validation is never
// returned; callers are expected to refuse to start.
func NewTable(version, source string, entries []Entry) (*Table, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTable
	}

	var errs []error
	out := make([]Entry, 0, len(entries))
	ids := make(map[string]int, len(entries))
	categories := make(map[string]struct{})

	for i, raw := range entries {
		e := raw.clone()
		e.ID = strings.TrimSpace(e.ID)
		if e.ID == "" {
			e.ID = "entry-" + strconv.Itoa(i+1)
		}
		e.Category = strings.TrimSpace(e.Category)
		if e.Category == "" {
			e.Category = defaultCategory
		}
		e.Keywords = normalizeKeywords(e.Keywords)

		invalid := func(field, reason string) {
			errs = append(errs, &ValidationError{Index: i, ID: e.ID, Field: field, Reason: reason})
		}

		if prev, dup := ids[e.ID]; dup {
			invalid("id", fmt.Sprintf("duplicates entry %d", prev+1))
		}
		ids[e.ID] = i

		if len(e.Keywords) == 0 {
			invalid("keywords", "must not be empty")
		}
		for _, kw := range e.Keywords {
			if kw == "" {
				invalid("keywords", "must not contain blank keywords")
				break
			}
		}
		if e.BaseConfidence <= 0 || e.BaseConfidence > 100 {
			invalid("confidence", fmt.Sprintf("must be in (0,100], got %d", e.BaseConfidence))
		}
		if strings.TrimSpace(e.Response) == "" {
			invalid("response", "must not be empty")
		}
		for _, l := range e.Links {
			if strings.TrimSpace(l.Label) == "" || strings.TrimSpace(l.Target) == "" {
				invalid("links", "need both label and target")
				break
			}
		}
		for _, a := range e.Actions {
			if strings.TrimSpace(a.Label) == "" || strings.TrimSpace(a.ActionID) == "" {
				invalid("actions", "need both label and action_id")
				break
			}
		}

		categories[e.Category] = struct{}{}
		out = append(out, e)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	cats := make([]string, 0, len(categories))
	for c := range categories {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	return &Table{
		version:    strings.TrimSpace(version),
		source:     source,
		entries:    out,
		categories: cats,
	}, nil
}

func (t *Table) Version() string { return t.version }

func (t *Table) Source() string { return t.source }

func (t *Table) Len() int { return len(t.entries) }

func (t *Table) Categories() []string {
	out := make([]string, len(t.categories))
	copy(out, t.categories)
	return out
}

// Entries returns a deep copy of the entries in declaration order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.clone()
	}
	return out
}

func (t *Table) Entry(id string) (Entry, bool) {
	for _, e := range t.entries {
		if e.ID == id {
			return e.clone(), true
		}
	}
	return Entry{}, false
}
