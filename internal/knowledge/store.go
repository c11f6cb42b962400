package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
)

// Source yields a validated Table.
type Source interface {
	Load(ctx context.Context) (*Table, error)
}

// Store is a database-backed source the admin tooling can also write to.
type Store interface {
	Source
	Replace(ctx context.Context, t *Table) error
	Close() error
}

// entryRow is the column layout shared by the SQL stores.
type entryRow struct {
	ID         string
	Position   int
	Keywords   []string
	Response   string
	Confidence int
	Category   string
	FollowUps  []string
	Links      []byte
	Actions    []byte
}

func (r entryRow) entry() (Entry, error) {
	e := Entry{
		ID:             r.ID,
		Keywords:       r.Keywords,
		Response:       r.Response,
		BaseConfidence: r.Confidence,
		Category:       r.Category,
		FollowUps:      r.FollowUps,
	}
	if len(r.Links) > 0 {
		if err := json.Unmarshal(r.Links, &e.Links); err != nil {
			return Entry{}, fmt.Errorf("decode links for %s: %w", r.ID, err)
		}
	}
	if len(r.Actions) > 0 {
		if err := json.Unmarshal(r.Actions, &e.Actions); err != nil {
			return Entry{}, fmt.Errorf("decode actions for %s: %w", r.ID, err)
		}
	}
	return e, nil
}

func rowFromEntry(pos int, e Entry) (entryRow, error) {
	links, err := json.Marshal(nonNil(e.Links))
	if err != nil {
		return entryRow{}, fmt.Errorf("encode links for %s: %w", e.ID, err)
	}
	actions, err := json.Marshal(nonNil(e.Actions))
	if err != nil {
		return entryRow{}, fmt.Errorf("encode actions for %s: %w", e.ID, err)
	}
	return entryRow{
		ID:         e.ID,
		Position:   pos,
		Keywords:   nonNil(e.Keywords),
		Response:   e.Response,
		Confidence: e.BaseConfidence,
		Category:   e.Category,
		FollowUps:  nonNil(e.FollowUps),
		Links:      links,
		Actions:    actions,
	}, nil
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
