package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore reads the rule table maintained by the admin panel.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := initPostgresSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initPostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS knowledge_entries (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL DEFAULT 0,
			keywords TEXT[] NOT NULL,
			response TEXT NOT NULL,
			confidence INTEGER NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			follow_ups TEXT[] NOT NULL DEFAULT '{}',
			links JSONB NOT NULL DEFAULT '[]',
			actions JSONB NOT NULL DEFAULT '[]',
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_entries_position ON knowledge_entries (position, id);`,
		`CREATE TABLE IF NOT EXISTS knowledge_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (*Table, error) {
	var version string
	err := s.pool.QueryRow(ctx, `SELECT value FROM knowledge_meta WHERE key = 'version'`).Scan(&version)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("query knowledge version: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, position, keywords, response, confidence, category, follow_ups, links, actions
		 FROM knowledge_entries WHERE enabled ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query knowledge entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var r entryRow
		if err := rows.Scan(&r.ID, &r.Position, &r.Keywords, &r.Response, &r.Confidence, &r.Category, &r.FollowUps, &r.Links, &r.Actions); err != nil {
			return nil, fmt.Errorf("scan knowledge row: %w", err)
		}
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge rows: %w", err)
	}

	return NewTable(version, "postgres", entries)
}

// Replace swaps the whole rule set in one transaction.
func (s *PostgresStore) Replace(ctx context.Context, t *Table) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM knowledge_entries`); err != nil {
			return fmt.Errorf("clear knowledge entries: %w", err)
		}
		for i, e := range t.entries {
			r, err := rowFromEntry(i, e)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO knowledge_entries (id, position, keywords, response, confidence, category, follow_ups, links, actions)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				r.ID, r.Position, r.Keywords, r.Response, r.Confidence, r.Category, r.FollowUps, string(r.Links), string(r.Actions),
			)
			if err != nil {
				return fmt.Errorf("insert knowledge entry %s: %w", r.ID, err)
			}
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO knowledge_meta (key, value) VALUES ('version', $1)
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
			t.version,
		)
		if err != nil {
			return fmt.Errorf("save knowledge version: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
