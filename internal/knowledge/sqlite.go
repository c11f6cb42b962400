package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the rule table in a local SQLite file for single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// database/sql pools connections; an in-memory database only exists on one of them.
	db.SetMaxOpenConns(1)

	if err := initSQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initSQLiteSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS knowledge_entries (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL DEFAULT 0,
			keywords TEXT NOT NULL,
			response TEXT NOT NULL,
			confidence INTEGER NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			follow_ups TEXT NOT NULL DEFAULT '[]',
			links TEXT NOT NULL DEFAULT '[]',
			actions TEXT NOT NULL DEFAULT '[]',
			enabled INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_entries_position ON knowledge_entries (position, id);`,
		`CREATE TABLE IF NOT EXISTS knowledge_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*Table, error) {
	var version string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM knowledge_meta WHERE key = 'version'`).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query knowledge version: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, position, keywords, response, confidence, category, follow_ups, links, actions
		 FROM knowledge_entries WHERE enabled = 1 ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query knowledge entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			r                   entryRow
			keywords, followUps string
			links, actions      string
		)
		if err := rows.Scan(&r.ID, &r.Position, &keywords, &r.Response, &r.Confidence, &r.Category, &followUps, &links, &actions); err != nil {
			return nil, fmt.Errorf("scan knowledge row: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &r.Keywords); err != nil {
			return nil, fmt.Errorf("decode keywords for %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(followUps), &r.FollowUps); err != nil {
			return nil, fmt.Errorf("decode follow_ups for %s: %w", r.ID, err)
		}
		r.Links = []byte(links)
		r.Actions = []byte(actions)

		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge rows: %w", err)
	}

	return NewTable(version, "sqlite", entries)
}

func (s *SQLiteStore) Replace(ctx context.Context, t *Table) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM knowledge_entries`); err != nil {
		return fmt.Errorf("clear knowledge entries: %w", err)
	}
	for i, e := range t.entries {
		r, rowErr := rowFromEntry(i, e)
		if rowErr != nil {
			return rowErr
		}
		keywords, _ := json.Marshal(r.Keywords)
		followUps, _ := json.Marshal(r.FollowUps)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO knowledge_entries (id, position, keywords, response, confidence, category, follow_ups, links, actions)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Position, string(keywords), r.Response, r.Confidence, r.Category, string(followUps), string(r.Links), string(r.Actions),
		)
		if err != nil {
			return fmt.Errorf("insert knowledge entry %s: %w", r.ID, err)
		}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO knowledge_meta (key, value) VALUES ('version', ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		t.version,
	)
	if err != nil {
		return fmt.Errorf("save knowledge version: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
