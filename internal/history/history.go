// Package history records analysis outcomes in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tamirms/fqcomp"
)

// DefaultLimit is the number of runs Recent returns for a non-positive limit.
const DefaultLimit = 20

// Store is a run history backed by one SQLite database. It is safe for
// concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Entry is one recorded run. Exactly one of Result and Error is set.
type Entry struct {
	ID        int64               `json:"id"`
	Source    string              `json:"source"`
	CreatedAt time.Time           `json:"created_at"`
	Result    *fqcomp.Result      `json:"result,omitempty"`
	Error     *fqcomp.ErrorReport `json:"error,omitempty"`
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// database/sql pools connections; a file database takes one writer at a time.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return nil, errors.Join(fmt.Errorf("history db %s: %w", pragma, err), db.Close())
		}
	}

	s := &Store{db: db, now: time.Now}
	if err := s.EnsureTables(ctx); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return s, nil
}

// EnsureTables creates the history schema if it does not exist.
func (s *Store) EnsureTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fqcomp_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			reads_sampled INTEGER NOT NULL DEFAULT 0,
			is_contaminated INTEGER NOT NULL DEFAULT 0,
			is_mixed INTEGER NOT NULL DEFAULT 0,
			unknown_content REAL,
			error_kind TEXT,
			payload TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS fqcomp_runs_created ON fqcomp_runs(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure history tables: %w", err)
		}
	}
	return nil
}

// RecordResult stores a successful analysis and returns its row id.
func (s *Store) RecordResult(ctx context.Context, res *fqcomp.Result) (int64, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return 0, err
	}
	out, err := s.db.ExecContext(ctx, `INSERT INTO fqcomp_runs
		(source, created_at, reads_sampled, is_contaminated, is_mixed, unknown_content, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.Source, s.now().Unix(), res.ReadsSampled, res.IsContaminated, res.IsMixed,
		res.UnknownContent, string(payload))
	if err != nil {
		return 0, fmt.Errorf("record result: %w", err)
	}
	return out.LastInsertId()
}

// RecordError stores a failed analysis and returns its row id.
func (s *Store) RecordError(ctx context.Context, report *fqcomp.ErrorReport) (int64, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return 0, err
	}
	out, err := s.db.ExecContext(ctx, `INSERT INTO fqcomp_runs
		(source, created_at, error_kind, payload)
		VALUES (?, ?, ?, ?)`,
		report.Source, s.now().Unix(), report.Kind, string(payload))
	if err != nil {
		return 0, fmt.Errorf("record error: %w", err)
	}
	return out.LastInsertId()
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, created_at, error_kind, payload
		FROM fqcomp_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			createdAt int64
			errorKind sql.NullString
			payload   string
		)
		if err := rows.Scan(&e.ID, &e.Source, &createdAt, &errorKind, &payload); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		if errorKind.Valid {
			e.Error = new(fqcomp.ErrorReport)
			err = json.Unmarshal([]byte(payload), e.Error)
		} else {
			e.Result = new(fqcomp.Result)
			err = json.Unmarshal([]byte(payload), e.Result)
		}
		if err != nil {
			return nil, fmt.Errorf("decode history row %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
