// Package sqlite persists the demo app's users and tasks. Every statement
// runs through the data-access recorder so the console's query log sees the
// exact SQL, bound parameters and outcome counts.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/glasskit/glassbox/internal/track"
)

type Store struct {
	db    *sql.DB
	users *UserRepo
	tasks *TaskRepo
}

// New opens (or creates) the database at path and runs migrations.
// Pass ":memory:" for an ephemeral database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open: %w", err)
	}

	// In-memory SQLite gives every connection its own database; pin to one
	// connection so schema and data stay visible across goroutines.
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.New: enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.New: migrate: %w", err)
	}

	s.users = NewUserRepo(db)
	s.tasks = NewTaskRepo(db)
	return s, nil
}

func (s *Store) Users() *UserRepo { return s.users }
func (s *Store) Tasks() *TaskRepo { return s.tasks }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			email      TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL,
			priority    TEXT NOT NULL,
			owner_id    INTEGER NOT NULL REFERENCES users(id),
			assignee_id INTEGER REFERENCES users(id),
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}
	return nil
}

// queryRows executes a read statement, scanning each row with scan, and
// records the statement with the returned row count.
func queryRows(ctx context.Context, db *sql.DB, text string, params []any, scan func(*sql.Rows) error) (int64, error) {
	span := track.StartQuery(ctx, text, params...)

	rows, err := db.QueryContext(ctx, text, params...)
	if err != nil {
		span.End(0)
		return 0, err
	}
	defer rows.Close()

	var n int64
	for rows.Next() {
		if err := scan(rows); err != nil {
			span.End(n)
			return n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		span.End(n)
		return n, err
	}

	span.End(n)
	return n, nil
}

// execStmt executes a write statement and records it with the single outcome
// metric: the generated id for INSERT when the driver reports one, rows
// affected otherwise.
func execStmt(ctx context.Context, db *sql.DB, text string, params ...any) (int64, error) {
	span := track.StartQuery(ctx, text, params...)

	res, err := db.ExecContext(ctx, text, params...)
	if err != nil {
		span.End(0)
		return 0, err
	}

	var metric int64
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(text)), "INSERT") {
		metric, err = res.LastInsertId()
		if err != nil {
			metric, _ = res.RowsAffected()
		}
	} else {
		metric, _ = res.RowsAffected()
	}

	span.End(metric)
	return metric, nil
}
