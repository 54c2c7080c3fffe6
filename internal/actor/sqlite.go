package actor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// sqliteSchema is the DDL for the actors table in SQLite form.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS actors (
    id    TEXT PRIMARY KEY,
    name  TEXT NOT NULL,
    flags TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_actors_name ON actors(name);
`

// SQLiteStore is a [Registry] backed by an embedded SQLite database.
// It is the default persistent store: a single game table rarely has more
// than a few hundred actors, and an embedded file keeps deployment to one
// binary plus one data file.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time interface check.
var _ Registry = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the SQLite database at dsn and ensures the
// schema exists. Use ":memory:" for an ephemeral store in tests.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("actor: open sqlite %q: %w", dsn, err)
	}
	// modernc sqlite serialises writes internally; a single connection
	// avoids SQLITE_BUSY under concurrent upserts.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("actor: migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// FindByID implements [Registry.FindByID].
func (s *SQLiteStore) FindByID(ctx context.Context, id string) (Actor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, flags FROM actors WHERE id = ?`, id)
	return scanSQLActor(row)
}

// FindByName implements [Registry.FindByName].
func (s *SQLiteStore) FindByName(ctx context.Context, name string) (Actor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, flags FROM actors WHERE name = ? LIMIT 1`, name)
	return scanSQLActor(row)
}

// Upsert implements [Registry.Upsert].
func (s *SQLiteStore) Upsert(ctx context.Context, a Actor) (Actor, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	flags, err := json.Marshal(emptyFlags(a.Flags))
	if err != nil {
		return Actor{}, fmt.Errorf("actor: marshal flags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO actors (id, name, flags) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, flags = excluded.flags`,
		a.ID, a.Name, string(flags),
	)
	if err != nil {
		return Actor{}, fmt.Errorf("actor: upsert %q: %w", a.ID, err)
	}
	return a, nil
}

// Remove implements [Registry.Remove].
func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM actors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("actor: remove %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("actor: remove %q: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List implements [Registry.List].
func (s *SQLiteStore) List(ctx context.Context) ([]Actor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, flags FROM actors`)
	if err != nil {
		return nil, fmt.Errorf("actor: list: %w", err)
	}
	defer rows.Close()

	var result []Actor
	for rows.Next() {
		a, err := scanSQLActor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("actor: list rows: %w", err)
	}
	return result, nil
}

// sqlRow abstracts *sql.Row and *sql.Rows for scanning.
type sqlRow interface {
	Scan(dest ...any) error
}

// scanSQLActor reads one actor row, decoding the JSON flags column.
func scanSQLActor(row sqlRow) (Actor, error) {
	var a Actor
	var flags string
	if err := row.Scan(&a.ID, &a.Name, &flags); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Actor{}, ErrNotFound
		}
		return Actor{}, fmt.Errorf("actor: scan: %w", err)
	}
	if flags != "" {
		if err := json.Unmarshal([]byte(flags), &a.Flags); err != nil {
			return Actor{}, fmt.Errorf("actor: decode flags for %q: %w", a.ID, err)
		}
	}
	return a, nil
}
