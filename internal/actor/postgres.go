package actor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the actors table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS actors (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    flags      JSONB NOT NULL DEFAULT '{}',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_actors_name ON actors(name);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Registry] backed by a PostgreSQL database. Flags are
// serialised as JSONB. Use it when several game worlds share one server.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Registry = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] using the given connection or
// pool. Call [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL, creating the actors table and index if
// they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("actor: migrate: %w", err)
	}
	return nil
}

// FindByID implements [Registry.FindByID].
func (s *PostgresStore) FindByID(ctx context.Context, id string) (Actor, error) {
	row := s.db.QueryRow(ctx, `SELECT id, name, flags FROM actors WHERE id = $1`, id)
	return scanActor(row)
}

// FindByName implements [Registry.FindByName].
func (s *PostgresStore) FindByName(ctx context.Context, name string) (Actor, error) {
	row := s.db.QueryRow(ctx, `SELECT id, name, flags FROM actors WHERE name = $1 LIMIT 1`, name)
	return scanActor(row)
}

// Upsert implements [Registry.Upsert].
func (s *PostgresStore) Upsert(ctx context.Context, a Actor) (Actor, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	flags, err := json.Marshal(emptyFlags(a.Flags))
	if err != nil {
		return Actor{}, fmt.Errorf("actor: marshal flags: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO actors (id, name, flags, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET name = $2, flags = $3, updated_at = now()`,
		a.ID, a.Name, flags,
	)
	if err != nil {
		return Actor{}, fmt.Errorf("actor: upsert %q: %w", a.ID, err)
	}
	return a, nil
}

// Remove implements [Registry.Remove].
func (s *PostgresStore) Remove(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM actors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("actor: remove %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List implements [Registry.List].
func (s *PostgresStore) List(ctx context.Context) ([]Actor, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, flags FROM actors`)
	if err != nil {
		return nil, fmt.Errorf("actor: list: %w", err)
	}
	defer rows.Close()

	var result []Actor
	for rows.Next() {
		a, err := scanActor(rows)
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

// scanActor reads one actor row, decoding the JSONB flags column.
func scanActor(row pgx.Row) (Actor, error) {
	var a Actor
	var flags []byte
	if err := row.Scan(&a.ID, &a.Name, &flags); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Actor{}, ErrNotFound
		}
		return Actor{}, fmt.Errorf("actor: scan: %w", err)
	}
	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &a.Flags); err != nil {
			return Actor{}, fmt.Errorf("actor: decode flags for %q: %w", a.ID, err)
		}
	}
	return a, nil
}

// emptyFlags substitutes an empty map for nil so JSONB columns never store
// SQL NULL.
func emptyFlags(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
