// Package postgres implements store.StateStore on PostgreSQL
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Cogwheel-Validator/spectra-lease/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS saga_states (
	id         TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// Store keeps one row per saga id
type Store struct {
	db *sqlx.DB
}

type postgresState struct {
	ID        string    `db:"id"`
	State     []byte    `db:"state"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Open connects to dsn and creates the table when missing
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	s, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New creates a store on an existing connection pool
func New(ctx context.Context, db *sqlx.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create saga_states table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Save(ctx context.Context, id string, state []byte) error {
	query := `
		INSERT INTO saga_states (id, state, updated_at)
		VALUES (:id, :state, :updated_at)
		ON CONFLICT (id) DO UPDATE
		SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`

	row := postgresState{ID: id, State: state, UpdatedAt: time.Now().UTC()}
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to save state %s: %w", id, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id string) ([]byte, error) {
	var row postgresState
	err := s.db.GetContext(ctx, &row, `SELECT id, state, updated_at FROM saga_states WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load state %s: %w", id, err)
	}
	return row.State, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM saga_states WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete state %s: %w", id, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM saga_states ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list states: %w", err)
	}
	return ids, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
