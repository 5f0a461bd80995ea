package swarm

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStateStore keeps checkpoints in a single table with the full
// document as JSONB. Postgres's per-statement atomicity gives the
// torn-write guarantee the StateStore contract requires.
type PostgresStateStore struct {
	db    *sql.DB
	table string
}

// NewPostgresStateStore wraps an open database handle. Call Migrate before
// first use.
func NewPostgresStateStore(db *sql.DB) *PostgresStateStore {
	return &PostgresStateStore{db: db, table: "checkpoints"}
}

// OpenPostgresStateStore connects with a lib/pq DSN and runs the
// migration.
func OpenPostgresStateStore(ctx context.Context, dsn string) (*PostgresStateStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	store := NewPostgresStateStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Migrate creates the checkpoints table if it does not exist.
func (s *PostgresStateStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id            TEXT PRIMARY KEY,
			workflow_name TEXT NOT NULL,
			status        TEXT NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL,
			data          JSONB NOT NULL
		)`, s.table))
	if err != nil {
		return fmt.Errorf("failed to create checkpoints table: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *PostgresStateStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStateStore) Save(ctx context.Context, cp *Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, workflow_name, status, updated_at, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			workflow_name = EXCLUDED.workflow_name,
			status        = EXCLUDED.status,
			updated_at    = EXCLUDED.updated_at,
			data          = EXCLUDED.data`, s.table),
		cp.ID, cp.WorkflowName, string(cp.Status), cp.UpdatedAt, data)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func (s *PostgresStateStore) Load(ctx context.Context, id string) (*Checkpoint, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE id = $1`, s.table), id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

func (s *PostgresStateStore) List(ctx context.Context, filter CheckpointFilter) ([]*Checkpoint, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE 1=1`, s.table)
	var args []any
	if filter.WorkflowName != "" {
		args = append(args, filter.WorkflowName)
		query += fmt.Sprintf(" AND workflow_name = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY updated_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*Checkpoint
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			continue
		}
		var cp Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			continue
		}
		checkpoints = append(checkpoints, &cp)
	}
	return checkpoints, rows.Err()
}

func (s *PostgresStateStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table), id)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrCheckpointNotFound
	}
	return nil
}

func (s *PostgresStateStore) GetLatest(ctx context.Context, workflowName string) (*Checkpoint, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT data FROM %s WHERE workflow_name = $1
		ORDER BY updated_at DESC LIMIT 1`, s.table), workflowName).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}
