// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"application-engine/internal/common/database"
	"application-engine/internal/models"
)

// PostgresStore persists applications in a single table with a version
// column. The commit UPDATE is guarded by the expected version so a
// stale snapshot can never overwrite a newer one.
type PostgresStore struct {
	db *database.PostgresClient
}

func NewPostgresStore(db *database.PostgresClient) *PostgresStore {
	return &PostgresStore{db: db}
}

const createApplicationsTable = `
CREATE TABLE IF NOT EXISTS applications (
    id         TEXT PRIMARY KEY,
    type_id    TEXT NOT NULL,
    state      TEXT NOT NULL,
    data       JSONB NOT NULL,
    version    BIGINT NOT NULL DEFAULT 1,
    prune_at   TIMESTAMPTZ,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS applications_prune_at_idx ON applications (prune_at) WHERE prune_at IS NOT NULL;`

// Migrate creates the applications table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createApplicationsTable); err != nil {
		return fmt.Errorf("failed to migrate applications table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, app *models.Application) error {
	data, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("failed to marshal application: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO applications (id, type_id, state, data, version, prune_at) VALUES ($1, $2, $3, $4, 1, $5)`,
		app.ID, app.TypeID, app.State, data, nullableTime(app.PruneAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert application: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*models.Application, int64, error) {
	var (
		data    []byte
		version int64
	)
	row := s.db.QueryRow(ctx, `SELECT data, version FROM applications WHERE id = $1`, id)
	if err := row.Scan(&data, &version); err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to load application: %w", err)
	}
	var app models.Application
	if err := json.Unmarshal(data, &app); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal application: %w", err)
	}
	return &app, version, nil
}

func (s *PostgresStore) Commit(ctx context.Context, app *models.Application, expectedVersion int64) error {
	data, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("failed to marshal application: %w", err)
	}
	res, err := s.db.Exec(ctx,
		`UPDATE applications
		    SET data = $2, state = $3, prune_at = $4, version = version + 1, updated_at = now()
		  WHERE id = $1 AND version = $5`,
		app.ID, data, app.State, nullableTime(app.PruneAt), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to commit application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read commit result: %w", err)
	}
	if affected == 0 {
		// Distinguish a stale version from a deleted row.
		var exists bool
		row := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM applications WHERE id = $1)`, app.ID)
		if scanErr := row.Scan(&exists); scanErr == nil && !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]PruneCandidate, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, type_id FROM applications WHERE prune_at IS NOT NULL AND prune_at <= $1 ORDER BY prune_at LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired applications: %w", err)
	}
	defer rows.Close()

	var out []PruneCandidate
	for rows.Next() {
		var c PruneCandidate
		if err := rows.Scan(&c.ID, &c.TypeID); err != nil {
			return nil, fmt.Errorf("failed to scan expired application: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
