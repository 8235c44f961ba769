// Package postgres implements the persistence contracts on PostgreSQL via
// sqlx.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/stresslens/internal/persistence"
)

// schema bootstraps score storage. Detail and warnings are JSONB so engine
// result shapes can evolve without migrations.
const schema = `
CREATE TABLE IF NOT EXISTS scores (
	id         BIGSERIAL PRIMARY KEY,
	run_id     TEXT NOT NULL DEFAULT '',
	ticker     TEXT NOT NULL,
	as_of      TEXT NOT NULL DEFAULT '',
	engine     TEXT NOT NULL,
	total      DOUBLE PRECISION NOT NULL,
	detail     JSONB,
	warnings   JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (ticker, as_of, engine)
);

CREATE INDEX IF NOT EXISTS idx_scores_ticker_asof ON scores (ticker, as_of DESC);
CREATE INDEX IF NOT EXISTS idx_scores_run ON scores (run_id);
`

// EnsureSchema creates the score tables and indexes when missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure score schema: %w", err)
	}
	return nil
}

// scoresRepo implements ScoreRepo for PostgreSQL.
type scoresRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewScoresRepo creates a PostgreSQL score repository.
func NewScoresRepo(db *sqlx.DB, timeout time.Duration) persistence.ScoreRepo {
	return &scoresRepo{
		db:      db,
		timeout: timeout,
	}
}

const upsertQuery = `
	INSERT INTO scores (run_id, ticker, as_of, engine, total, detail, warnings)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (ticker, as_of, engine) DO UPDATE SET
		run_id = EXCLUDED.run_id,
		total = EXCLUDED.total,
		detail = EXCLUDED.detail,
		warnings = EXCLUDED.warnings,
		created_at = now()
	RETURNING id, created_at`

const selectColumns = `id, run_id, ticker, as_of, engine, total, detail, warnings, created_at`

// Upsert inserts or replaces the record for its (ticker, as_of, engine).
func (r *scoresRepo) Upsert(ctx context.Context, record persistence.ScoreRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	warningsJSON, err := marshalWarnings(record.Warnings)
	if err != nil {
		return err
	}

	var id int64
	var createdAt time.Time
	err = r.db.QueryRowxContext(ctx, upsertQuery,
		record.RunID, record.Ticker, record.AsOf, record.Engine,
		record.Total, []byte(record.Detail), warningsJSON).
		Scan(&id, &createdAt)
	if err != nil {
		return fmt.Errorf("failed to upsert score record: %w", err)
	}
	return nil
}

// UpsertBatch processes multiple records atomically.
func (r *scoresRepo) UpsertBatch(ctx context.Context, records []persistence.ScoreRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(records)/50+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, upsertQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		warningsJSON, err := marshalWarnings(record.Warnings)
		if err != nil {
			return err
		}
		var id int64
		var createdAt time.Time
		err = stmt.QueryRowxContext(ctx,
			record.RunID, record.Ticker, record.AsOf, record.Engine,
			record.Total, []byte(record.Detail), warningsJSON).
			Scan(&id, &createdAt)
		if err != nil {
			return fmt.Errorf("failed to upsert score for %s/%s: %w", record.Ticker, record.Engine, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit score batch: %w", err)
	}
	return nil
}

// Latest returns the most recent record per engine for a ticker.
func (r *scoresRepo) Latest(ctx context.Context, ticker string) ([]persistence.ScoreRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT DISTINCT ON (engine) ` + selectColumns + `
		FROM scores
		WHERE ticker = $1
		ORDER BY engine, as_of DESC, created_at DESC`

	records, err := r.queryRecords(ctx, query, ticker)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, persistence.ErrNotFound
	}
	return records, nil
}

// History returns records for a ticker, newest as_of first.
func (r *scoresRepo) History(ctx context.Context, ticker string, limit int) ([]persistence.ScoreRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT ` + selectColumns + `
		FROM scores
		WHERE ticker = $1
		ORDER BY as_of DESC, engine
		LIMIT $2`

	return r.queryRecords(ctx, query, ticker, limit)
}

// ListByRun returns every record persisted under a run ID.
func (r *scoresRepo) ListByRun(ctx context.Context, runID string) ([]persistence.ScoreRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ` + selectColumns + `
		FROM scores
		WHERE run_id = $1
		ORDER BY ticker, engine`

	return r.queryRecords(ctx, query, runID)
}

func (r *scoresRepo) queryRecords(ctx context.Context, query string, args ...interface{}) ([]persistence.ScoreRecord, error) {
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query score records: %w", err)
	}
	defer rows.Close()

	var records []persistence.ScoreRecord
	for rows.Next() {
		var record persistence.ScoreRecord
		var detail, warningsJSON []byte
		err := rows.Scan(&record.ID, &record.RunID, &record.Ticker, &record.AsOf,
			&record.Engine, &record.Total, &detail, &warningsJSON, &record.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score record: %w", err)
		}
		record.Detail = json.RawMessage(detail)
		if len(warningsJSON) > 0 {
			if err := json.Unmarshal(warningsJSON, &record.Warnings); err != nil {
				return nil, fmt.Errorf("failed to decode warnings for %s: %w", record.Ticker, err)
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate score records: %w", err)
	}
	return records, nil
}

func marshalWarnings(warnings []string) ([]byte, error) {
	if len(warnings) == 0 {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(warnings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal warnings: %w", err)
	}
	return data, nil
}
