// Package persistence defines the score-run storage contracts. Engines stay
// pure; batch runs hand their results to a ScoreRepo and the monitor server
// reads them back.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Engine names stored alongside each record.
const (
	EngineBRS = "brs"
	EngineMDS = "mds"
)

// ErrNotFound reports that a ticker has no persisted scores.
var ErrNotFound = errors.New("persistence: not found")

// ScoreRecord is one persisted engine result, unique per (ticker, as_of,
// engine). Detail carries the full engine result JSON so sub-scores and
// attribution survive without a column per band.
type ScoreRecord struct {
	ID        int64           `json:"id" db:"id"`
	RunID     string          `json:"run_id" db:"run_id"`
	Ticker    string          `json:"ticker" db:"ticker"`
	AsOf      string          `json:"as_of" db:"as_of"`
	Engine    string          `json:"engine" db:"engine"`
	Total     float64         `json:"total" db:"total"`
	Detail    json.RawMessage `json:"detail,omitempty" db:"detail"`
	Warnings  []string        `json:"warnings,omitempty" db:"warnings"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Validate checks the record invariants before it reaches storage.
func (r ScoreRecord) Validate() error {
	if r.Ticker == "" {
		return fmt.Errorf("score record ticker cannot be empty")
	}
	if r.Engine != EngineBRS && r.Engine != EngineMDS {
		return fmt.Errorf("unknown engine: %s", r.Engine)
	}
	if r.Total < 0 || r.Total > 100 {
		return fmt.Errorf("total out of range: %f", r.Total)
	}
	return nil
}

// ScoreRepo stores and retrieves score records.
type ScoreRepo interface {
	// Upsert inserts or replaces the record for its (ticker, as_of, engine).
	Upsert(ctx context.Context, record ScoreRecord) error

	// UpsertBatch processes multiple records atomically.
	UpsertBatch(ctx context.Context, records []ScoreRecord) error

	// Latest returns the most recent record per engine for a ticker, or
	// ErrNotFound when the ticker has never been scored.
	Latest(ctx context.Context, ticker string) ([]ScoreRecord, error)

	// History returns records for a ticker, newest as_of first.
	History(ctx context.Context, ticker string, limit int) ([]ScoreRecord, error)

	// ListByRun returns every record persisted under a run ID.
	ListByRun(ctx context.Context, runID string) ([]ScoreRecord, error)
}

// Repository aggregates all persistence interfaces.
type Repository struct {
	Scores ScoreRepo
}

// HealthCheck represents repository health status.
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for the persistence layer.
type RepositoryHealth interface {
	// Health returns current repository health status.
	Health(ctx context.Context) HealthCheck

	// Ping tests basic connectivity to the database.
	Ping(ctx context.Context) error
}
