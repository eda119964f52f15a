// Package store archives completed simulation runs to Postgres, grounded
// in the teacher's internal/data/postgres accessors: pgx QueryRow/Query
// plus Scan, and fmt.Errorf-wrapped errors.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/lib/pq"

	"github.com/backtestlab/simcore/internal/driver"
)

// RunArchive persists ResultBundles keyed by an opaque run ID.
type RunArchive struct {
	db *pgxpool.Pool
}

// Open connects to Postgres at dsn and returns a RunArchive.
func Open(ctx context.Context, dsn string) (*RunArchive, error) {
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to run archive database: %w", err)
	}
	return &RunArchive{db: pool}, nil
}

// Close releases the connection pool.
func (a *RunArchive) Close() { a.db.Close() }

// Migrate creates the runs table if it does not already exist. Simulation
// cores are not expected to own a migration framework of their own; this
// mirrors how the teacher bootstraps ad-hoc tables inline.
func (a *RunArchive) Migrate(ctx context.Context) error {
	_, err := a.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS simulation_runs (
			run_id       TEXT PRIMARY KEY,
			created_at   TIMESTAMPTZ NOT NULL,
			universe     TEXT[] NOT NULL,
			final_value  NUMERIC NOT NULL,
			total_tax    NUMERIC NOT NULL,
			partial      BOOLEAN NOT NULL,
			bundle       JSONB NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate simulation_runs table: %w", err)
	}
	return nil
}

func totalTax(bundle *driver.ResultBundle) pgtype.Numeric {
	total := 0.0
	for _, summary := range bundle.TaxYearSummaries {
		t, _ := summary.TotalTax.Float64()
		total += t
	}
	var n pgtype.Numeric
	_ = n.Set(total)
	return n
}

// SaveRun archives a completed ResultBundle under runID.
func (a *RunArchive) SaveRun(ctx context.Context, runID string, createdAt time.Time, bundle *driver.ResultBundle) error {
	payload, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("marshal result bundle for run %s: %w", runID, err)
	}

	finalValue := 0.0
	if len(bundle.Equity) > 0 {
		finalValue, _ = bundle.Equity[len(bundle.Equity)-1].TotalValue.Float64()
	}
	var finalValueNum pgtype.Numeric
	if err := finalValueNum.Set(finalValue); err != nil {
		return fmt.Errorf("encode final value for run %s: %w", runID, err)
	}

	_, err = a.db.Exec(ctx, `
		INSERT INTO simulation_runs (run_id, created_at, universe, final_value, total_tax, partial, bundle)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO UPDATE SET
			created_at = EXCLUDED.created_at,
			universe = EXCLUDED.universe,
			final_value = EXCLUDED.final_value,
			total_tax = EXCLUDED.total_tax,
			partial = EXCLUDED.partial,
			bundle = EXCLUDED.bundle
	`, runID, createdAt, pq.Array(bundle.Config.Universe.Symbols), finalValueNum, totalTax(bundle), bundle.Partial, payload)
	if err != nil {
		return fmt.Errorf("insert simulation run %s: %w", runID, err)
	}
	return nil
}

// LoadRun retrieves a previously archived ResultBundle by runID.
func (a *RunArchive) LoadRun(ctx context.Context, runID string) (*driver.ResultBundle, error) {
	var payload []byte
	err := a.db.QueryRow(ctx, `SELECT bundle FROM simulation_runs WHERE run_id = $1`, runID).Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query simulation run %s: %w", runID, err)
	}

	var bundle driver.ResultBundle
	if err := json.Unmarshal(payload, &bundle); err != nil {
		return nil, fmt.Errorf("unmarshal result bundle for run %s: %w", runID, err)
	}
	return &bundle, nil
}

// RunSummary is a lightweight listing row, avoiding a full bundle decode.
type RunSummary struct {
	RunID      string
	CreatedAt  time.Time
	Universe   []string
	FinalValue float64
	TotalTax   float64
	Partial    bool
}

// ListRuns returns the most recent runs, newest first.
func (a *RunArchive) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := a.db.Query(ctx, `
		SELECT run_id, created_at, universe, final_value, total_tax, partial
		FROM simulation_runs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list simulation runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var universe pq.StringArray
		var finalValue, totalTax pgtype.Numeric
		if err := rows.Scan(&s.RunID, &s.CreatedAt, &universe, &finalValue, &totalTax, &s.Partial); err != nil {
			return nil, fmt.Errorf("scan simulation run row: %w", err)
		}
		s.Universe = universe
		_ = finalValue.AssignTo(&s.FinalValue)
		_ = totalTax.AssignTo(&s.TotalTax)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate simulation runs: %w", err)
	}
	return out, nil
}
