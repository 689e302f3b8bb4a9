package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, started_at, finished_at, status, data_version, config_hash,
	rows_loaded, rows_dropped, rows_rejected,
	intervals, baselines, tests, summaries, trends, error
`

// Insert records a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, run *domain.RunRecord) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `INSERT INTO runs (` + runColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9,
		$10, $11, $12, $13, $14, $15
	)`

	_, err := s.pool.Exec(ctx, query,
		run.RunID, run.StartedAt, run.FinishedAt, string(run.Status), run.DataVersion, run.ConfigHash,
		run.RowsLoaded, run.RowsDropped, run.RowsRejected,
		run.Intervals, run.Baselines, run.Tests, run.Summaries, run.Trends, run.Error,
	)
	if err != nil {
		return mapError(err, "insert run")
	}
	return nil
}

// Finish stores the terminal state of an unfinished run.
func (s *RunStore) Finish(ctx context.Context, run *domain.RunRecord) error {
	if run == nil || run.RunID == "" || run.FinishedAt == nil {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE runs SET
			finished_at = $2, status = $3, data_version = $4, config_hash = $5,
			rows_loaded = $6, rows_dropped = $7, rows_rejected = $8,
			intervals = $9, baselines = $10, tests = $11, summaries = $12, trends = $13,
			error = $14
		WHERE run_id = $1 AND finished_at IS NULL
	`

	tag, err := s.pool.Exec(ctx, query,
		run.RunID, run.FinishedAt, string(run.Status), run.DataVersion, run.ConfigHash,
		run.RowsLoaded, run.RowsDropped, run.RowsRejected,
		run.Intervals, run.Baselines, run.Tests, run.Summaries, run.Trends,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// distinguish a missing run from one already finished
	if _, err := s.GetByID(ctx, run.RunID); err != nil {
		return err
	}
	return storage.ErrInvalidInput
}

// GetByID retrieves a run. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = $1`, runID)
	run, err := scanRun(row)
	if err != nil {
		return nil, mapError(err, "get run by id")
	}
	return run, nil
}

// GetLatest returns the most recently started run.
func (s *RunStore) GetLatest(ctx context.Context) (*domain.RunRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, run_id DESC LIMIT 1`)
	run, err := scanRun(row)
	if err != nil {
		return nil, mapError(err, "get latest run")
	}
	return run, nil
}

func scanRun(row pgx.Row) (*domain.RunRecord, error) {
	var r domain.RunRecord
	var status string
	err := row.Scan(
		&r.RunID, &r.StartedAt, &r.FinishedAt, &status, &r.DataVersion, &r.ConfigHash,
		&r.RowsLoaded, &r.RowsDropped, &r.RowsRejected,
		&r.Intervals, &r.Baselines, &r.Tests, &r.Summaries, &r.Trends, &r.Error,
	)
	if err != nil {
		return nil, err
	}
	r.Status = domain.RunStatus(status)
	return &r, nil
}
