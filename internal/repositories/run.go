package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

const runColumns = `id, sequence, mode, playlist_url, playlist_title, ledger_path,
	discovered, processed, failed, status, error, started_at, finished_at`

// RunRepository persists sync runs and their failed items.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run, assigning its sequence and an ID when it has none.
func (r *RunRepository) Create(ctx context.Context, run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	if run.ID == "" {
		run.ID = shared.GenerateID()
	}
	run.Sequence = sequence
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}

	query := `
		INSERT INTO runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.Sequence,
		run.Mode,
		run.PlaylistURL,
		run.PlaylistTitle,
		run.LedgerPath,
		run.Discovered,
		run.Processed,
		run.Failed,
		string(run.Status),
		run.Error,
		run.StartedAt,
		finishedAt(run),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// Finish stores a run's outcome.
func (r *RunRepository) Finish(ctx context.Context, run *models.Run) error {
	query := `
		UPDATE runs
		SET playlist_title = ?, ledger_path = ?, discovered = ?, processed = ?, failed = ?,
			status = ?, error = ?, finished_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		run.PlaylistTitle,
		run.LedgerPath,
		run.Discovered,
		run.Processed,
		run.Failed,
		string(run.Status),
		run.Error,
		finishedAt(run),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: run %s", shared.ErrRecordNotFound, run.ID)
	}

	return nil
}

// Get retrieves a run by ID.
func (r *RunRepository) Get(ctx context.Context, id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", shared.ErrRecordNotFound, id)
	}
	return run, err
}

// List returns the most recent runs first, optionally filtered by playlist URL.
// A non-positive limit returns every run.
func (r *RunRepository) List(ctx context.Context, playlistURL string, limit int) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	args := []any{}

	if playlistURL != "" {
		query += " WHERE playlist_url = ?"
		args = append(args, playlistURL)
	}

	query += " ORDER BY sequence DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// RecordFailure stores an item that exhausted its retries.
func (r *RunRepository) RecordFailure(ctx context.Context, failure *models.Failure) error {
	if failure.RunID == "" || failure.ItemID == "" {
		return fmt.Errorf("validation failed: failure needs a run and an item")
	}
	if failure.ID == "" {
		failure.ID = shared.GenerateID()
	}

	query := `
		INSERT INTO failures (id, run_id, item_id, title, attempts, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		failure.ID,
		failure.RunID,
		failure.ItemID,
		failure.Title,
		failure.Attempts,
		failure.Error,
		failure.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert failure: %w", err)
	}

	return nil
}

// Failures lists failed items newest first, optionally limited to runs of one playlist.
func (r *RunRepository) Failures(ctx context.Context, playlistURL string) ([]*models.Failure, error) {
	query := `
		SELECT f.id, f.run_id, f.item_id, f.title, f.attempts, f.error, f.created_at
		FROM failures f
		JOIN runs r ON r.id = f.run_id
	`
	args := []any{}

	if playlistURL != "" {
		query += " WHERE r.playlist_url = ?"
		args = append(args, playlistURL)
	}
	query += " ORDER BY r.sequence DESC, f.created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	var failures []*models.Failure
	for rows.Next() {
		var f models.Failure
		if err := rows.Scan(&f.ID, &f.RunID, &f.ItemID, &f.Title, &f.Attempts, &f.Error, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		failures = append(failures, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return failures, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a [sql.Row] or the current row of [sql.Rows] into a [models.Run]
func scanRun(row scanner) (*models.Run, error) {
	var (
		run      models.Run
		status   string
		finished sql.NullTime
	)

	err := row.Scan(
		&run.ID, &run.Sequence, &run.Mode, &run.PlaylistURL, &run.PlaylistTitle, &run.LedgerPath,
		&run.Discovered, &run.Processed, &run.Failed, &status, &run.Error, &run.StartedAt, &finished,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Status = models.RunStatus(status)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func finishedAt(run *models.Run) any {
	if run.FinishedAt == nil {
		return nil
	}
	return *run.FinishedAt
}
