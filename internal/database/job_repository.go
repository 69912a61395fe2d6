package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/campscout/internal/domain"
)

// ErrJobNotFound is returned when a job lookup matches no row.
var ErrJobNotFound = errors.New("job not found")

// pqUniqueViolation is the PostgreSQL error code for unique_violation.
const pqUniqueViolation = "23505"

// JobRepository handles database operations for jobs.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `
	id, source_id, status, triggered_by, workflow_id,
	sessions_found, sessions_created, sessions_updated,
	error_message, started_at, completed_at, created_at, updated_at
`

// CreateIfIdle inserts a new pending job for the source unless a pending
// or running job already exists. The check and insert run in one
// transaction so two concurrent triggers cannot both observe "no job" and
// both insert; a partial unique index on (source_id) WHERE status IN
// ('pending','running') backs the invariant structurally. Returns
// (nil, nil) when an in-flight job already exists.
func (r *JobRepository) CreateIfIdle(ctx context.Context, sourceID, triggeredBy string) (*domain.Job, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	err = tx.GetContext(ctx, &existing,
		`SELECT id FROM jobs WHERE source_id = $1 AND status IN ('pending', 'running') FOR UPDATE`,
		sourceID,
	)
	if err == nil {
		// In-flight job already exists; creation is a no-op.
		return nil, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check in-flight jobs: %w", err)
	}

	job := &domain.Job{
		ID:          uuid.New().String(),
		SourceID:    sourceID,
		Status:      domain.JobStatusPending,
		TriggeredBy: triggeredBy,
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO jobs (id, source_id, status, triggered_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		job.ID, job.SourceID, job.Status, job.TriggeredBy,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			// Lost the race to a concurrent creator.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, fmt.Errorf("failed to commit job creation: %w", commitErr)
	}

	return job, nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	err := r.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// List retrieves jobs with optional status filtering, newest first.
func (r *JobRepository) List(ctx context.Context, status string, limit, offset int) ([]*domain.Job, error) {
	var jobs []*domain.Job
	var query string
	var args []any

	if status != "" {
		query = `SELECT ` + jobColumns + ` FROM jobs WHERE status = $1
			ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = []any{status, limit, offset}
	} else {
		query = `SELECT ` + jobColumns + ` FROM jobs
			ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = []any{limit, offset}
	}

	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	if jobs == nil {
		jobs = []*domain.Job{}
	}

	return jobs, nil
}

// MarkRunning atomically transitions a job from pending to running and
// attaches the workflow handle. The WHERE clause re-checks both status
// and the absence of a handle, defending against cancellation and
// duplicate-start races. Returns false when no transition happened.
func (r *JobRepository) MarkRunning(ctx context.Context, id, workflowID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs
		 SET status = $1, workflow_id = $2, started_at = now(), updated_at = now()
		 WHERE id = $3 AND status = $4 AND workflow_id IS NULL`,
		domain.JobStatusRunning, workflowID, id, domain.JobStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark job running: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// Finalize records a job's terminal status, counts, and error text.
func (r *JobRepository) Finalize(ctx context.Context, job *domain.Job) error {
	if !job.IsTerminal() {
		return fmt.Errorf("cannot finalize job %s in status %s", job.ID, job.Status)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs
		 SET status = $1, sessions_found = $2, sessions_created = $3,
		     sessions_updated = $4, error_message = $5, completed_at = now(),
		     updated_at = now()
		 WHERE id = $6 AND status = $7`,
		job.Status,
		job.SessionsFound,
		job.SessionsCreated,
		job.SessionsUpdated,
		job.ErrorMessage,
		job.ID,
		domain.JobStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize job: %w", err)
	}

	return requireRow(result, ErrJobNotFound)
}

// FailStale fails out pending and running jobs last touched before the
// cutoff. Deferred starts live only in process memory, so a crashed
// process orphans its in-flight rows and CreateIfIdle would treat those
// sources as busy forever. Returns the number of jobs reaped.
func (r *JobRepository) FailStale(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs
		 SET status = $1, error_message = 'abandoned by process restart',
		     completed_at = now(), updated_at = now()
		 WHERE status IN ('pending', 'running') AND updated_at < $2`,
		domain.JobStatusFailed, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reap stale jobs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

// CountInFlight returns the number of pending or running jobs for a
// source. The one-in-flight invariant keeps this at 0 or 1.
func (r *JobRepository) CountInFlight(ctx context.Context, sourceID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM jobs WHERE source_id = $1 AND status IN ('pending', 'running')`,
		sourceID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count in-flight jobs: %w", err)
	}

	return count, nil
}
