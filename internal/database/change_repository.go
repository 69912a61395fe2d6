package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/campscout/internal/domain"
)

// ChangeRepository handles database operations for the append-only change
// log. Changes are never updated or deleted.
type ChangeRepository struct {
	db *sqlx.DB
}

// NewChangeRepository creates a new change repository.
func NewChangeRepository(db *sqlx.DB) *ChangeRepository {
	return &ChangeRepository{db: db}
}

// Create appends a change record.
func (r *ChangeRepository) Create(ctx context.Context, change *domain.Change) error {
	if change.ID == "" {
		change.ID = uuid.New().String()
	}

	query := `
		INSERT INTO changes (id, job_id, session_id, change_type, detail)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		change.ID, change.JobID, change.SessionID, change.ChangeType, &change.Detail,
	).Scan(&change.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create change: %w", err)
	}

	return nil
}

// ListByJob retrieves all changes recorded by a job.
func (r *ChangeRepository) ListByJob(ctx context.Context, jobID string) ([]*domain.Change, error) {
	var changes []*domain.Change
	query := `
		SELECT id, job_id, session_id, change_type, detail, created_at
		FROM changes WHERE job_id = $1 ORDER BY created_at
	`

	if err := r.db.SelectContext(ctx, &changes, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to list changes: %w", err)
	}

	if changes == nil {
		changes = []*domain.Change{}
	}

	return changes, nil
}

// CountByJob returns the number of changes a job recorded.
func (r *ChangeRepository) CountByJob(ctx context.Context, jobID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM changes WHERE job_id = $1`, jobID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count changes: %w", err)
	}

	return count, nil
}
